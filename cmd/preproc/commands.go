package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go.ngs.io/climate-preproc/internal/usecase"
)

func init() {
	for _, kind := range []usecase.StatisticKind{
		usecase.AreaStatistics,
		usecase.ZonalStatistics,
		usecase.MeridionalStatistics,
	} {
		rootCmd.AddCommand(statisticsCmd(kind))
	}
	rootCmd.AddCommand(extractRegionCmd(), extractNamedRegionsCmd(), deriveCmd(), fixCmd())
}

func statisticsCmd(kind usecase.StatisticKind) *cobra.Command {
	var (
		req usecase.StatisticsRequest
		fx  []string
	)
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s-statistics FILE", kind),
		Short: fmt.Sprintf("Compute %s statistics of a variable", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fxFiles, err := parseFx(fx)
			if err != nil {
				return err
			}
			req.File = args[0]
			req.FxFiles = fxFiles
			cube, err := preprocessUC.Statistics(kind, req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), cube)
		},
	}
	ops := make([]string, 0)
	for _, op := range usecase.Operators() {
		ops = append(ops, op.Name)
	}
	cmd.Flags().StringVar(&req.Operator, "operator", "mean", "statistic: "+strings.Join(ops, ", "))
	cmd.Flags().StringVar(&req.Variable, "variable", "", "variable to load (default: the only data variable)")
	cmd.Flags().StringVar(&req.Project, "project", "", "project for CMOR fixes (default: CMIP6 when --dataset is set)")
	cmd.Flags().StringVar(&req.Dataset, "dataset", "", "dataset for CMOR fixes and the fx catalog")
	cmd.Flags().StringArrayVar(&fx, "fx", nil, "fx field as name=path, repeatable; the last non-empty entry is used")
	return cmd
}

func extractRegionCmd() *cobra.Command {
	var req usecase.RegionRequest
	cmd := &cobra.Command{
		Use:   "extract-region FILE",
		Short: "Extract a longitude/latitude box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.File = args[0]
			cube, err := preprocessUC.ExtractRegion(req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), cube)
		},
	}
	cmd.Flags().StringVar(&req.Variable, "variable", "", "variable to load (default: the only data variable)")
	cmd.Flags().Float64Var(&req.StartLongitude, "start-lon", 0, "western longitude")
	cmd.Flags().Float64Var(&req.EndLongitude, "end-lon", 360, "eastern longitude")
	cmd.Flags().Float64Var(&req.StartLatitude, "start-lat", -90, "southern latitude")
	cmd.Flags().Float64Var(&req.EndLatitude, "end-lat", 90, "northern latitude")
	return cmd
}

func extractNamedRegionsCmd() *cobra.Command {
	var (
		variable string
		regions  []string
	)
	cmd := &cobra.Command{
		Use:   "extract-named-regions FILE",
		Short: "Extract labelled regions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := usecase.NamedRegionsRequest{File: args[0], Variable: variable}
			switch len(regions) {
			case 0:
			case 1:
				req.Regions = regions[0]
			default:
				req.Regions = regions
			}
			cube, err := preprocessUC.ExtractNamedRegions(req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), cube)
		},
	}
	cmd.Flags().StringVar(&variable, "variable", "", "variable to load (default: the only data variable)")
	cmd.Flags().StringArrayVar(&regions, "region", nil, "region label, repeatable")
	return cmd
}

func deriveCmd() *cobra.Command {
	var (
		req    usecase.DeriveRequest
		inputs []string
		fx     []string
	)
	cmd := &cobra.Command{
		Use:   "derive NAME",
		Short: "Derive a variable from its inputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), usecase.DerivedVariables())
			}
			req.Files = make(map[string]string, len(inputs))
			for _, in := range inputs {
				name, path, ok := strings.Cut(in, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid input %q: expected short_name=path", in)
				}
				req.Files[name] = path
			}
			fxFiles, err := parseFx(fx)
			if err != nil {
				return err
			}
			req.FxFiles = fxFiles
			cube, err := preprocessUC.Derive(args[0], req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), cube)
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "input variable as short_name=path, repeatable")
	cmd.Flags().StringVar(&req.Dataset, "dataset", "", "dataset for the fx catalog")
	cmd.Flags().StringArrayVar(&fx, "fx", nil, "fx field as name=path, repeatable")
	return cmd
}

func fixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "List or apply CMOR fixes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the registered fixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), preprocessUC.FixKeys())
		},
	}

	var req usecase.FixRequest
	apply := &cobra.Command{
		Use:   "apply FILE",
		Short: "Apply the file fixes of a dataset variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.File = args[0]
			result, err := preprocessUC.ApplyFixes(req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	apply.Flags().StringVar(&req.Project, "project", usecase.DefaultProject, "project")
	apply.Flags().StringVar(&req.Dataset, "dataset", "", "dataset")
	apply.Flags().StringVar(&req.Variable, "variable", "", "variable short name")
	apply.Flags().StringVar(&req.OutputDir, "output-dir", "fixed", "directory for fixed files")
	_ = apply.MarkFlagRequired("dataset")
	_ = apply.MarkFlagRequired("variable")

	cmd.AddCommand(list, apply)
	return cmd
}
