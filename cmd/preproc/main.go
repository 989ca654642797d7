// Command preproc runs the climate preprocessors on local NetCDF files.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.ngs.io/climate-preproc/internal/adapter/store/csv"
	"go.ngs.io/climate-preproc/internal/adapter/store/dataset"
	"go.ngs.io/climate-preproc/internal/cmor/fixes"
	"go.ngs.io/climate-preproc/internal/config"
	"go.ngs.io/climate-preproc/internal/domain"
	"go.ngs.io/climate-preproc/internal/preprocessor"
	"go.ngs.io/climate-preproc/internal/usecase"
)

const version = "0.1.0"

var (
	envFile string
	dataDir string
	output  string
	format  string

	log          *logrus.Logger
	preprocessUC *usecase.PreprocessUseCase
)

// rootCmd is the main command.
var rootCmd = &cobra.Command{
	Use:   "preproc",
	Short: "Preprocess CMOR climate model output.",
	Long: `preproc applies CMOR fixes, derives variables and computes horizontal
statistics and regional subsets of gridded NetCDF climate model output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return startup()
	},
}

// startup reads the configuration and wires the use case.
func startup() error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log = cfg.NewLogger()
	log.SetOutput(os.Stderr)
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	paths, err := usecase.NewPaths(dataDir)
	if err != nil {
		return err
	}
	store := dataset.NewStore(log)
	preprocessUC = usecase.NewPreprocessUseCase(
		paths,
		store,
		dataset.NewCachedLoader(store),
		fixes.NewRegistry(log),
		usecase.NewFxCatalog(cfg.FxCatalogPath, log),
		log,
	)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional .env file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "root directory for input and output files (default: $DATA_DIR)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "write the result as NetCDF to this path instead of printing it")
	rootCmd.PersistentFlags().StringVar(&format, "format", "json", "output format when printing: json or csv")

	rootCmd.AddCommand(versionCmd, operatorsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of preproc",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("preproc v%s\n", version)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
}

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List the statistics operators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), usecase.Operators())
	},
}

// writeResult saves cube to --output or prints it in --format.
func writeResult(w io.Writer, cube *domain.Cube) error {
	if output != "" {
		path, err := preprocessUC.Save(output, cube)
		if err != nil {
			return err
		}
		log.WithField("file", path).Info("Wrote result")
		return nil
	}
	switch format {
	case "csv":
		return csv.WriteCube(w, cube)
	case "json":
		resp, err := usecase.NewCubeResponse(cube)
		if err != nil {
			return err
		}
		return printJSON(w, resp)
	default:
		return fmt.Errorf("unsupported format %q: expected json or csv", format)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseFx turns name=path flags into ordered fx fields.
func parseFx(values []string) (preprocessor.FxFiles, error) {
	out := make(preprocessor.FxFiles, 0, len(values))
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid fx field %q: expected name=path", v)
		}
		out = append(out, preprocessor.FxFile{Name: name, Path: path})
	}
	return out, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
