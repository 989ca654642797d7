// Package main provides the climate preprocessing HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.ngs.io/climate-preproc/internal/adapter/store/dataset"
	"go.ngs.io/climate-preproc/internal/cmor/fixes"
	"go.ngs.io/climate-preproc/internal/config"
	httpHandler "go.ngs.io/climate-preproc/internal/http"
	"go.ngs.io/climate-preproc/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("climate-preproc version %s\n", version)
		return
	}

	// Load configuration from environment.
	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := cfg.NewLogger()

	log.Info("Starting climate preprocessing server...")
	log.Infof("Port: %s", cfg.Port)
	log.Infof("Data directory: %s", cfg.DataDir)
	log.Infof("Fx catalog: %s", cfg.FxCatalogPath)

	paths, err := usecase.NewPaths(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to resolve data directory: %v", err)
	}

	// Initialize stores. Fx fields are small and reused across requests, so
	// they are served from memory after the first read.
	store := dataset.NewStore(log)
	fxLoader := dataset.NewCachedLoader(store)
	catalog := usecase.NewFxCatalog(cfg.FxCatalogPath, log)
	registry := fixes.NewRegistry(log)
	log.Infof("Registered CMOR fixes for %d dataset variables", len(registry.Keys()))

	// Initialize use case.
	preprocessUC := usecase.NewPreprocessUseCase(paths, store, fxLoader, registry, catalog, log)

	// Setup router.
	router := httpHandler.SetupRouter(preprocessUC, httpHandler.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	})

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Server listening on %s", addr)
	log.Infof("Health check: http://localhost:%s/health", cfg.Port)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Climate Preprocessing Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  climate-preproc-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -env PATH      Optional .env file (default: .env)")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  DATA_DIR                Root directory for all request paths (default: ./data)")
	fmt.Println("  FX_CATALOG_PATH         TOML catalog of fx fields per dataset (default: ./data/fx_catalog.toml)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  LOG_LEVEL               Log level (default: info)")
	fmt.Println("  LOG_FORMAT              text or json (default: text)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                                   Health check")
	fmt.Println("  GET  /v1/operators                             List statistics operators")
	fmt.Println("  POST /v1/preprocess/area-statistics            Area statistics")
	fmt.Println("  POST /v1/preprocess/zonal-statistics           Zonal statistics")
	fmt.Println("  POST /v1/preprocess/meridional-statistics      Meridional statistics")
	fmt.Println("  POST /v1/preprocess/extract-region             Extract a longitude/latitude box")
	fmt.Println("  POST /v1/preprocess/extract-named-regions      Extract labelled regions")
	fmt.Println("  GET  /v1/derive                                List derived variables")
	fmt.Println("  POST /v1/derive/:name                          Derive a variable")
	fmt.Println("  GET  /v1/fixes                                 List CMOR fixes")
	fmt.Println("  POST /v1/fixes/apply                           Apply CMOR file fixes")
	fmt.Println()
}
