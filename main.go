package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradeledger/config"
	"tradeledger/internal/adapters/binanceclient"
	"tradeledger/internal/adapters/csvsource"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/app"
	"tradeledger/internal/ports"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize zap logger: %v", err)
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Load Multiplier Table
	multipliers, err := config.LoadMultiplierTable(cfg.MultiplierTablePath)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load multiplier table")
		log.Fatalf("FATAL: Failed to load multiplier table: %v", err)
	}

	// 5. Initialize Execution Source
	var source ports.ExecutionSource
	switch cfg.Source {
	case "binance":
		source, err = binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Symbol:     cfg.Instrument,
			Account:    cfg.Account,
			Logger:     appLogger,
		})
	default:
		source, err = csvsource.New(cfg.CSVPath, appLogger)
	}
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution source")
		log.Fatalf("FATAL: Failed to initialize execution source: %v", err)
	}

	// 6. Initialize Application Service
	importService, err := app.NewImportService(cfg, appLogger, source, repo, repo, multipliers)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize import service")
		log.Fatalf("FATAL: Failed to initialize import service: %v", err)
	}

	// 7. Run the import
	summary, err := importService.Run(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Import run failed")
		log.Fatalf("FATAL: Import run failed: %v", err)
	}
	for _, f := range summary.Failures {
		appLogger.Warn(ctx, "Import finished with failure", map[string]interface{}{"failure": f.Error()})
	}
	appLogger.Info(ctx, "Import finished", map[string]interface{}{
		"fetched":   summary.ExecutionsFetched,
		"imported":  summary.ExecutionsImported,
		"trades":    summary.TradesCreated,
		"positions": summary.PositionsCreated,
		"failures":  len(summary.Failures),
	})
}
