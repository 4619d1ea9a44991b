package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/logging"
	"github.com/icodeforyou/solarcast-etl/weather"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	csvPath := flag.String("file", "", "path to the ';' separated id;geometry file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger := slog.New(logging.NewConsoleHandler(os.Stderr, cnfg.Logging.GetConsoleLevel()))

	if err := run(context.Background(), logger, cnfg, *csvPath); err != nil {
		logger.Error("coordinate import failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cnfg *config.AppConfig, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()

	coords, err := weather.ReadCoordinates(in, ';')
	if err != nil {
		return err
	}
	if _, err := weather.OrderScenarios(coords, cnfg.Features.CentralScenario); err != nil {
		logger.Warn("the configured central scenario is not part of the import", slog.Any("error", err))
	}

	db, err := database.New(ctx, database.Driver(cnfg.Database.Driver), cnfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	if err := db.SaveCoordinates(ctx, cnfg.Database.CoordinateTable, coords); err != nil {
		return err
	}
	logger.Info("coordinates imported", slog.Int("count", len(coords)), slog.String("table", cnfg.Database.CoordinateTable))
	return nil
}
