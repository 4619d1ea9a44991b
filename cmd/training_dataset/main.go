package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/solarcast-etl/capacity"
	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/dataset"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/icodeforyou/solarcast-etl/logging"
	"github.com/icodeforyou/solarcast-etl/production"
	"github.com/icodeforyou/solarcast-etl/task"
	"github.com/icodeforyou/solarcast-etl/weather"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	csvPath := flag.String("production", "", "path to the ';' separated production export")
	from := flag.String("start", "", "first day, YYYY-MM-DD")
	to := flag.String("end", "", "last day, YYYY-MM-DD")
	output := flag.String("output", "training_dataset.csv", "path of the CSV to write")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		fail(slog.Default(), fmt.Errorf("failed to load config: %w", err))
	}
	if err := hours.SetZone(cnfg.Region.GetTimezone()); err != nil {
		fail(slog.Default(), fmt.Errorf("failed to set timezone: %w", err))
	}
	logger := slog.New(logging.NewConsoleHandler(os.Stderr, cnfg.Logging.GetConsoleLevel()))

	start, end, err := parseRange(*from, *to)
	if err != nil {
		fail(logger, err)
	}
	if len(cnfg.Weather.Variables) == 0 {
		fail(logger, etlerr.Configuration("training dataset", "no weather variable configured"))
	}

	ds, err := build(context.Background(), logger, cnfg, *csvPath, start, end)
	if err != nil {
		fail(logger, err)
	}

	out, err := os.Create(*output)
	if err != nil {
		fail(logger, fmt.Errorf("creating %s: %w", *output, err))
	}
	defer out.Close()
	if err := dataset.WriteCSV(out, ds, ';'); err != nil {
		fail(logger, fmt.Errorf("writing %s: %w", *output, err))
	}

	logger.Info("training dataset written", slog.String("file", *output), slog.Int("rows", ds.Len()), slog.Int("columns", ds.Width()))
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := hours.ParseDate(hours.DateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, etlerr.Configuration("training dataset", "invalid start %q", from)
	}
	end, err := hours.ParseDate(hours.DateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, etlerr.Configuration("training dataset", "invalid end %q", to)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, etlerr.Configuration("training dataset", "start %s is not before end %s", from, to)
	}
	return start, end, nil
}

func build(ctx context.Context, logger *slog.Logger, cnfg *config.AppConfig, csvPath string, start, end time.Time) (*frame.Frame, error) {
	region := cnfg.Region.Code

	in, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening production export: %w", err)
	}
	defer in.Close()
	raw, err := production.ReadCSV(in, ';')
	if err != nil {
		return nil, err
	}
	prod, err := production.Prepare(raw, region, cnfg.Region.AggregationStep, production.Training)
	if err != nil {
		return nil, err
	}
	logger.Info("production prepared", slog.Int("rows", prod.Len()))

	db, err := database.New(ctx, database.Driver(cnfg.Database.Driver), cnfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	coords, err := db.Coordinates(ctx, cnfg.Database.CoordinateTable)
	if err != nil {
		return nil, err
	}
	ordered, err := weather.OrderScenarios(coords, cnfg.Features.CentralScenario)
	if err != nil {
		return nil, err
	}

	sources := task.NewSources(logger, cnfg)
	scenarios, err := weather.FetchScenarios(ctx, logger, sources.Historical, fetch.SleepContext,
		ordered, start, end, cnfg.Weather.Variables, cnfg.Weather.CallDelay)
	if err != nil {
		return nil, err
	}
	reduced, err := weather.Reduce(scenarios, cnfg.Weather.Variables)
	if err != nil {
		return nil, err
	}
	logger.Info("weather reduced", slog.Int("scenarios", len(scenarios)), slog.Int("rows", reduced.Len()))

	units, err := capacity.FetchRegistry(ctx, sources.Registry, cnfg.Capacity.RegistryURL, region)
	if err != nil {
		return nil, err
	}
	curve, err := capacity.HourlyCurve(units, region, start, end.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	normalized, err := dataset.NormalizeByCurve(prod, curve)
	if err != nil {
		return nil, err
	}

	return dataset.CreateExploratoryDataset(logger, normalized, reduced)
}

func fail(logger *slog.Logger, err error) {
	logger.Error("training dataset failed", slog.Any("error", err))
	os.Exit(1)
}
