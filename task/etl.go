package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/solarcast-etl/capacity"
	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/dataset"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/features"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/notify"
	"github.com/icodeforyou/solarcast-etl/openmeteo"
	"github.com/icodeforyou/solarcast-etl/production"
	"github.com/icodeforyou/solarcast-etl/rte"
	"github.com/icodeforyou/solarcast-etl/weather"
)

// Store is the part of the database an ETL run reads from and writes to.
type Store interface {
	Coordinates(ctx context.Context, table string) ([]weather.Coordinate, error)
	Refresh(ctx context.Context, table string, ds *frame.Frame) (int, error)
	SaveRun(ctx context.Context, r database.RunRow) error
}

// Sources are the upstream APIs of one run.
type Sources struct {
	Production rte.Paginator
	Registry   capacity.RecordFetcher
	Historical weather.Source
	Forecast   weather.Source
	Sleep      weather.Sleeper
}

// NewSources wires the HTTP clients described by cnfg. Each upstream host gets its own
// circuit breaker.
func NewSources(logger *slog.Logger, cnfg *config.AppConfig) Sources {
	policy := fetch.Policy{
		MaxAttempts: cnfg.Retry.MaxAttempts,
		Backoff:     fetch.Exponential(cnfg.Retry.Multiplier, cnfg.Retry.MinWait, cnfg.Retry.MaxWait),
		Retryable:   etlerr.Retryable,
		Sleep:       fetch.SleepContext,
	}
	odre := fetch.NewClient(logger.With("source", "odre"),
		fetch.NewHTTPTransport("odre", cnfg.Retry.RequestTimeout), policy)
	meteo := fetch.NewClient(logger.With("source", "open-meteo"),
		fetch.NewHTTPTransport("open-meteo", cnfg.Retry.RequestTimeout), policy)

	return Sources{
		Production: odre,
		Registry:   odre,
		Historical: openmeteo.New(meteo, cnfg.Weather.HistoricalURL),
		Forecast:   openmeteo.New(meteo, cnfg.Weather.ForecastURL),
		Sleep:      fetch.SleepContext,
	}
}

type Etl struct {
	logger   *slog.Logger
	store    Store
	sources  Sources
	notifier notify.Notifier
	now      func() time.Time
}

func NewEtl(logger *slog.Logger, store Store, sources Sources, notifier notify.Notifier) *Etl {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Etl{logger: logger, store: store, sources: sources, notifier: notifier, now: time.Now}
}

// Run executes one full inference refresh and records it in the run history.
func (e *Etl) Run(ctx context.Context, cnfg *config.AppConfig) (database.RunRow, error) {
	run := database.RunRow{ID: uuid.NewString(), Started: e.now(), Status: database.RunRunning}
	logger := e.logger.With(slog.String("run_id", run.ID))

	if err := e.store.SaveRun(ctx, run); err != nil {
		logger.Warn("could not record run start", slog.Any("error", err))
	}

	rows, err := e.run(ctx, logger, cnfg, run)
	run.Finished = e.now()
	run.Rows = rows
	if err != nil {
		run.Status = database.RunFailed
		run.Error = err.Error()
		logger.Error("etl run failed", slog.Duration("elapsed", run.Finished.Sub(run.Started)), slog.Any("error", err))
	} else {
		run.Status = database.RunSucceeded
		logger.Info("etl run done", slog.Duration("elapsed", run.Finished.Sub(run.Started)), slog.Int("rows", rows))
	}

	// The run outcome is still worth keeping when ctx expired during the run.
	if saveErr := e.store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
		logger.Warn("could not record run end", slog.Any("error", saveErr))
	}
	return run, err
}

func (e *Etl) run(ctx context.Context, logger *slog.Logger, cnfg *config.AppConfig, run database.RunRow) (int, error) {
	region := cnfg.Region.Code
	variables := cnfg.Weather.Variables

	coords, err := stage(logger, "coordinates", func() ([]weather.Coordinate, error) {
		coords, err := e.store.Coordinates(ctx, cnfg.Database.CoordinateTable)
		if err != nil {
			return nil, err
		}
		return weather.OrderScenarios(coords, cnfg.Features.CentralScenario)
	})
	if err != nil {
		return 0, err
	}

	prod, err := stage(logger, "production", func() (*frame.Frame, error) {
		raw, err := rte.Production(ctx, e.sources.Production, rte.Query{
			URL:    cnfg.Production.URL,
			Region: region,
			NHours: cnfg.Production.NHours,
			Limit:  cnfg.Production.BatchLimit,
			Select: cnfg.Production.Select,
		}, e.now())
		if err != nil {
			return nil, err
		}
		return production.Prepare(raw, region, cnfg.Region.AggregationStep, production.Inference)
	})
	if err != nil {
		return 0, err
	}

	first, last, err := weather.HistoricalRange(prod)
	if err != nil {
		return 0, err
	}

	historical, err := stage(logger, "historical weather", func() (*frame.Frame, error) {
		w, err := e.reduceScenarios(ctx, logger, e.sources.Historical, coords, first, last, cnfg.Weather)
		if err != nil {
			return nil, err
		}
		return weather.HistoricalWindow(logger, w, prod)
	})
	if err != nil {
		return 0, err
	}

	forecast, err := stage(logger, "forecast weather", func() (*frame.Frame, error) {
		horizon := cnfg.Weather.LenPrev
		end := last.Add(time.Duration(horizon) * time.Hour)
		w, err := e.reduceScenarios(ctx, logger, e.sources.Forecast, coords, weather.ForecastStart(last), end, cnfg.Weather)
		if err != nil {
			return nil, err
		}
		return weather.ForecastWindow(w, last, horizon)
	})
	if err != nil {
		return 0, err
	}

	installed, err := stage(logger, "installed capacity", func() (float64, error) {
		units, err := capacity.FetchRegistry(ctx, e.sources.Registry, cnfg.Capacity.RegistryURL, region)
		if err != nil {
			return 0, err
		}
		return capacity.Estimate(units, region)
	})
	if err != nil {
		return 0, err
	}

	ds, err := stage(logger, "assemble", func() (*frame.Frame, error) {
		raw, err := dataset.FullRawInferenceDataset(prod, historical, forecast, installed)
		if err != nil {
			return nil, err
		}
		return features.Transform(logger, raw, cnfg.Features.Options())
	})
	if err != nil {
		return 0, err
	}
	if ds.Len() == 0 {
		return 0, etlerr.EmptyResult("assemble", "no row left after the feature transform of %d variables", len(variables))
	}

	rows, err := stage(logger, "load", func() (int, error) {
		return e.store.Refresh(ctx, cnfg.Database.InferenceTable, ds)
	})
	if err != nil {
		return 0, err
	}

	if err := e.notifier.Refreshed(ctx, notify.Event{
		RunID:       run.ID,
		Table:       cnfg.Database.InferenceTable,
		Rows:        rows,
		RefreshedAt: e.now(),
	}); err != nil {
		// the table is already replaced, a missed notification does not fail the run
		logger.Warn("could not publish refresh", slog.Any("error", err))
	}
	return rows, nil
}

func (e *Etl) reduceScenarios(ctx context.Context, logger *slog.Logger, src weather.Source,
	coords []weather.Coordinate, start, end time.Time, cnfg config.AppConfigWeather) (*frame.Frame, error) {

	sleep := e.sources.Sleep
	if sleep == nil {
		sleep = fetch.SleepContext
	}
	tables, err := weather.FetchScenarios(ctx, logger, src, sleep, coords, start, end, cnfg.Variables, cnfg.CallDelay)
	if err != nil {
		return nil, err
	}
	return weather.Reduce(tables, cnfg.Variables)
}

type sized interface {
	Len() int
}

// stage logs the start, end and failure of one pipeline step.
func stage[T any](logger *slog.Logger, name string, fn func() (T, error)) (T, error) {
	logger.Debug("stage started", slog.String("stage", name))
	started := time.Now()

	v, err := fn()
	if err != nil {
		logger.Error("stage failed", slog.String("stage", name), slog.Any("error", err))
		return v, fmt.Errorf("%s: %w", name, err)
	}

	attrs := []any{slog.String("stage", name), slog.Duration("elapsed", time.Since(started))}
	switch s := any(v).(type) {
	case sized:
		attrs = append(attrs, slog.Int("rows", s.Len()))
	case []weather.Coordinate:
		attrs = append(attrs, slog.Int("scenarios", len(s)))
	}
	logger.Info("stage done", attrs...)
	return v, nil
}

// NewEtlTask returns the scheduled ETL job. cnfg is read at every run so a reloaded
// configuration applies to the next one.
func NewEtlTask(logger *slog.Logger, store Store, notifier notify.Notifier, cnfg func() *config.AppConfig) func() {
	return func() {
		logger.Debug("running etl task...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		c := cnfg()
		etl := NewEtl(logger, store, NewSources(logger, c), notifier)
		if _, err := etl.Run(ctx, c); err != nil {
			return
		}
		logger.Info("etl task done")
	}
}
