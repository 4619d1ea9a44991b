package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/icodeforyou/solarcast-etl/logging"
	"github.com/icodeforyou/solarcast-etl/notify"
	"github.com/icodeforyou/solarcast-etl/task"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run the etl once and exit")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := hours.SetZone(cnfg.Region.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := logging.NewConsoleHandler(os.Stdout, cnfg.Logging.GetConsoleLevel())
	slog.New(consoleHandler).Debug("solarcast-etl is starting...", slog.String("version", Version))

	db, err := database.New(ctx, database.Driver(cnfg.Database.Driver), cnfg.Database.DSN)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewDBHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	var notifier notify.Notifier = notify.Nop{}
	if cnfg.Mqtt.Broker != "" {
		publisher := notify.New(logger.With("module", "notify"), notify.Options{
			Broker:   cnfg.Mqtt.Broker,
			ClientID: cnfg.Mqtt.ClientID,
			Username: cnfg.Mqtt.Username,
			Password: cnfg.Mqtt.Password,
			Topic:    cnfg.Mqtt.Topic,
		})
		if err := publisher.Connect(); err != nil {
			logger.Warn("mqtt connection error, refreshes are not published", slog.Any("error", err))
		} else {
			defer publisher.Disconnect()
			notifier = publisher
		}
	}

	if *once {
		etl := task.NewEtl(logger.With("module", "etl"), db,
			task.NewSources(logger.With("module", "fetch"), cnfg), notifier)
		if _, err := etl.Run(ctx, cnfg); err != nil {
			exitWithError(logger, err)
		}
		return
	}

	tasks := task.NewTasks(db, notifier, cnfg)
	if err := tasks.Run(); err != nil {
		exitWithError(logger, err)
	}
	defer tasks.Stop()

	config.Watch(*configPath, logger.With("module", "config"), tasks.SetConfig)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("main context done")
	case sig := <-sigCh:
		logger.Info("received signal", slog.Any("signal", sig))
		cancel()
	}
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
