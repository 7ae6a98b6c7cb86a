package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soundgraph/conductor"
	"github.com/soundgraph/conductor/config"
	"github.com/soundgraph/conductor/modules/configwatcher"
	"github.com/soundgraph/conductor/modules/endpoint"
	"github.com/soundgraph/conductor/modules/scheduler"
	"github.com/soundgraph/conductor/modules/statusapi"
)

// eventTypeShutdown is pushed when the daemon receives a termination
// signal; its batch-terminal hook quits the loop once in-flight events
// have finished.
const eventTypeShutdown = "daemon-shutdown"

func newRootCommand() *cobra.Command {
	var (
		configName string
		configDirs []string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "conductord",
		Short: "Session manager daemon for a user-space audio/video server",
		Long: `conductord mirrors media graph objects into events and runs
priority-ordered, interest-matched hooks in reaction to them. Hooks come
from built-in modules and from declarative rules in the configuration
file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configName, configDirs, logLevel)
		},
	}

	cmd.Flags().StringVar(&configName, "config", "conductor.yaml", "configuration file name")
	cmd.Flags().StringSliceVar(&configDirs, "config-dir", defaultConfigDirs(), "configuration search directories, first match wins")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")
	return cmd
}

func defaultConfigDirs() []string {
	dirs := []string{}
	if home, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, home+"/conductor")
	}
	return append(dirs, "/etc/conductor")
}

func runDaemon(ctx context.Context, configName string, configDirs []string, logLevel string) error {
	loader := config.NewLoader()
	for _, dir := range configDirs {
		loader.AddPath(dir)
	}

	cfg, err := loader.Load(configName)
	if err != nil {
		// A missing config is not fatal; the daemon runs with built-in
		// behaviour only.
		cfg = &config.Config{}
	}
	if logLevel != "" {
		cfg.Daemon.LogLevel = logLevel
	}

	logger := newLogger(cfg.Daemon.LogLevel)
	core := conductor.NewCore(logger)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	if err := config.CompileRules(cfg, dispatcher); err != nil {
		return err
	}

	if err := core.RegisterModule(endpoint.NewModule()); err != nil {
		return err
	}
	if dirs := loader.Paths(); len(dirs) > 0 {
		watched := make([]string, 0, len(dirs))
		for _, dir := range dirs {
			if _, statErr := os.Stat(dir); statErr == nil {
				watched = append(watched, dir)
			}
		}
		if len(watched) > 0 {
			if err := core.RegisterModule(configwatcher.NewModule(watched...)); err != nil {
				return err
			}
		}
	}
	if cfg.Daemon.RescanSchedule != "" {
		sched := scheduler.NewModule(scheduler.Schedule{
			Name:      "graph-rescan",
			Spec:      cfg.Daemon.RescanSchedule,
			EventType: "graph-rescan",
			Priority:  5,
		})
		if err := core.RegisterModule(sched); err != nil {
			return err
		}
	}
	if cfg.Daemon.StatusAddr != "" {
		if err := core.RegisterModule(statusapi.NewModule(cfg.Daemon.StatusAddr)); err != nil {
			return err
		}
	}

	if err := core.InitModules(); err != nil {
		return err
	}
	if err := core.StartModules(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := core.StopModules(context.Background()); stopErr != nil {
			logger.Error("Module shutdown failed", "error", stopErr)
		}
	}()

	// Shutdown is itself an event: the quit hook fires after the queue has
	// drained, so in-flight reactions complete before the loop stops.
	quit := conductor.NewSimpleEventHook("daemon-quit", -1_000_000, conductor.ExecAfterEvents,
		func(context.Context, *conductor.Event) error {
			core.Quit()
			return nil
		})
	quit.AddInterest(conductor.NewConstraint(
		conductor.ConstraintEventProperty, conductor.EventTypeKey,
		conductor.OpEquals, conductor.StringOperand(eventTypeShutdown)))
	if err := dispatcher.RegisterHook(quit); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		sig := <-signals
		logger.Info("Received signal, shutting down", "signal", sig.String())
		props := conductor.NewProperties()
		props.Set("signal", sig.String())
		e, evtErr := conductor.NewEvent(eventTypeShutdown, -1_000_000, props, nil, nil)
		if evtErr != nil {
			core.Quit()
			return
		}
		if pushErr := dispatcher.PushEvent(e); pushErr != nil {
			core.Quit()
		}
	}()

	logger.Info("conductord running", "hooks", len(dispatcher.Hooks()))
	return core.Run(ctx)
}

// slogLogger adapts log/slog to the conductor.Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

func newLogger(level string) conductor.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{logger: slog.New(handler)}
}

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
