// Command declwire runs the reference component host: modules are
// directories under a module root, components are wired by the bundled
// dependency-management engine, and the registry is inspectable over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/declwire/declwire"
	"github.com/declwire/declwire/engine"
	"github.com/declwire/declwire/fshost"
	"github.com/declwire/declwire/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "configuration file (.toml, .yaml, .json)")
		moduleDir  = flag.String("modules", "", "module root directory (overrides config)")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := &slogLogger{slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}

	cfg := &declwire.Config{}
	if *configPath != "" {
		loaded, err := declwire.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := declwire.ApplyDefaults(cfg); err != nil {
		return err
	}
	if *moduleDir != "" {
		cfg.ModuleDir = *moduleDir
	}

	types := registry.New()

	var hostOpts []fshost.Option
	if cfg.RescanSpec != "" {
		hostOpts = append(hostOpts, fshost.WithRescanSpec(cfg.RescanSpec))
	}
	host, err := fshost.New(cfg.ModuleDir, types, logger, hostOpts...)
	if err != nil {
		return err
	}

	runtime := engine.New(logger, engine.WithHost(host))

	bus := declwire.NewEventBus(logger)
	_ = bus.RegisterObserver(declwire.NewFunctionalObserver("event-log",
		func(_ context.Context, event cloudevents.Event) error {
			logger.Debug("Lifecycle event", "type", event.Type(), "id", event.ID())
			return nil
		}))

	manager := declwire.NewComponentManager(host, runtime, logger,
		declwire.WithHeaderName(cfg.Header),
		declwire.WithStopTimeout(cfg.StopTimeout),
		declwire.WithSubject(bus),
	)

	if err := manager.Start(); err != nil {
		return fmt.Errorf("failed to start component manager: %w", err)
	}
	if err := host.Start(); err != nil {
		return fmt.Errorf("failed to start module host: %w", err)
	}

	var server *http.Server
	if cfg.InspectAddr != "" {
		server = &http.Server{Addr: cfg.InspectAddr, Handler: declwire.NewInspectHandler(manager)}
		go func() {
			logger.Info("Inspection endpoint listening", "addr", cfg.InspectAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Inspection endpoint failed", "error", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")

	if server != nil {
		_ = server.Close()
	}
	if err := host.Stop(); err != nil {
		logger.Error("Failed to stop module host", "error", err)
	}
	if err := manager.Stop(); err != nil {
		logger.Error("Failed to stop component manager", "error", err)
	}
	return nil
}

// slogLogger adapts log/slog to the declwire Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
