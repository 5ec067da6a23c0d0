package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/click"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/dispatcher"
	"github.com/seisview/markermap/internal/handlers"
	"github.com/seisview/markermap/internal/host"
	"github.com/seisview/markermap/internal/influx"
	"github.com/seisview/markermap/internal/logging"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/metrics"
	"github.com/seisview/markermap/internal/monitor"
	intOtel "github.com/seisview/markermap/internal/otel"
	"github.com/seisview/markermap/internal/registry"
	"github.com/seisview/markermap/internal/seed"
	"github.com/seisview/markermap/internal/server"
	"github.com/seisview/markermap/internal/session"
	"github.com/seisview/markermap/internal/storage"
	"github.com/spf13/viper"
)

// AppName is used for log file names and telemetry.
const AppName = "markermap"

// CurrentVersion is set at build time with -ldflags "-X main.CurrentVersion=...".
var CurrentVersion = "dev"

var (
	SessionStartTime = time.Now()

	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	LogFile      *os.File
	LogFilePath  string
	OTelProvider *intOtel.Provider
	gelfCloser   io.Closer
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.ConfigFileName+" and .env")
	flag.Usage = usage
	flag.Parse()

	if err := setup(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "export":
		err = exportGeoJSON(args)
	case "check-seed":
		err = checkSeed(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		Logger.Error("Command failed", "command", cmd, "error", err)
		shutdownTelemetry()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [-config dir] [command]

Commands:
  serve                         run the map server (default)
  export [-kind k] [-out file]  write stored markers as GeoJSON
  check-seed <file.hcl>         validate a seed file

`, AppName)
	flag.PrintDefaults()
}

var sess = session.NewContext()

// setup loads configuration and builds the logger. Until the log file is
// open, records go to stdout.
func setup(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		if !errors.Is(err, config.ErrNoConfigFile) {
			return err
		}
		Logger.Warn("No config file found, using defaults", "dir", configDir)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	var err error
	LogFile, err = logging.OpenLogFile(viper.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file, logging to stdout", "error", err)
		LogFile = nil
	} else {
		LogFilePath = LogFile.Name()
	}

	// OTel exports go to the log file alongside the text records.
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && LogFile != nil {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      LogFile,
			MetricWriter:   LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		}
	}

	opts := logging.Options{
		Level:   viper.GetString("logLevel"),
		Context: sess.LogAttrs,
	}
	if LogFile != nil {
		opts.File = LogFile
	}
	if OTelProvider != nil {
		opts.Provider = OTelProvider.LoggerProvider()
	}

	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		w, err := logging.NewGELFWriter(graylogCfg.Address)
		if err != nil {
			Logger.Error("Failed to connect GELF writer", "address", graylogCfg.Address, "error", err)
		} else {
			opts.GELF = logging.NewGELFHandler(w, logging.ParseLevel(opts.Level))
			gelfCloser = w
		}
	}

	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Starting up", "version", CurrentVersion, "logFile", LogFilePath)
	return nil
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
		}
		OTelProvider = nil
	}
	if gelfCloser != nil {
		gelfCloser.Close()
		gelfCloser = nil
	}
	if LogFile != nil {
		LogFile.Close()
		LogFile = nil
	}
}

func newRegistries() (stations, events *registry.Registry) {
	zoom := config.GetMapConfig().ReferenceZoom
	return registry.New(marker.KindStation, registry.WithZoom(zoom)),
		registry.New(marker.KindEvent, registry.WithZoom(zoom))
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stations, events := newRegistries()
	markerCache := cache.NewMarkerCache()

	// storage: restore before the recorder is attached so restored markers
	// are not written back
	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, sess, markerCache, Logger)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}
	var recorder *storage.Recorder
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("init %s storage: %w", storageCfg.Type, err)
		}
		if storageCfg.Restore {
			for _, reg := range []*registry.Registry{stations, events} {
				if _, err := storage.Restore(backend, reg, Logger); err != nil {
					Logger.Error("Failed to restore markers", "kind", reg.Kind(), "error", err)
				}
			}
		}
		recorder = storage.NewRecorder(backend, storageCfg.FlushInterval, Logger)
	}

	collector := metrics.NewCollector(stations, events)

	serverCfg := config.GetServerConfig()
	hub := server.NewHub(stations, events,
		server.WithClientBuffer(serverCfg.ClientBuffer),
		server.WithHubMetrics(collector),
		server.WithHubLogger(Logger.With("component", "hub")),
	)

	var recorderSink registry.Sink
	if recorder != nil {
		recorderSink = recorder
	}
	sinks := registry.NewMultiSink(recorderSink, collector, hub)
	stations.AddSink(sinks)
	events.AddSink(sinks)
	if recorder != nil {
		recorder.Start()
	}

	mapCfg := config.GetMapConfig()
	if mapCfg.SeedFile != "" {
		n, err := seed.Load(mapCfg.SeedFile, stations, events, Logger)
		if err != nil {
			Logger.Error("Failed to load seed file", "path", mapCfg.SeedFile, "error", err)
		} else {
			Logger.Info("Loaded seed file", "path", mapCfg.SeedFile, "markers", n)
		}
	}

	host.Version = CurrentVersion
	hostCfg := config.GetHostConfig()
	notifier, err := host.New(host.Config{
		Type:    hostCfg.Type,
		URL:     hostCfg.URL,
		Secret:  hostCfg.Secret,
		Subject: hostCfg.Subject,
		Timeout: hostCfg.Timeout,
	}, Logger.With("component", "host"))
	if err != nil {
		// standalone clicks still work without a host
		Logger.Error("Failed to create host notifier", "type", hostCfg.Type, "error", err)
		notifier = nil
	}
	if h, ok := notifier.(*host.HTTP); ok {
		if err := h.Healthcheck(ctx); err != nil {
			Logger.Warn("Host endpoint not healthy, selections may fail", "url", hostCfg.URL, "error", err)
		} else {
			Logger.Info("Host endpoint reachable", "url", hostCfg.URL)
		}
	}

	var influxManager *influx.Manager
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("%s.influx.%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")))
		influxManager = influx.NewManager(influxCfg, backupPath, Logger.With("component", "influx"))
		if err := influxManager.Connect(ctx); err != nil {
			Logger.Error("Failed to connect to InfluxDB", "error", err)
		}
	}

	clickOpts := []click.Option{
		click.WithPopupSink(hub),
		click.WithObserver(collector),
		click.WithLogger(Logger.With("component", "click")),
	}
	if notifier != nil {
		clickOpts = append(clickOpts, click.WithHost(notifier))
	}
	if influxManager != nil {
		clickOpts = append(clickOpts, click.WithObserver(influxManager))
	}
	clicks := click.New(stations, events, clickOpts...)
	hub.SetClicks(clicks)

	commands, err := dispatcher.New(Logger)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	handlers.NewService(handlers.Dependencies{
		Stations: stations,
		Events:   events,
		Clicks:   clicks,
		Session:  sess,
		Logger:   Logger,
	}).Register(commands)
	registerLifecycleHandlers(commands)

	monitorCfg := config.GetMonitorConfig()
	var monitorService *monitor.Service
	if monitorCfg.Enabled {
		deps := monitor.Dependencies{
			Stations: stations,
			Events:   events,
			Influx:   influxManager,
			Logger:   Logger.With("component", "monitor"),
			Interval: monitorCfg.Interval,
		}
		if recorder != nil {
			deps.Recorder = recorder
		}
		monitorService = monitor.NewService(deps)
		monitorService.Start(ctx)
	}

	srv := server.New(server.Dependencies{
		Config:   serverCfg,
		Map:      mapCfg,
		Stations: stations,
		Events:   events,
		Commands: commands,
		Hub:      hub,
		Metrics:  collector.Handler(),
		Counter:  collector,
		Logger:   Logger.With("component", "server"),
	})
	runErr := srv.Run(ctx)

	Logger.Info("Shutting down")
	if monitorService != nil {
		monitorService.Stop()
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			Logger.Error("Failed to flush recorder", "error", err)
		}
	}
	if backend != nil {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
		if exp, ok := backend.(storage.Exportable); ok && exp.GetExportedFilePath() != "" {
			Logger.Info("Exported session", "path", exp.GetExportedFilePath())
		}
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			Logger.Error("Failed to close host notifier", "error", err)
		}
	}
	if err := influxManager.Close(); err != nil {
		Logger.Error("Failed to close InfluxDB client", "error", err)
	}
	if err := SlogManager.Flush(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	return runErr
}

// registerLifecycleHandlers adds commands that concern the process rather
// than the registries.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		return CurrentVersion, nil
	})

	// args: source, message, level
	d.Register(":LOG:", func(_ context.Context, e dispatcher.Event) (any, error) {
		if len(e.Args) < 2 {
			return nil, fmt.Errorf(":LOG: needs source and message, got %d args", len(e.Args))
		}
		level := "info"
		if len(e.Args) > 2 {
			level = e.Args[2]
		}
		SlogManager.WriteLog(e.Args[0], e.Args[1], level)
		return nil, nil
	})
}
