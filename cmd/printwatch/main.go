// Command printwatch scans the configured networks for printers, records
// their panel status as snapshots and serves the history over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/egperson/network-printer-solution/agent/scanner"
	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/logger"
	"github.com/egperson/network-printer-solution/common/ws"
	"github.com/egperson/network-printer-solution/server/alerts"
	"github.com/egperson/network-printer-solution/server/api"
	"github.com/egperson/network-printer-solution/server/monitor"
	"github.com/egperson/network-printer-solution/server/storage"
)

// Version is set at build time.
var Version = "dev"

const configFileName = "printwatch.toml"

type options struct {
	configPath string
	logLevel   string
	once       bool
	limit      int
	isService  bool
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: search standard locations)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	once := flag.Bool("once", false, "Run a single collection cycle and exit")
	limit := flag.Int("limit", 0, "With -once, probe at most this many candidates")
	svcCmd := flag.String("service", "", "Service command: install, uninstall, start, stop, run")
	flag.Parse()

	opts := options{configPath: *configPath, logLevel: *logLevel, once: *once, limit: *limit}

	if *svcCmd != "" {
		if err := handleServiceCommand(*svcCmd, opts); err != nil {
			fmt.Fprintf(os.Stderr, "service %s: %v\n", *svcCmd, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "printwatch: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration file: the explicit path, else the
// first file found in the search paths, else built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if found, _, err := config.FindConfigFile(configFileName); err == nil {
			path = found
		}
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func newLogger(cfg *config.Config, override string, isService bool) *logger.Logger {
	level := cfg.Logging.Level
	if override != "" {
		level = override
	}
	dir := cfg.Logging.Dir
	if dir == "" && isService {
		if data, err := config.GetDataDirectory(true); err == nil {
			dir = filepath.Join(data, "logs")
		}
	}
	log := logger.New(logger.LevelFromString(level), dir, 1000)
	log.SetRotationPolicy(logger.RotationPolicy{
		Enabled:    cfg.Logging.MaxSizeMB > 0,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxFiles:   cfg.Logging.MaxFiles,
	})
	return log
}

// streamLogs pushes warnings and errors to websocket subscribers.
func streamLogs(log *logger.Logger, hub *ws.Hub) {
	log.SetOnLog(func(e logger.LogEntry) {
		if e.Level > logger.WARN {
			return
		}
		hub.Broadcast(ws.NewMessage(ws.MessageTypeLog, map[string]interface{}{
			"level":   logger.LevelToString(e.Level),
			"message": e.Message,
			"context": e.Context,
		}))
	})
}

// openStore applies the default database location when none is configured.
func openStore(cfg *config.Config, isService bool) (storage.Store, error) {
	db := cfg.Database
	if (db.Driver == "" || db.Driver == "sqlite") && db.Path == "" && db.DSN == "" {
		dir, err := config.GetDataDirectory(isService)
		if err != nil {
			return nil, err
		}
		db.Path = filepath.Join(dir, "printwatch.db")
	}
	return storage.NewStore(&db)
}

func run(ctx context.Context, opts options) error {
	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg, opts.logLevel, opts.isService)
	defer log.Close()
	scanner.SetLogger(log)
	storage.SetLogger(log)
	if cfgPath != "" {
		log.Info("configuration loaded", "path", cfgPath)
	} else {
		log.Info("no configuration file found, using defaults")
	}

	store, err := openStore(cfg, opts.isService)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	hub := ws.NewHub()
	defer hub.Stop()
	streamLogs(log, hub)
	defer log.SetOnLog(nil)

	evaluator := alerts.NewEvaluator(store, alerts.EvaluatorConfig{
		Bands:          cfg.Alerts.Bands,
		PrimeSnapshots: cfg.Alerts.PrimeSnapshots,
		Logger:         slog.New(log.SlogHandler()).With("component", "alerts"),
	})
	if err := evaluator.Prime(ctx); err != nil {
		log.Warn("alert history unavailable", "error", err)
	}

	collectorOpts := []scanner.Option{scanner.WithBrowser(scanner.BrowseMDNS)}
	if cfg.SNMP.Enabled {
		collectorOpts = append(collectorOpts, scanner.WithSNMP(scanner.NewSNMPEnricher(cfg.SNMP)))
	}
	collector := scanner.NewCollector(store, collectorOpts...)
	mon := monitor.New(collector, store, evaluator, hub, cfg, log)

	if opts.once {
		snap, err := mon.Collect(ctx, opts.limit)
		if err != nil {
			return err
		}
		log.Info("snapshot stored", "id", snap.ID, "devices", len(snap.Devices))
		return nil
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Web.HTTPPort),
		Handler: api.New(api.Options{
			Store:     store,
			Collector: mon,
			Prober:    collector,
			Hub:       hub,
			Logger:    log,
			Logs:      log,
			Version:   Version,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("query server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if !cfg.Scan.Enabled && len(cfg.Devices) == 0 {
			log.Warn("scanning disabled and no devices declared, scheduler idle")
			<-gctx.Done()
			return nil
		}
		return mon.Run(gctx)
	})
	g.Go(func() error {
		return reloadOnHangup(gctx, cfgPath, opts.logLevel, mon, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("printwatch stopped")
	return err
}
