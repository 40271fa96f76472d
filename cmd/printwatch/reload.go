package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/logger"
)

type configSetter interface {
	SetConfig(cfg *config.Config) error
}

// reloadOnHangup re-reads the configuration file on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, path, levelOverride string, target configSetter, log *logger.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			reloadConfig(path, levelOverride, target, log)
		}
	}
}

// reloadConfig loads path and applies it from the next cycle. A file that
// fails to load or validate leaves the running configuration in place. The
// log level follows the file unless -log-level was given.
func reloadConfig(path, levelOverride string, target configSetter, log *logger.Logger) error {
	if path == "" {
		log.Warn("configuration reload skipped, running on defaults without a file")
		return nil
	}
	cfg, err := config.Load(path)
	if err == nil {
		err = target.SetConfig(cfg)
	}
	if err != nil {
		log.Warn("configuration reload rejected", "path", path, "error", err)
		return err
	}
	if levelOverride == "" {
		if level := logger.LevelFromString(cfg.Logging.Level); level != log.GetLevel() {
			log.SetLevel(level)
		}
	}
	log.Info("configuration reloaded", "path", path, "log_level", logger.LevelToString(log.GetLevel()))
	return nil
}
