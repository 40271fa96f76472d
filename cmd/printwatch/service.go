package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kardianos/service"

	"github.com/egperson/network-printer-solution/common/config"
)

// program implements service.Interface
type program struct {
	opts      options
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("PrintWatch service starting")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := run(ctx, p.opts); err != nil && p.svcLogger != nil {
			p.svcLogger.Error(err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}

	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("PrintWatch service stopped")
		}
	case <-time.After(30 * time.Second):
		if p.svcLogger != nil {
			p.svcLogger.Warning("PrintWatch service stopped with timeout")
		}
	}
	return nil
}

// getServiceConfig returns the service configuration for the current platform.
func getServiceConfig(opts options) *service.Config {
	var workingDir string
	switch runtime.GOOS {
	case "windows":
		workingDir = filepath.Join(os.Getenv("ProgramData"), "PrintWatch")
	case "darwin":
		workingDir = "/Library/Application Support/PrintWatch"
	default:
		workingDir = "/var/lib/printwatch"
	}

	args := []string{"-service", "run"}
	if opts.configPath != "" {
		args = append(args, "-config", opts.configPath)
	}
	if opts.logLevel != "" {
		args = append(args, "-log-level", opts.logLevel)
	}

	return &service.Config{
		Name:             "PrintWatch",
		DisplayName:      "PrintWatch",
		Description:      "Discovers network printers, records supply and status snapshots and raises low-supply alerts.",
		WorkingDirectory: workingDir,
		Arguments:        args,
		Option: service.KeyValue{
			// Windows service options
			"StartType":              "automatic",
			"DelayedAutoStart":       true,
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",

			// Linux systemd options
			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillSignal":        "SIGTERM",

			// macOS launchd options
			"RunAtLoad": true,
			"KeepAlive": true,
		},
	}
}

// handleServiceCommand runs one of install, uninstall, start, stop or run.
func handleServiceCommand(cmd string, opts options) error {
	opts.isService = true
	prg := &program{opts: opts}
	svc, err := service.New(prg, getServiceConfig(opts))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	switch cmd {
	case "run":
		return svc.Run()
	case "install":
		if err := writeDefaultConfig(opts.configPath); err != nil {
			return err
		}
		if err := svc.Install(); err != nil {
			return err
		}
		fmt.Println("Service installed")
	case "uninstall":
		_ = svc.Stop()
		if err := svc.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Service uninstalled")
	case "start":
		if err := svc.Start(); err != nil {
			return err
		}
		fmt.Println("Service started")
	case "stop":
		if err := svc.Stop(); err != nil {
			return err
		}
		fmt.Println("Service stopped")
	default:
		return fmt.Errorf("unknown command %q (use install, uninstall, start, stop or run)", cmd)
	}
	return nil
}

// writeDefaultConfig creates a default configuration file for the service
// unless one already exists.
func writeDefaultConfig(path string) error {
	if path == "" {
		path = config.GetConfigSearchPaths(configFileName)[0]
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Configuration already exists at: %s\n", path)
		return nil
	}
	if err := config.WriteDefaultTOML(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("generate default config at %s: %w", path, err)
	}
	fmt.Printf("Generated default configuration at: %s\n", path)
	return nil
}
