// Package main provides the entry point for the ConnMan indicator.
// The indicator mirrors the state of the ConnMan daemon and lets the user
// connect, disconnect and power technologies from the system tray, a
// terminal interface or one-shot commands.
//
// Features:
//   - Live service lists for wired and wifi networks
//   - Global status icon derived from every connection
//   - Passphrase prompts for secured networks
//   - Command-line interface for scripting and automation
//
// Usage:
//
//	connman-indicator [options]
//
// Environment:
//
//	The application requires connmand to be reachable on the system bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/yllada/connman-indicator/cli"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/config"
	"github.com/yllada/connman-indicator/connman"
	"github.com/yllada/connman-indicator/dbuslink"
	"github.com/yllada/connman-indicator/metrics"
	"github.com/yllada/connman-indicator/notify"
	"github.com/yllada/connman-indicator/tray"
	"github.com/yllada/connman-indicator/tui"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

// notifyQueueSize is how many notifications wait behind a slow server.
const notifyQueueSize = 8

// shutdownTimeout bounds the engine teardown on exit.
const shutdownTimeout = 2 * time.Second

type options struct {
	// General flags
	showVersion bool
	verbose     bool
	showHelp    bool
	configPath  string

	// Mode flags
	tray bool
	tui  bool

	// CLI flags
	status     bool
	list       bool
	connect    string
	disconnect string
	enable     string
	disable    string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("connman-indicator", pflag.ContinueOnError)
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show help message")
	fs.StringVarP(&opts.configPath, "config", "c", "", "Read configuration from FILE")

	fs.BoolVar(&opts.tray, "tray", false, "Show the system tray indicator (default)")
	fs.BoolVar(&opts.tui, "tui", false, "Run the terminal interface")

	fs.BoolVar(&opts.status, "status", false, "Show the current connection status")
	fs.BoolVar(&opts.list, "list", false, "List known networks")
	fs.StringVar(&opts.connect, "connect", "", "Connect to a network by name or object path")
	fs.StringVar(&opts.disconnect, "disconnect", "", "Disconnect a network ('all' if empty)")
	fs.Lookup("disconnect").NoOptDefVal = "all"
	fs.StringVar(&opts.enable, "enable", "", "Turn a technology on")
	fs.StringVar(&opts.disable, "disable", "", "Turn a technology off")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.tray && opts.tui {
		return nil, errors.New("--tray and --tui are mutually exclusive")
	}
	return opts, nil
}

func (o *options) cliMode() bool {
	return o.status || o.list || o.connect != "" || o.disconnect != "" || o.enable != "" || o.disable != ""
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Handle help flag
	if opts.showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	// Handle version flag
	if opts.showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger with structured logging and optional file output
	logLevel := common.LevelInfo
	if opts.verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       logLevel,
		EnableFile:  cfg.LogToFile,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals (SIGINT, SIGTERM)
	setupSignalHandler(cancel)

	if err := run(ctx, cancel, opts, cfg); err != nil {
		common.LogError("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		common.CloseLogger()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// run wires the engine to the bus and hands it to the selected front end.
func run(ctx context.Context, cancel context.CancelFunc, opts *options, cfg *config.Config) error {
	bus, err := dbuslink.Connect(cfg.Bus, cfg.DaemonName)
	if err != nil {
		return err
	}
	defer bus.Close()

	// The loop outlives ctx so the engine can still tear down after a
	// signal cancels it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := connman.NewEventLoop()
	go loop.Run(loopCtx)

	manager := connman.NewManager(bus, loop, cfg.Engine())
	if cfg.MetricsAddr != "" {
		if err := startMetrics(ctx, manager, cfg.MetricsAddr); err != nil {
			return err
		}
	}
	manager.Start()
	defer shutdown(manager)

	switch {
	case opts.cliMode():
		return runCLI(ctx, manager, opts, cfg)
	case opts.tui:
		common.LogInfo("Starting %s v%s (terminal)", common.AppName, appVersion)
		return tui.Run(ctx, manager)
	default:
		common.LogInfo("Starting %s v%s", common.AppName, appVersion)
		runTray(ctx, cancel, manager, cfg)
		return nil
	}
}

// shutdown stops the engine while its loop is still running.
func shutdown(manager *connman.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		common.LogWarn("Engine shutdown: %v", err)
	}
}

func startMetrics(ctx context.Context, manager *connman.Manager, addr string) error {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	manager.SetObserver(collector)

	log := common.GetLogger().Component("metrics")
	go func() {
		if err := collector.Serve(ctx, addr, log); err != nil {
			log.Error("%v", err)
		}
	}()
	return nil
}

// runCLI handles command-line interface operations.
func runCLI(ctx context.Context, manager *connman.Manager, opts *options, cfg *config.Config) error {
	cliApp := cli.New(manager, cfg.ConnectTimeout)

	switch {
	case opts.status:
		return cliApp.Status(ctx)
	case opts.list:
		return cliApp.List(ctx)
	case opts.connect != "":
		return cliApp.Connect(ctx, opts.connect)
	case opts.disconnect != "":
		return cliApp.Disconnect(ctx, opts.disconnect)
	case opts.enable != "":
		return cliApp.Enable(ctx, opts.enable)
	case opts.disable != "":
		return cliApp.Disable(ctx, opts.disable)
	}
	return nil
}

func runTray(ctx context.Context, cancel context.CancelFunc, manager *connman.Manager, cfg *config.Config) {
	var tracker *notify.Tracker
	if cfg.ShowNotifications {
		notifier, err := notify.New()
		if err != nil {
			common.LogWarn("Notifications disabled: %v", err)
		} else {
			defer notifier.Close()
			queue := notify.NewQueue(notifier, notifyQueueSize)
			defer queue.Close()
			tracker = notify.NewTracker(queue)
		}
	}

	askpass := tray.NewAskpassPrompt(cfg.AskpassCommand, manager, func(event connman.AuthEvent) {
		if tracker == nil {
			return
		}
		if err := tracker.AuthFailed(event); err != nil {
			common.LogDebug("Notification failed: %v", err)
		}
	})
	manager.SetCredentialPrompt(askpass)
	defer askpass.Close()

	indicator := tray.NewIndicator(manager, cfg.VisibleNetworks, cfg.SettingsCommand, tracker)
	go func() {
		<-ctx.Done()
		indicator.Quit()
	}()
	indicator.Run(cancel)
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
// When a signal is received, it cancels the context to allow cleanup.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
