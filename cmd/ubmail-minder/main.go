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

	"github.com/joho/godotenv"

	"github.com/ubitops/ubmail-minder/internal/chrome"
	"github.com/ubitops/ubmail-minder/internal/config"
	"github.com/ubitops/ubmail-minder/internal/forward"
	"github.com/ubitops/ubmail-minder/internal/heartbeat"
	"github.com/ubitops/ubmail-minder/internal/login"
	"github.com/ubitops/ubmail-minder/internal/retry"
)

type minderConfig struct {
	forwardUnread bool
	showBrowser   bool
	browserPath   string
	configPath    string
	envFile       string
	heartbeatPath string
	timeout       time.Duration
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		chrome.DefaultLogger().Error("ubmail-minder failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() minderConfig {
	forwardUnread := flag.Bool("forward-unread-mail", false, "forward unread messages after logging in")
	showBrowser := flag.Bool("show-browser", false, "run with a visible browser window")
	browserPath := flag.String("browser-path", "", "browser executable to launch (default: autodetect)")
	configPath := flag.String("config", "", "YAML file overriding flow locators and timing")
	envFile := flag.String("env-file", "", "dotenv file loaded before reading credentials")
	heartbeatPath := flag.String("heartbeat-file", "last_success.txt", "file stamped after a successful run (empty disables)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	return minderConfig{
		forwardUnread: *forwardUnread,
		showBrowser:   *showBrowser,
		browserPath:   *browserPath,
		configPath:    *configPath,
		envFile:       *envFile,
		heartbeatPath: *heartbeatPath,
		timeout:       *timeout,
	}
}

func run(cfg minderConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.timeout > 0 {
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithTimeout(ctx, cfg.timeout)
		defer cancelDeadline()
	}

	logger := chrome.DefaultLogger()

	if cfg.envFile != "" {
		if err := godotenv.Load(cfg.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", cfg.envFile, err)
		}
	}

	conf, err := config.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := config.LoadCredentials(cfg.forwardUnread)
	if err != nil {
		return err
	}

	sess, cleanup, err := chrome.New(ctx, chrome.Options{
		ExecPath:          cfg.browserPath,
		Headless:          !cfg.showBrowser,
		NavigationTimeout: conf.Waits.Navigation,
		ActionTimeout:     conf.Waits.Element,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if runErr := drive(ctx, cfg, conf, sess, logger, creds); runErr != nil {
		debugDump(ctx, cfg, conf, sess, logger)
		return runErr
	}

	// Let the provider finish any in-flight requests before teardown.
	pause(ctx, time.Second)

	if cfg.heartbeatPath != "" {
		if err := heartbeat.Write(cfg.heartbeatPath, time.Now()); err != nil {
			return err
		}
	}
	logger.Info("run complete", "forwarded", cfg.forwardUnread)
	return nil
}

func drive(ctx context.Context, cfg minderConfig, conf *config.Config, sess *chrome.Session, logger *slog.Logger, creds config.Credentials) error {
	pol := retry.Policy{Attempts: conf.Retry.Attempts, Delay: conf.Retry.Delay}

	if err := login.NewService(sess, conf.Flow, conf.Waits, pol, logger).Run(ctx, creds); err != nil {
		return fmt.Errorf("log in: %w", err)
	}
	if !cfg.forwardUnread {
		return nil
	}

	n, err := forward.NewService(sess, conf.Mailbox, conf.Waits, pol, logger).Run(ctx, creds.ForwardTo)
	if err != nil {
		return fmt.Errorf("forward unread mail: %w", err)
	}
	logger.Info("forwarded unread mail", "count", n, "to", creds.ForwardTo)
	return nil
}

// debugDump preserves evidence of a failed run: a screenshot when configured,
// and in headful mode the live session itself for a grace period.
func debugDump(ctx context.Context, cfg minderConfig, conf *config.Config, sess *chrome.Session, logger *slog.Logger) {
	if conf.Debug.ScreenshotPath != "" {
		if err := sess.Screenshot(ctx, conf.Debug.ScreenshotPath); err != nil {
			logger.Error("failure screenshot not captured", "error", err)
		} else {
			logger.Info("failure screenshot captured", "path", conf.Debug.ScreenshotPath)
		}
	}
	if cfg.showBrowser && conf.Debug.HoldOnFailure > 0 {
		logger.Info("holding browser open for inspection", "for", conf.Debug.HoldOnFailure)
		pause(ctx, conf.Debug.HoldOnFailure)
	}
}

func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
