// Command faucetd serves the proof-of-work token faucet: it boots the
// block engine, the HTTP API, and the payout dispatcher, and shuts all
// three down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/nadfaucet/faucetd/internal/api"
	"github.com/nadfaucet/faucetd/internal/engine"
	"github.com/nadfaucet/faucetd/internal/fconfig"
	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/payout"
	"github.com/nadfaucet/faucetd/internal/ratelimit"
	"github.com/nadfaucet/faucetd/internal/store"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to a TOML configuration file",
	EnvVars: []string{"FAUCETD_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:   "faucetd",
		Usage:  "proof-of-work token faucet daemon",
		Flags:  []cli.Flag{configFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {})); err != nil {
		return fmt.Errorf("automaxprocs: %w", err)
	}

	cfg, err := fconfig.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	logger := newRootLogger(cfg)
	logger.Info("starting faucetd", "port", cfg.Port, "database", cfg.DatabasePath, "blockTimeMs", cfg.BlockTimeMS)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()

	eng := engine.New(cfg, st, m, logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Boot(ctx); err != nil {
		return fmt.Errorf("boot engine: %w", err)
	}

	limits, err := ratelimit.NewSet(cfg.RateLimitGeneralWindow, cfg.RateLimitGeneralBurst, cfg.RateLimitSubmitWindow, cfg.RateLimitSubmitBurst)
	if err != nil {
		return fmt.Errorf("build rate limiters: %w", err)
	}

	dispatcher := payout.New(st, &unimplementedSender{}, cfg.PayoutWorkers, cfg.PayoutPollInterval, cfg.PayoutMaxAttempts, m, logger)

	srv := api.New(cfg, eng, st, limits, m, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Run(gctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		eng.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("faucetd stopped")
	return nil
}

func newRootLogger(cfg fconfig.Config) flog.Logger {
	lvl := parseLogLevel(cfg.LogLevel)
	h := flog.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)
	if cfg.LogJSON {
		h = flog.JSONHandler(os.Stderr)
	}
	if cfg.LogFilePath != "" {
		fh := flog.NewFileHandler(flog.FileHandlerConfig{
			Path:       cfg.LogFilePath,
			MaxSizeMB:  cfg.LogFileMaxSizeMB,
			MaxBackups: cfg.LogFileMaxBackups,
			MaxAgeDays: cfg.LogFileMaxAgeDays,
			JSON:       cfg.LogJSON,
		}, lvl)
		h = flog.NewMultiHandler(h, fh)
	}
	l := flog.NewLogger(h)
	flog.SetDefault(l)
	return l
}

func parseLogLevel(s string) flog.Lvl {
	switch s {
	case "trace":
		return flog.LevelTrace
	case "debug":
		return flog.LevelDebug
	case "warn":
		return flog.LevelWarn
	case "error":
		return flog.LevelError
	case "crit":
		return flog.LevelCrit
	default:
		return flog.LevelInfo
	}
}

// unimplementedSender is the default payout.Sender until an on-chain
// client is wired in; it fails every send so payouts queue but never
// silently succeed without a real transfer.
type unimplementedSender struct{}

func (unimplementedSender) Send(ctx context.Context, address string, netAmountMicro int64) (string, error) {
	return "", fmt.Errorf("no payout sender configured")
}
