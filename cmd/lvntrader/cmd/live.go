package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quicktime/lvntrader/cache"
	"github.com/quicktime/lvntrader/exec"
	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/metrics"
	sig "github.com/quicktime/lvntrader/signal"
	"github.com/quicktime/lvntrader/stream"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade a live feed",
	Long: `Live connects to the trade feed, loads reference levels from the
most recent cached session, and runs the strategy in real time.

Entries, exits, and stop moves are appended to the trade log CSV and
broadcast to websocket dashboard clients. Prometheus metrics are
served on the configured address.

Example:
  lvntrader live -f config.yaml`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.NewStore(cfg.Cache.Dir, log)
	if err != nil {
		return err
	}

	tradeLog, err := stream.NewTradeLogger(cfg.Journal.TradeLog)
	if err != nil {
		return err
	}
	defer tradeLog.Close()

	hub := stream.NewHub(log)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	go serveHTTP(ctx, cfg.Server.WSAddr, mux, log, "websocket")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	go serveHTTP(ctx, cfg.Server.MetricsAddr, metricsMux, log, "metrics")

	trader := sig.NewTraderWithMachine(cfg.Trader, cfg.Machine, cfg.Profile, log)
	filter := market.NewFilterConfig(cfg.Feed.MinTradeSize)
	hub.SetFilter(filter)

	jrnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	engine := exec.NewEngineWithBalance(
		exec.ConfigFromTrader(cfg.Trader),
		exec.NewSimBroker(),
		cfg.Trader.StartingBalance,
		log,
	)
	engine.SetJournal(jrnl)

	loop := &stream.Loop{
		Source:   stream.NewWSSource(cfg.Feed.URL, cfg.Trader.Symbol, log),
		Trader:   trader,
		Filter:   filter,
		Hub:      hub,
		TradeLog: tradeLog,
		Store:    store,
		Exec:     engine,
		Log:      log,
	}

	log.Info().
		Str("symbol", cfg.Trader.Symbol).
		Str("feed", cfg.Feed.URL).
		Msg("live session starting")

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	fmt.Println(trader.Status())
	fmt.Println(engine.Status())
	return err
}

// serveHTTP runs a listener until ctx is cancelled. Listen failures are
// logged rather than fatal so the trading loop keeps running.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger, name string) {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("server", name).Str("addr", addr).Msg("http server failed")
	}
}
