package lottery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-lottery/cli/options"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	"github.com/nspcc-dev/neo-lottery/pkg/services/metrics"
	"github.com/nspcc-dev/neo-lottery/pkg/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var historyPathFlag = cli.StringFlag{
	Name:  "history-path",
	Usage: "draw history database path (overrides configuration)",
}

func newWatchCommand() cli.Command {
	watchFlags := append([]cli.Flag{options.Config, options.Contract, options.Debug, historyPathFlag}, options.RPC...)
	return cli.Command{
		Name:      "watch",
		Usage:     "follow lottery events",
		UsageText: "watch [-c config] [--contract <hash>] [-r <ws-endpoint>] [--history-path <path>] [-d]",
		Description: `Subscribes to the lottery contract notifications via WebSocket RPC and
   logs every entry and draw. Completed draws are saved into the history
   database if its path is configured, prometheus metrics are exposed if
   enabled in the configuration. The command runs until interrupted.
`,
		Action: watch,
		Flags:  watchFlags,
	}
}

func newHistoryCommand() cli.Command {
	return cli.Command{
		Name:      "history",
		Usage:     "print completed draws saved by the watcher",
		UsageText: "history [-c config] [--history-path <path>] [round]",
		Action:    printHistory,
		Flags:     []cli.Flag{options.Config, historyPathFlag},
	}
}

func getHistoryPath(ctx *cli.Context, cfg config.Watcher) string {
	if p := ctx.String("history-path"); p != "" {
		return p
	}
	return cfg.HistoryPath
}

func watch(ctx *cli.Context) error {
	if err := ensureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	hash, err := options.GetContract(ctx, cfg.Lottery)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	endpoint, err := options.GetEndpoint(ctx, cfg.Lottery)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.Lottery)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	grace, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(grace, ctx.Duration("timeout"))
	defer dialCancel()
	c, err := rpcclient.NewWS(dialCtx, endpoint, rpcclient.WSOptions{})
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to connect to %s: %w", endpoint, err), 1)
	}
	defer c.Close()
	if err := c.Init(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to initialize RPC client: %w", err), 1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := watcher.NewMetrics(reg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	opts := watcher.Options{
		Contract:       hash,
		DedupCacheSize: cfg.Watcher.DedupCacheSize,
		Heights:        c,
	}
	if p := getHistoryPath(ctx, cfg.Watcher); p != "" {
		store, err := history.Open(p)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer store.Close()
		opts.Store = store
	}

	w, err := watcher.New(opts, c, m, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	srv := metrics.NewPrometheusService(cfg.Watcher.Prometheus, reg, log)
	if err := srv.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start metrics service: %w", err), 1)
	}
	defer srv.ShutDown()

	log.Info("watching lottery",
		zap.String("endpoint", endpoint),
		zap.String("contract", hash.StringLE()))
	err = w.Run(grace)
	if err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func printHistory(ctx *cli.Context) error {
	if ctx.NArg() > 1 {
		return cli.NewExitError("at most one round can be specified", 1)
	}
	cfg, err := options.GetConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	path := getHistoryPath(ctx, cfg.Watcher)
	if path == "" {
		return cli.NewExitError("no history database specified, use '--history-path' flag or set Watcher.HistoryPath in the configuration", 1)
	}
	if _, err := os.Stat(path); err != nil {
		return cli.NewExitError(fmt.Errorf("can't open history: %w", err), 1)
	}
	store, err := history.Open(path)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer store.Close()

	var draws []history.Draw
	if ctx.NArg() == 1 {
		r, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("invalid round: %w", err), 1)
		}
		d, err := store.Get(r)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("round %d: %w", r, err), 1)
		}
		draws = append(draws, *d)
	} else {
		draws, err = store.List()
		if err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tWINNER\tPRIZE\tBLOCK\tTIME\tTX")
	for _, d := range draws {
		var ts string
		if d.Timestamp != 0 {
			ts = time.UnixMilli(int64(d.Timestamp)).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", d.Round,
			address.Uint160ToString(d.Winner), fixedn.ToString(d.Prize, gasDecimals),
			d.Block, ts, d.Tx.StringLE())
	}
	return tw.Flush()
}
