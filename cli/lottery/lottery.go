/*
Package lottery implements the lottery CLI commands.
*/
package lottery

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-lottery/cli/flags"
	"github.com/nspcc-dev/neo-lottery/cli/options"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/nspcc-dev/neo-lottery/pkg/lottery"
	"github.com/urfave/cli"
)

const gasDecimals = flags.GASDecimals

var (
	errNoAmount   = errors.New("no amount specified, use '--amount' flag")
	errNoNEF      = errors.New("no NEF file specified, use '--in' flag")
	errNoManifest = errors.New("no manifest file specified, use '--manifest' flag")
)

var (
	amountFlag = flags.GASFlag{
		Name:  "amount",
		Usage: "amount of GAS to stake, it must be more than 0.01",
	}
	nefFlag = cli.StringFlag{
		Name:  "in, i",
		Usage: "input NEF file",
	}
	manifestFlag = cli.StringFlag{
		Name:  "manifest, m",
		Usage: "manifest file",
	}
	managerFlag = flags.AddressFlag{
		Name:  "manager",
		Usage: "lottery manager account (transaction sender if not set)",
	}
)

// NewCommands returns lottery commands.
func NewCommands() []cli.Command {
	readFlags := append([]cli.Flag{options.Config, options.Contract}, options.RPC...)
	sendFlags := append([]cli.Flag{options.Config, options.Contract, options.Await}, options.RPC...)
	sendFlags = append(sendFlags, options.Wallet...)
	deployFlags := append([]cli.Flag{options.Config, options.Await, nefFlag, manifestFlag, managerFlag}, options.RPC...)
	deployFlags = append(deployFlags, options.Wallet...)
	enterFlags := append([]cli.Flag{amountFlag}, sendFlags...)
	return []cli.Command{
		{
			Name:      "deploy",
			Usage:     "deploy the lottery contract",
			UsageText: "deploy -i lottery.nef -m lottery.manifest.json [--manager <addr>] -w wallet [--wallet-config path] [-r <endpoint>] [-c config] [--await]",
			Description: `Deploys the lottery contract using the given NEF and manifest files. The
   manager account is the only one allowed to pick the winner, by default
   it is the transaction sender. The contract hash is printed after the
   transaction hash.
`,
			Action: deploy,
			Flags:  deployFlags,
		},
		{
			Name:      "enter",
			Usage:     "enter the lottery",
			UsageText: "enter --amount <gas> -w wallet [--wallet-config path] [--contract <hash>] [-r <endpoint>] [-c config] [--await]",
			Description: `Enters the lottery by transferring the given amount of GAS to the contract.
   The stake must be strictly greater than 0.01 GAS. Every transfer is a
   separate entry, the same account can enter several times.
`,
			Action: enter,
			Flags:  enterFlags,
		},
		{
			Name:      "pick-winner",
			Usage:     "pick the winner and pay them the pot",
			UsageText: "pick-winner -w wallet [--wallet-config path] [--contract <hash>] [-r <endpoint>] [-c config] [--await]",
			Description: `Picks a random player and transfers the whole contract balance to them,
   then starts a new round. Only the manager can do it and there must be
   at least one player.
`,
			Action: pickWinner,
			Flags:  sendFlags,
		},
		{
			Name:      "players",
			Usage:     "print the players of the current round",
			UsageText: "players [--contract <hash>] [-r <endpoint>] [-c config]",
			Action:    players,
			Flags:     readFlags,
		},
		{
			Name:      "manager",
			Usage:     "print the lottery manager",
			UsageText: "manager [--contract <hash>] [-r <endpoint>] [-c config]",
			Action:    manager,
			Flags:     readFlags,
		},
		{
			Name:      "pot",
			Usage:     "print the current pot in GAS",
			UsageText: "pot [--contract <hash>] [-r <endpoint>] [-c config]",
			Action:    pot,
			Flags:     readFlags,
		},
		{
			Name:      "round",
			Usage:     "print the current round number and the last winner",
			UsageText: "round [--contract <hash>] [-r <endpoint>] [-c config]",
			Action:    round,
			Flags:     readFlags,
		},
		newWatchCommand(),
		newHistoryCommand(),
	}
}

func ensureNone(ctx *cli.Context) error {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

func readerFromContext(ctx *cli.Context) (*lottery.ContractReader, func(), error) {
	if err := ensureNone(ctx); err != nil {
		return nil, nil, err
	}
	cfg, err := options.GetConfig(ctx)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	hash, err := options.GetContract(ctx, cfg.Lottery)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	c, inv, exitErr := options.GetRPCWithInvoker(gctx, ctx, cfg.Lottery)
	if exitErr != nil {
		cancel()
		return nil, nil, exitErr
	}
	return lottery.NewReader(inv, hash), func() {
		c.Close()
		cancel()
	}, nil
}

func players(ctx *cli.Context) error {
	r, closer, err := readerFromContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	list, err := r.Players()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get players: %w", err), 1)
	}
	for _, p := range list {
		fmt.Fprintln(ctx.App.Writer, address.Uint160ToString(p))
	}
	return nil
}

func manager(ctx *cli.Context) error {
	r, closer, err := readerFromContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	m, err := r.Manager()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get manager: %w", err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, address.Uint160ToString(m))
	return nil
}

func pot(ctx *cli.Context) error {
	r, closer, err := readerFromContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	p, err := r.Pot()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get pot: %w", err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, fixedn.ToString(p, gasDecimals))
	return nil
}

func round(ctx *cli.Context) error {
	r, closer, err := readerFromContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	n, err := r.Round()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get round: %w", err), 1)
	}
	w, err := r.LastWinner()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to get last winner: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Round: %d\n", n)
	if w != nil {
		fmt.Fprintf(ctx.App.Writer, "Last winner: %s\n", address.Uint160ToString(*w))
	}
	return nil
}

// sendContext contains everything a state-changing command needs.
type sendContext struct {
	cfg   config.Config
	act   *actor.Actor
	close func()
}

func newSendContext(ctx *cli.Context) (*sendContext, error) {
	if err := ensureNone(ctx); err != nil {
		return nil, err
	}
	cfg, err := options.GetConfig(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	signers, err := options.GetSigner(ctx, cfg.Lottery)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	c, act, exitErr := options.GetRPCWithActor(gctx, ctx, cfg.Lottery, signers)
	if exitErr != nil {
		cancel()
		return nil, exitErr
	}
	return &sendContext{
		cfg: cfg,
		act: act,
		close: func() {
			c.Close()
			cancel()
		},
	}, nil
}

// awaitTx prints the transaction hash and waits for the transaction if
// '--await' flag is set. The result is nil if the transaction is not awaited.
func (s *sendContext) awaitTx(ctx *cli.Context, h util.Uint256, vub uint32, err error) (*state.AppExecResult, error) {
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("failed to send transaction: %w", err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, h.StringLE())
	if !ctx.Bool("await") {
		return nil, nil
	}
	res, err := s.act.Wait(h, vub, nil)
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("failed to await transaction %s: %w", h.StringLE(), err), 1)
	}
	if res.VMState != vmstate.Halt {
		return nil, cli.NewExitError(fmt.Errorf("transaction %s failed: %s", h.StringLE(), res.FaultException), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "VM state: %s\nGas consumed: %s\n", res.VMState, fixedn.ToString(big.NewInt(res.GasConsumed), gasDecimals))
	return res, nil
}

func deploy(ctx *cli.Context) error {
	nefPath := ctx.String("in")
	if nefPath == "" {
		return cli.NewExitError(errNoNEF, 1)
	}
	manifestPath := ctx.String("manifest")
	if manifestPath == "" {
		return cli.NewExitError(errNoManifest, 1)
	}
	nefFile, m, err := readNEFAndManifest(nefPath, manifestPath)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	s, err := newSendContext(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	var data any
	if mgr, ok := flags.AddressFromContext(ctx, "manager"); ok {
		data = mgr
	}
	h, vub, err := management.New(s.act).Deploy(nefFile, m, data)
	if _, err := s.awaitTx(ctx, h, vub, err); err != nil {
		return err
	}
	hash := state.CreateContractHash(s.act.Sender(), nefFile.Checksum, m.Name)
	fmt.Fprintf(ctx.App.Writer, "Contract: %s\n", hash.StringLE())
	return nil
}

func readNEFAndManifest(nefPath, manifestPath string) (*nef.File, *manifest.Manifest, error) {
	b, err := os.ReadFile(nefPath)
	if err != nil {
		return nil, nil, fmt.Errorf("can't read NEF file: %w", err)
	}
	nefFile, err := nef.FileFromBytes(b)
	if err != nil {
		return nil, nil, fmt.Errorf("can't parse NEF file: %w", err)
	}
	b, err = os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("can't read manifest file: %w", err)
	}
	m := new(manifest.Manifest)
	if err := json.Unmarshal(b, m); err != nil {
		return nil, nil, fmt.Errorf("can't parse manifest file: %w", err)
	}
	return &nefFile, m, nil
}

func enter(ctx *cli.Context) error {
	amount := flags.GASFromContext(ctx, "amount")
	if amount == nil {
		return cli.NewExitError(errNoAmount, 1)
	}
	s, err := newSendContext(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	hash, err := options.GetContract(ctx, s.cfg.Lottery)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	h, vub, err := lottery.New(s.act, hash).Enter(amount)
	_, err = s.awaitTx(ctx, h, vub, err)
	return err
}

func pickWinner(ctx *cli.Context) error {
	s, err := newSendContext(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	hash, err := options.GetContract(ctx, s.cfg.Lottery)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	h, vub, err := lottery.New(s.act, hash).PickWinner()
	res, err := s.awaitTx(ctx, h, vub, err)
	if err != nil || res == nil {
		return err
	}
	events, err := lottery.WinnerPickedEventsFromApplicationLog(&result.ApplicationLog{
		Container:  res.Container,
		Executions: []state.Execution{res.Execution},
	}, hash)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	for _, e := range events {
		fmt.Fprintf(ctx.App.Writer, "Winner: %s\nPrize: %s\nRound: %s\n",
			address.Uint160ToString(e.Winner), fixedn.ToString(e.Prize, gasDecimals), e.Round)
	}
	return nil
}
