package flags

import (
	"flag"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/urfave/cli"
)

// GASDecimals is the GAS token precision.
const GASDecimals = 8

// GAS is a positive GAS amount in its smallest units, it's parsed from
// a decimal string like "0.5".
type GAS struct {
	Value *big.Int
}

// GASFlag is a flag with type GAS.
type GASFlag struct {
	Name  string
	Usage string
	Value GAS
}

var (
	_ flag.Value = (*GAS)(nil)
	_ cli.Flag   = GASFlag{}
)

func (g GAS) String() string {
	if g.Value == nil {
		return ""
	}
	return fixedn.ToString(g.Value, GASDecimals)
}

// Set implements the flag.Value interface.
func (g *GAS) Set(s string) error {
	v, err := fixedn.FromString(s, GASDecimals)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid GAS amount %q: %w", s, err), 1)
	}
	if v.Sign() <= 0 {
		return cli.NewExitError(fmt.Errorf("GAS amount must be positive, got %s", s), 1)
	}
	g.Value = v
	return nil
}

func (f GASFlag) String() string {
	return flagString(f.Name, f.Usage)
}

// GetName returns the name of the flag.
func (f GASFlag) GetName() string {
	return f.Name
}

// Apply implements cli.Flag.
func (f GASFlag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// GASFromContext returns a copy of the amount given with the flag or nil if
// it wasn't given.
func GASFromContext(ctx *cli.Context, name string) *big.Int {
	g, ok := ctx.Generic(name).(*GAS)
	if !ok || g.Value == nil {
		return nil
	}
	return new(big.Int).Set(g.Value)
}
