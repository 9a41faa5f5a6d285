package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/neo-lottery/cli/lottery"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "NeoLottery\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an instance of [cli.App] with all lottery commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "lottery"
	ctl.Version = config.Version
	ctl.Usage = "Lottery contract client for Neo N3"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, lottery.NewCommands()...)
	return ctl
}
