package version

import (
	"fmt"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the courier version"
}

func (c *Command) Help() string {
	return `Usage: courier version

  This command prints the version of the courier binary.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(fmt.Sprintf("courier %s", version.Version))
	return 0
}
