package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/pkg/client"
)

type Command struct {
	*base.Command

	clientFlags base.ClientFlags

	flagOperation string
	flagParams    string
	flagItems     bool
	flagMaxPages  int
}

func (c *Command) Synopsis() string {
	return "Walk every page of a pageable operation"
}

func (c *Command) Help() string {
	return `Usage: courier paginate -description=<path> -operation=<name> [options]

  This command repeats a pageable operation until the service stops
  returning continuation tokens, printing each page as JSON. With -items
  it prints only the elements under the operation's result keys.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("paginate", flag.ExitOnError))

	c.clientFlags.Register(f)
	f.StringVar(
		&c.flagOperation, "operation", "",
		"(Required) Name of the pageable operation.",
	)
	f.StringVar(
		&c.flagParams, "params", "{}",
		"Operation parameters as a JSON object. A continuation token here starts the walk mid-stream.",
	)
	f.BoolVar(
		&c.flagItems, "items", false,
		"Print the items under the result keys instead of whole pages.",
	)
	f.IntVar(
		&c.flagMaxPages, "max-pages", 0,
		"Stop after this many pages. Zero walks to exhaustion.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	ui := c.UI

	// Parse flags.
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	// Validate flags.
	if c.flagOperation == "" {
		ui.Error("operation flag is required")
		return 1
	}
	var params client.Params
	if err := json.Unmarshal([]byte(c.flagParams), &params); err != nil {
		ui.Error(fmt.Sprintf("params must be a JSON object: %v", err))
		return 1
	}

	cl, _, err := c.clientFlags.Build(c.Log)
	if err != nil {
		ui.Error(fmt.Sprintf("error building client: %v", err))
		return 1
	}

	pager, err := cl.Paginator(c.flagOperation, params)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pages := 0
	for pager.HasMorePages() {
		if c.flagMaxPages > 0 && pages >= c.flagMaxPages {
			break
		}

		if c.flagItems {
			items, err := pager.NextPageItems(ctx)
			if err != nil {
				return c.reportError(err)
			}
			for _, item := range items {
				out, err := json.Marshal(item)
				if err != nil {
					ui.Error(fmt.Sprintf("error rendering item: %v", err))
					return 1
				}
				ui.Output(string(out))
			}
		} else {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return c.reportError(err)
			}
			out, err := json.MarshalIndent(page, "", "  ")
			if err != nil {
				ui.Error(fmt.Sprintf("error rendering page: %v", err))
				return 1
			}
			ui.Output(string(out))
		}
		pages++
	}

	c.Log.Debug("pagination complete", "operation", c.flagOperation, "pages", pages)
	return 0
}

func (c *Command) reportError(err error) int {
	c.UI.Error(err.Error())

	var oe *client.OperationError
	if errors.As(err, &oe) && oe.RequestID != "" {
		c.UI.Error(fmt.Sprintf("request id: %s", oe.RequestID))
	}
	return 1
}
