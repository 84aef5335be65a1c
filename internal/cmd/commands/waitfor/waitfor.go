package waitfor

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

	flagWaiter string
	flagParams string
	flagQuiet  bool
}

func (c *Command) Synopsis() string {
	return "Poll an operation until a condition is met"
}

func (c *Command) Help() string {
	return `Usage: courier waitfor -description=<path> -waiter=<name> [options]

  This command polls a waiter's operation until one of its acceptors
  reports success or failure, or the configured attempts run out. On
  success it prints the final result document as JSON.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("waitfor", flag.ExitOnError))

	c.clientFlags.Register(f)
	f.StringVar(
		&c.flagWaiter, "waiter", "",
		"(Required) Name of the waiter, or of the operation it polls.",
	)
	f.StringVar(
		&c.flagParams, "params", "{}",
		"Operation parameters as a JSON object.",
	)
	f.BoolVar(
		&c.flagQuiet, "quiet", false,
		"Suppress the final result document.",
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
	if c.flagWaiter == "" {
		ui.Error("waiter flag is required")
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

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := cl.WaitUntil(ctx, c.flagWaiter, params)
	if err != nil {
		return c.reportError(err)
	}

	if !c.flagQuiet && result != nil {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			ui.Error(fmt.Sprintf("error rendering result: %v", err))
			return 1
		}
		ui.Output(string(out))
	}
	return 0
}

func (c *Command) reportError(err error) int {
	c.UI.Error(err.Error())

	var we *client.WaitError
	if errors.As(err, &we) {
		c.UI.Error(fmt.Sprintf("reason: %s", we.Reason))
		if we.LastErr != nil {
			c.UI.Error(fmt.Sprintf("last error: %v", we.LastErr))
		}
	}
	return 1
}
