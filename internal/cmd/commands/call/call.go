package call

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/pkg/client"
)

type Command struct {
	*base.Command

	clientFlags base.ClientFlags

	flagOperation string
	flagParams    string
	flagTimeout   time.Duration
}

func (c *Command) Synopsis() string {
	return "Execute one operation against a service"
}

func (c *Command) Help() string {
	return `Usage: courier call -description=<path> -operation=<name> [options]

  This command executes a single operation and prints the result document
  as JSON. Parameters are passed as a JSON object via -params.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("call", flag.ExitOnError))

	c.clientFlags.Register(f)
	f.StringVar(
		&c.flagOperation, "operation", "",
		"(Required) Name of the operation to execute.",
	)
	f.StringVar(
		&c.flagParams, "params", "{}",
		"Operation parameters as a JSON object.",
	)
	f.DurationVar(
		&c.flagTimeout, "timeout", 0,
		"Overall call timeout, e.g. 30s. Zero disables the timeout.",
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

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []client.CallOption
	if c.flagTimeout > 0 {
		opts = append(opts, client.WithCallTimeout(c.flagTimeout))
	}

	result, err := cl.Execute(ctx, c.flagOperation, params, opts...)
	if err != nil {
		c.reportError(err)
		return 1
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		ui.Error(fmt.Sprintf("error rendering result: %v", err))
		return 1
	}
	ui.Output(string(out))
	return 0
}

// reportError prints the error, with the request ID when the failure
// reached the service.
func (c *Command) reportError(err error) {
	c.UI.Error(err.Error())

	var oe *client.OperationError
	if errors.As(err, &oe) && oe.RequestID != "" {
		c.UI.Error(fmt.Sprintf("request id: %s", oe.RequestID))
	}
}
