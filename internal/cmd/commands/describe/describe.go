package describe

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/internal/config"
	"github.com/hashicorp-forge/courier/pkg/service"
)

type Command struct {
	*base.Command

	flagConfig      string
	flagDescription string
	flagOperation   string
}

func (c *Command) Synopsis() string {
	return "Print a service description's operations, pagination and waiters"
}

func (c *Command) Help() string {
	return `Usage: courier describe -description=<path> [options]

  This command loads a service description and prints what the service
  offers: its operations, which of them are pageable, and its waiters.
  With -operation it prints the details of a single operation.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("describe", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to a courier HCL config file.",
	)
	f.StringVar(
		&c.flagDescription, "description", "",
		"(Required) Path to the service description file.",
	)
	f.StringVar(
		&c.flagOperation, "operation", "",
		"Print details for this operation only.",
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

	if c.flagDescription == "" && c.flagConfig != "" {
		fileCfg, err := config.Load(c.flagConfig)
		if err != nil {
			ui.Error(err.Error())
			return 1
		}
		c.flagDescription = fileCfg.Description
	}
	if c.flagDescription == "" {
		ui.Error("description flag is required")
		return 1
	}

	desc, err := service.Load(afero.NewOsFs(), c.flagDescription)
	if err != nil {
		ui.Error(fmt.Sprintf("error loading description: %v", err))
		return 1
	}

	if c.flagOperation != "" {
		return c.printOperation(desc, c.flagOperation)
	}
	return c.printService(desc)
}

func (c *Command) printService(desc *service.Description) int {
	ui := c.UI

	ui.Output(fmt.Sprintf("Service:   %s (%s)", desc.Service, desc.ServiceID))
	ui.Output(fmt.Sprintf("Protocol:  %s", desc.Protocol))
	if desc.Endpoint != "" {
		ui.Output(fmt.Sprintf("Endpoint:  %s", desc.Endpoint))
	}
	if desc.SignatureScheme != "" {
		ui.Output(fmt.Sprintf("Signing:   %s as %q", desc.SignatureScheme, desc.ResolvedSigningName()))
	}

	ui.Output("")
	ui.Output(fmt.Sprintf("Operations (%d):", len(desc.Operations)))
	for _, name := range sortedKeys(desc.Operations) {
		notes := operationNotes(desc, name)
		if notes != "" {
			notes = "  " + notes
		}
		ui.Output(fmt.Sprintf("  %s%s", name, notes))
	}

	if len(desc.Waiters) > 0 {
		ui.Output("")
		ui.Output(fmt.Sprintf("Waiters (%d):", len(desc.Waiters)))
		for _, name := range sortedKeys(desc.Waiters) {
			w := desc.Waiters[name]
			ui.Output(fmt.Sprintf("  %s  polls %s every %s, up to %d attempts",
				name, w.Operation, w.Interval, w.MaxAttempts))
		}
	}
	return 0
}

func (c *Command) printOperation(desc *service.Description, name string) int {
	ui := c.UI

	resolved, ok := desc.ResolveOperationName(name)
	if !ok {
		ui.Error(fmt.Sprintf("operation %q is not part of %s", name, desc.ServiceID))
		return 1
	}
	op, _ := desc.Operation(resolved)

	ui.Output(fmt.Sprintf("Operation: %s", resolved))
	if op.HTTPMethod != "" || op.HTTPPath != "" {
		ui.Output(fmt.Sprintf("HTTP:      %s %s", op.HTTPMethod, op.HTTPPath))
	}
	if len(op.RequiredParams) > 0 {
		ui.Output(fmt.Sprintf("Required:  %s", strings.Join(op.RequiredParams, ", ")))
	}

	if tpl, ok := desc.PaginationFor(resolved); ok {
		ui.Output("")
		if tpl.Pageable() {
			ui.Output("Pagination:")
		} else {
			ui.Output("Pagination (descriptive only, no result keys):")
		}
		for i := range tpl.InputTokens {
			out := ""
			if i < len(tpl.OutputTokens) {
				out = tpl.OutputTokens[i]
			}
			ui.Output(fmt.Sprintf("  %s <- %s", tpl.InputTokens[i], out))
		}
		if len(tpl.ResultKeys) > 0 {
			ui.Output(fmt.Sprintf("  items at %s", strings.Join(tpl.ResultKeys, ", ")))
		}
		if tpl.LimitParam != "" {
			ui.Output(fmt.Sprintf("  page size via %s", tpl.LimitParam))
		}
	}

	for _, wname := range sortedKeys(desc.Waiters) {
		w := desc.Waiters[wname]
		if w.Operation != resolved {
			continue
		}
		ui.Output("")
		ui.Output(fmt.Sprintf("Waiter %s:", wname))
		for _, acc := range w.Acceptors {
			ui.Output(fmt.Sprintf("  %-7s when %s matches %q", acc.State, acc.Matcher, acc.Expected))
		}
	}
	return 0
}

// operationNotes summarizes an operation for the service listing.
func operationNotes(desc *service.Description, name string) string {
	var notes []string

	op, _ := desc.Operation(name)
	if len(op.RequiredParams) > 0 {
		notes = append(notes, "requires "+strings.Join(op.RequiredParams, ", "))
	}
	if tpl, ok := desc.PaginationFor(name); ok && tpl.Pageable() {
		notes = append(notes, "pageable")
	}
	return strings.Join(notes, "; ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
