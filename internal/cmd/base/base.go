// Package base carries the pieces shared by every courier command: the
// logger and UI handed down from main, and a flag set wrapper that can
// render its options as help text.
package base

import (
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by all leaf commands.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

// NewCommand returns a Command wired to the given logger and UI.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
	}
}

// FlagSet wraps flag.FlagSet so commands can append their option list to
// their help text.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the registered flags as an options block.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nCommand Options:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s\n      %s", fl.Name, fl.Usage)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&b, " Defaults to %s.", fl.DefValue)
		}
		b.WriteString("\n")
	})
	return b.String()
}
