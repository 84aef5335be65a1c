package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/call"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/describe"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/history"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/paginate"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/version"
	"github.com/hashicorp-forge/courier/internal/cmd/commands/waitfor"
)

// Commands is the mapping of all available commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	baseCommand := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"call": func() (cli.Command, error) {
			return &call.Command{Command: baseCommand}, nil
		},
		"paginate": func() (cli.Command, error) {
			return &paginate.Command{Command: baseCommand}, nil
		},
		"waitfor": func() (cli.Command, error) {
			return &waitfor.Command{Command: baseCommand}, nil
		},
		"describe": func() (cli.Command, error) {
			return &describe.Command{Command: baseCommand}, nil
		},
		"history": func() (cli.Command, error) {
			return &history.Command{Command: baseCommand}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: baseCommand}, nil
		},
	}
}
