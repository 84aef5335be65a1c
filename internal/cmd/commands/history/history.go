package history

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/hashicorp-forge/courier/internal/cmd/base"
	"github.com/hashicorp-forge/courier/internal/config"
	"github.com/hashicorp-forge/courier/pkg/recorder"
	"github.com/hashicorp/go-hclog"
)

type Command struct {
	*base.Command

	flagConfig    string
	flagRecordDB  string
	flagOperation string
	flagFailures  bool
	flagLimit     int
	flagPurge     time.Duration
}

func (c *Command) Synopsis() string {
	return "Query the journal of recorded calls"
}

func (c *Command) Help() string {
	return `Usage: courier history [options]

  This command lists calls journaled by the -record flag, newest first.
  Filter to one operation with -operation, or to failures with
  -failures. With -purge it instead deletes records older than the
  given age.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("history", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to a courier HCL config file.",
	)
	f.StringVar(
		&c.flagRecordDB, "record-db", "",
		"Path of the SQLite call record database.",
	)
	f.StringVar(
		&c.flagOperation, "operation", "",
		"List only calls to this operation.",
	)
	f.BoolVar(
		&c.flagFailures, "failures", false,
		"List only failed calls.",
	)
	f.IntVar(
		&c.flagLimit, "limit", 20,
		"Maximum number of records to list.",
	)
	f.DurationVar(
		&c.flagPurge, "purge", 0,
		"Delete records older than this age, e.g. 720h, instead of listing.",
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

	if c.flagOperation != "" && c.flagFailures {
		ui.Error("operation and failures flags are mutually exclusive")
		return 1
	}

	rec, err := c.openRecorder(c.Log)
	if err != nil {
		ui.Error(fmt.Sprintf("error opening call record database: %v", err))
		return 1
	}

	ctx := context.Background()

	if c.flagPurge > 0 {
		n, err := rec.Purge(ctx, c.flagPurge)
		if err != nil {
			ui.Error(fmt.Sprintf("error purging records: %v", err))
			return 1
		}
		ui.Output(fmt.Sprintf("Purged %d records older than %s.", n, c.flagPurge))
		return 0
	}

	var records []recorder.CallRecord
	switch {
	case c.flagOperation != "":
		records, err = rec.ByOperation(ctx, c.flagOperation, c.flagLimit)
	case c.flagFailures:
		records, err = rec.Failures(ctx, c.flagLimit)
	default:
		records, err = rec.Recent(ctx, c.flagLimit)
	}
	if err != nil {
		ui.Error(fmt.Sprintf("error querying records: %v", err))
		return 1
	}

	if len(records) == 0 {
		ui.Output("No records found.")
		return 0
	}

	ui.Output(fmt.Sprintf("%-20s %-24s %6s %9s  %s",
		"STARTED", "OPERATION", "STATUS", "DURATION", "RESULT"))
	for _, r := range records {
		ui.Output(fmt.Sprintf("%-20s %-24s %6s %9s  %s",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Operation,
			statusColumn(r),
			fmt.Sprintf("%dms", r.DurationMS),
			resultColumn(r),
		))
	}
	return 0
}

// openRecorder connects using the config file's recorder block when
// present, otherwise the SQLite path flag.
func (c *Command) openRecorder(log hclog.Logger) (*recorder.Recorder, error) {
	dbCfg := recorder.DatabaseConfig{
		Driver: recorder.DriverSQLite,
		Path:   c.flagRecordDB,
	}

	if c.flagConfig != "" {
		fileCfg, err := config.Load(c.flagConfig)
		if err != nil {
			return nil, err
		}
		if rc := fileCfg.Recorder; rc != nil {
			if rc.Driver != "" {
				dbCfg.Driver = rc.Driver
			}
			if dbCfg.Path == "" {
				dbCfg.Path = rc.DSN
			}
			dbCfg.Host = rc.Host
			dbCfg.Port = rc.Port
			dbCfg.User = rc.User
			dbCfg.Password = rc.Password
			dbCfg.DBName = rc.DBName
		}
	}

	db, err := recorder.Open(dbCfg, log)
	if err != nil {
		return nil, err
	}
	return recorder.New(recorder.Config{
		DB:     db,
		Logger: log,
	})
}

func statusColumn(r recorder.CallRecord) string {
	if r.StatusCode == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", r.StatusCode)
}

func resultColumn(r recorder.CallRecord) string {
	if r.Success {
		return "ok"
	}
	if r.ErrorCode != "" {
		return r.ErrorCode
	}
	if r.ErrorKind != "" {
		return r.ErrorKind
	}
	return "error"
}
