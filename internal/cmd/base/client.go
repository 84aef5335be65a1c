package base

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/courier/internal/config"
	"github.com/hashicorp-forge/courier/pkg/client"
	"github.com/hashicorp-forge/courier/pkg/credentials"
	"github.com/hashicorp-forge/courier/pkg/metrics"
	"github.com/hashicorp-forge/courier/pkg/recorder"
	"github.com/hashicorp-forge/courier/pkg/service"
)

// ClientFlags collects the flags shared by every command that talks to a
// service: where the description lives, how to reach the endpoint, how to
// sign, and whether to journal calls. Values from the -config file fill in
// flags the user left unset.
type ClientFlags struct {
	Config      string
	Description string
	Endpoint    string
	Region      string
	Scheme      string

	KeyID     string
	SecretKey string

	Record   bool
	RecordDB string

	StatsdAddr string

	sessionToken string
	fileCfg      *config.Config
}

// Register adds the shared client flags to f.
func (cf *ClientFlags) Register(f *FlagSet) {
	f.StringVar(
		&cf.Config, "config", "",
		"Path to a courier HCL config file.",
	)
	f.StringVar(
		&cf.Description, "description", "",
		"(Required) Path to the service description file.",
	)
	f.StringVar(
		&cf.Endpoint, "endpoint", "",
		"Endpoint URL overriding the description's default.",
	)
	f.StringVar(
		&cf.Region, "region", "",
		"Signing region.",
	)
	f.StringVar(
		&cf.Scheme, "scheme", "",
		"Signature scheme overriding the description's default.",
	)
	f.StringVar(
		&cf.KeyID, "key-id", "",
		"Static credential key ID.",
	)
	f.StringVar(
		&cf.SecretKey, "secret-key", "",
		"Static credential secret key.",
	)
	f.BoolVar(
		&cf.Record, "record", false,
		"Journal calls to the local call record database.",
	)
	f.StringVar(
		&cf.RecordDB, "record-db", "",
		"Path of the SQLite call record database.",
	)
	f.StringVar(
		&cf.StatsdAddr, "statsd-addr", "",
		"Address of a statsd agent to emit call metrics to.",
	)
}

// applyFile fills unset flags from the config file. Flags win.
func (cf *ClientFlags) applyFile(fileCfg *config.Config) {
	if cf.Description == "" {
		cf.Description = fileCfg.Description
	}
	if cf.Endpoint == "" {
		cf.Endpoint = fileCfg.Endpoint
	}
	if cf.Region == "" {
		cf.Region = fileCfg.Region
	}
	if cf.Scheme == "" {
		cf.Scheme = fileCfg.Scheme
	}
	if creds := fileCfg.Credentials; creds != nil {
		if cf.KeyID == "" && cf.SecretKey == "" {
			cf.KeyID = creds.KeyID
			cf.SecretKey = creds.Secret
			cf.sessionToken = creds.SessionToken
		}
	}
	if fileCfg.Recorder != nil {
		cf.Record = true
		if cf.RecordDB == "" {
			cf.RecordDB = fileCfg.Recorder.DSN
		}
	}
	if m := fileCfg.Metrics; m != nil && cf.StatsdAddr == "" {
		cf.StatsdAddr = m.StatsdAddr
	}
}

// Build loads the description and constructs the client, plus a recorder
// when journaling is enabled. The recorder is nil otherwise.
func (cf *ClientFlags) Build(log hclog.Logger) (*client.Client, *recorder.Recorder, error) {
	if cf.Config != "" {
		fileCfg, err := config.Load(cf.Config)
		if err != nil {
			return nil, nil, err
		}
		cf.fileCfg = fileCfg
		cf.applyFile(fileCfg)
	}

	if cf.Description == "" {
		return nil, nil, fmt.Errorf("a service description is required: set -description or the config file's description attribute")
	}
	desc, err := service.Load(afero.NewOsFs(), cf.Description)
	if err != nil {
		return nil, nil, err
	}

	cfg := client.Config{
		Description:     desc,
		Endpoint:        cf.Endpoint,
		Region:          cf.Region,
		SignatureScheme: cf.Scheme,
		Credentials:     cf.provider(),
		Logger:          log,
	}

	if cf.StatsdAddr != "" {
		statsCfg := metrics.StatsdConfig{
			Addr:   cf.StatsdAddr,
			Logger: log,
		}
		if cf.fileCfg != nil && cf.fileCfg.Metrics != nil {
			statsCfg.Tags = cf.fileCfg.Metrics.Tags
		}
		sink, err := metrics.NewStatsd(statsCfg)
		if err != nil {
			return nil, nil, err
		}
		cfg.Metrics = sink
	}

	var rec *recorder.Recorder
	if cf.Record || cf.RecordDB != "" {
		rec, err = cf.openRecorder(desc, log)
		if err != nil {
			return nil, nil, err
		}
		cfg.Interceptors = append(cfg.Interceptors, rec.Interceptor())
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, rec, nil
}

// provider picks credentials in order: static flags, then the environment,
// then anonymous.
func (cf *ClientFlags) provider() credentials.Provider {
	if cf.KeyID != "" || cf.SecretKey != "" {
		return credentials.NewStaticProvider(cf.KeyID, cf.SecretKey, cf.sessionToken)
	}
	if os.Getenv(credentials.DefaultEnvPrefix+"_KEY_ID") != "" {
		return credentials.NewEnvProvider(credentials.DefaultEnvPrefix)
	}
	return credentials.AnonymousProvider{}
}

func (cf *ClientFlags) openRecorder(desc *service.Description, log hclog.Logger) (*recorder.Recorder, error) {
	dbCfg := recorder.DatabaseConfig{
		Driver: recorder.DriverSQLite,
		Path:   cf.RecordDB,
	}
	if cf.fileCfg != nil && cf.fileCfg.Recorder != nil {
		rc := cf.fileCfg.Recorder
		if rc.Driver != "" {
			dbCfg.Driver = rc.Driver
		}
		dbCfg.Host = rc.Host
		dbCfg.Port = rc.Port
		dbCfg.User = rc.User
		dbCfg.Password = rc.Password
		dbCfg.DBName = rc.DBName
	}

	db, err := recorder.Open(dbCfg, log)
	if err != nil {
		return nil, err
	}
	return recorder.New(recorder.Config{
		DB:      db,
		Service: desc.ServiceID,
		Logger:  log,
	})
}
