package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/lib/types"
	"github.com/sift-lang/sift/stats/statsd"
)

const defaultConfigFileName = "config.json"

// Config is the serve-mode configuration, merged from defaults, the JSON
// config file, the SIFT_* environment and the CLI flags, in that order.
type Config struct {
	SourceRoot   null.String        `json:"sourceRoot" envconfig:"SIFT_SOURCE_ROOT"`
	PollInterval types.NullDuration `json:"pollInterval" envconfig:"SIFT_POLL_INTERVAL"`
	StatsDOut    null.Bool          `json:"statsdOut" envconfig:"SIFT_STATSD_OUT"`

	Collectors struct {
		StatsD statsd.Config `json:"statsd"`
	} `json:"collectors"`
}

// NewConfig returns the built-in defaults.
func NewConfig() Config {
	conf := Config{
		SourceRoot:   null.NewString(".", false),
		PollInterval: types.NewNullDuration(500*time.Millisecond, false),
		StatsDOut:    null.NewBool(false, false),
	}
	conf.Collectors.StatsD = statsd.NewConfig()
	return conf
}

// Apply overlays the valid fields of cfg on top of c and returns the result.
func (c Config) Apply(cfg Config) Config {
	if cfg.SourceRoot.Valid {
		c.SourceRoot = cfg.SourceRoot
	}
	if cfg.PollInterval.Valid {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.StatsDOut.Valid {
		c.StatsDOut = cfg.StatsDOut
	}
	c.Collectors.StatsD = c.Collectors.StatsD.Apply(cfg.Collectors.StatsD)
	return c
}

// readDiskConfig loads the JSON config file, if one exists. An absent file
// is not an error; a file we were explicitly pointed at must exist.
func readDiskConfig(fs afero.Fs) (Config, error) {
	path := configFilePath
	explicit := path != ""
	if !explicit {
		confDir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, nil //nolint:nilerr
		}
		path = confDir + "/sift/" + defaultConfigFileName
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("couldn't read config file %s: %w", path, err)
	}

	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("couldn't parse config file %s: %w", path, err)
	}
	return conf, nil
}

// getConsolidatedConfig merges all the config layers.
func getConsolidatedConfig(fs afero.Fs, cliConf Config) (Config, error) {
	fileConf, err := readDiskConfig(fs)
	if err != nil {
		return Config{}, err
	}

	var envConf Config
	if err := envconfig.Process("", &envConf); err != nil {
		return Config{}, fmt.Errorf("couldn't process environment config: %w", err)
	}

	return NewConfig().Apply(fileConf).Apply(envConf).Apply(cliConf), nil
}
