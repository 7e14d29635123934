package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigDebug            = "debug"
	ConfigWorkers          = "workers"
	ConfigDefaultTimeLimit = "default-time-limit"
	ConfigMinWorkerBudget  = "min-worker-budget"
	ConfigBudgetFraction   = "budget-fraction"
	ConfigMaxDepth         = "max-depth"
	ConfigEndgameThreshold = "endgame-threshold"
	ConfigTTMegabytes      = "tt-megabytes"
	ConfigAspirationWindow = "aspiration-window"
	ConfigQuiescenceDepth  = "quiescence-depth"
	ConfigDangerMargin     = "danger-margin"
	ConfigZobristSeed      = "zobrist-seed"
	ConfigNatsURL          = "nats-url"
	ConfigBotChannel       = "bot-channel"
	ConfigCPUProfile       = "cpu-profile"
	ConfigMemProfile       = "mem-profile"
)

// Config is backed by viper. Flags win over REVERSI_* environment
// variables, which win over defaults.
type Config struct {
	viper.Viper
	args []string
}

// DefaultConfig returns a config with every default and no flags applied.
func DefaultConfig() *Config {
	c := &Config{}
	// no args cannot fail to parse
	_ = c.Load(nil)
	return c
}

func (c *Config) Load(args []string) error {
	c.Viper = *viper.New()

	fs := pflag.NewFlagSet("reversi", pflag.ContinueOnError)
	// everything from the first positional argument on is a shell command
	fs.SetInterspersed(false)
	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.Int(ConfigWorkers, max(2, runtime.NumCPU()-1), "number of search workers in the pool")
	fs.Duration(ConfigDefaultTimeLimit, 3*time.Second, "time limit for requests that do not set one")
	fs.Duration(ConfigMinWorkerBudget, 10*time.Millisecond, "smallest time budget handed to a single worker")
	fs.Float64(ConfigBudgetFraction, 0.9, "fraction of the job time limit given to workers")
	fs.Int(ConfigMaxDepth, 60, "maximum search depth for requests that do not set one")
	fs.Int(ConfigEndgameThreshold, 17, "solve exactly at or below this many empty squares")
	fs.Int(ConfigTTMegabytes, 64, "transposition table size per worker, in megabytes")
	fs.Int(ConfigAspirationWindow, 50, "initial aspiration window half-width")
	fs.Int(ConfigQuiescenceDepth, 4, "extra plies of noisy moves searched at the horizon")
	fs.Int(ConfigDangerMargin, 20, "evaluation gap within which a safe move beats a dangerous one")
	fs.String(ConfigZobristSeed, "", "seed for reproducible zobrist tables; random if empty")
	fs.String(ConfigNatsURL, "nats://localhost:4222", "NATS server for the bot")
	fs.String(ConfigBotChannel, "reversi.bot", "NATS subject the bot listens on")
	fs.String(ConfigCPUProfile, "", "write a cpu profile to this file")
	fs.String(ConfigMemProfile, "", "write a memory profile to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.args = fs.Args()

	c.SetEnvPrefix("reversi")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()
	return c.BindPFlags(fs)
}

// Args are the command-line arguments left after flags.
func (c *Config) Args() []string { return c.args }

// SanitizedSettings is safe to log.
func (c *Config) SanitizedSettings() map[string]any {
	settings := c.AllSettings()
	if u, ok := settings[ConfigNatsURL].(string); ok && strings.Contains(u, "@") {
		settings[ConfigNatsURL] = "(redacted)"
	}
	return settings
}
