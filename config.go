package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable for the client, shared by the serve front and
// the CLI subcommands. Values come from flags, VORTAMIKO_* environment
// variables, or an optional .env file, in that order of precedence.
type Config struct {
	APIURL        string `validate:"omitempty,url"`
	Auth0Domain   string `validate:"omitempty,hostname"`
	Auth0ClientID string
	Auth0Audience string `validate:"omitempty,url"`
	StateDir      string

	Bind           string
	Port           int `validate:"min=1,max=65535"`
	Production     bool
	CookieDomain   string
	RateLimitRPS   int `validate:"min=1"`
	RateLimitBurst int `validate:"min=1"`
	StaticDir      string
	StaticCacheAge time.Duration

	WordsFile  string
	Standalone bool

	TraceEnabled  bool
	TraceEndpoint string
	TraceInsecure bool
}

var validate = validator.New()

func (c *Config) validateConfig() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.Standalone && c.Auth0Domain == "" {
		logWarn("No Auth0 domain configured; login will not be available")
	}
	return nil
}

// stateDir returns the configured state directory, defaulting to the
// platform config dir. The directory itself is created lazily by the
// stores that write into it.
func (c *Config) stateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		logWarn("Could not determine user config dir: %v, using working directory", err)
		return ".vortamiko"
	}
	return filepath.Join(base, "vortamiko")
}

// bindFlags wires a command tree's flags to VORTAMIKO_* environment
// variables, so e.g. --api-url falls back to VORTAMIKO_API_URL. Explicit
// flags always win over environment values.
func bindFlags(cmd *cobra.Command) {
	bindCommandFlags(cmd)
	for _, sub := range cmd.Commands() {
		bindFlags(sub)
	}
}

func bindCommandFlags(cmd *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix("VORTAMIKO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, fs := range []*pflag.FlagSet{cmd.PersistentFlags(), cmd.Flags()} {
		fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
			return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
		})
		fs.VisitAll(func(f *pflag.Flag) {
			_ = v.BindPFlag(f.Name, f)
			_ = v.BindEnv(f.Name)
			if !f.Changed && v.IsSet(f.Name) {
				_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
			}
		})
	}
}
