// SPDX-License-Identifier: Apache-2.0

// Package config loads the CLI's runtime configuration: safety-gate
// thresholds and the default deployment environment, from an optional
// TOML file, environment variables (SCHEMAPLAN_ prefixed), and bound
// command-line flags, in that order of increasing precedence.
package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for a single invocation.
type Config struct {
	DefaultEnvironment string  `toml:"default_environment"`
	CoverageThreshold  float64 `toml:"coverage_threshold"`
	RequireBranch      string  `toml:"require_branch"`
}

// defaults mirrors what a bare invocation with no file, env, or flags
// resolves to.
func defaults() Config {
	return Config{
		DefaultEnvironment: "staging",
		CoverageThreshold:  80,
		RequireBranch:      "main",
	}
}

func init() {
	viper.SetEnvPrefix("SCHEMAPLAN")
	viper.AutomaticEnv()
}

// RegisterFlags attaches the persistent flags every subcommand reads
// configuration through, and binds them into viper ahead of env/file
// values so an explicit flag always wins.
func RegisterFlags(cmd *cobra.Command) {
	d := defaults()
	cmd.PersistentFlags().String("environment", d.DefaultEnvironment, "Deployment environment (e.g. staging, production)")
	cmd.PersistentFlags().Float64("coverage-threshold", d.CoverageThreshold, "Minimum required test coverage percentage")
	cmd.PersistentFlags().String("require-branch", d.RequireBranch, "Branch a deployment must be cut from")
	cmd.PersistentFlags().String("config", "", "Path to a schemaplan.toml configuration file")

	viper.BindPFlag("ENVIRONMENT", cmd.PersistentFlags().Lookup("environment"))
	viper.BindPFlag("COVERAGE_THRESHOLD", cmd.PersistentFlags().Lookup("coverage-threshold"))
	viper.BindPFlag("REQUIRE_BRANCH", cmd.PersistentFlags().Lookup("require-branch"))
}

// Load resolves the effective configuration: TOML file values are the
// base layer, overridden by SCHEMAPLAN_ environment variables, in turn
// overridden by any explicitly set flag (both handled through viper's
// binding in RegisterFlags).
func Load(tomlPath string) (Config, error) {
	cfg := defaults()

	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", tomlPath, err)
		}
	}

	if viper.IsSet("ENVIRONMENT") {
		cfg.DefaultEnvironment = viper.GetString("ENVIRONMENT")
	}
	if viper.IsSet("COVERAGE_THRESHOLD") {
		cfg.CoverageThreshold = viper.GetFloat64("COVERAGE_THRESHOLD")
	}
	if viper.IsSet("REQUIRE_BRANCH") {
		cfg.RequireBranch = viper.GetString("REQUIRE_BRANCH")
	}

	return cfg, nil
}

// Encode renders cfg back to TOML in the same shape Load reads from a
// configuration file.
func Encode(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return buf.String(), nil
}
