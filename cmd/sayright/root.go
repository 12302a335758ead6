package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sayright/sayright/internal/config"
)

const defaultConfigPath = "config.yaml"

// errConfigFile marks failures to read the configuration file.
var errConfigFile = errors.New("config file")

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	practice := &practiceOptions{root: opts}

	root := &cobra.Command{
		Use:   "sayright",
		Short: "Practice pronouncing a vocabulary with spoken feedback",
		Long: `sayright listens to the microphone, waits for the activation keyword
("begin" by default) and then judges every word you say against the
practice vocabulary:

  - Correct        the word was recognised exactly
  - Close          a near miss; you hear the pronunciation hint
  - Mispronounced  you hear the dictionary pronunciation
  - Unrecognized   you hear the list of practice words

Running 'sayright' without a subcommand starts a practice session.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPractice(cmd, practice)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	practice.bindFlags(root)

	root.AddCommand(
		newRunCmd(opts),
		newLookupCmd(opts),
		newDictCmd(),
		newVoicesCmd(opts),
	)
	return root
}

// loadConfig loads the .env file and the configuration, and installs the
// default logger. A missing default config file yields the built-in
// defaults; a missing file named with --config is an error.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	case err != nil:
		return nil, fmt.Errorf("%w: %w", errConfigFile, err)
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = config.LogLevel(opts.logLevel)
		if !level.IsValid() {
			return nil, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", opts.logLevel)
		}
	}
	slog.SetDefault(newLogger(level))
	if err == nil {
		slog.Debug("configuration loaded", "path", opts.configPath)
	} else {
		slog.Info("no configuration file, using defaults", "path", opts.configPath)
	}
	return cfg, nil
}
