// Package cli implements the discordscript commands.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	discord "github.com/oklahomer/go-discord-bridge"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "discordscript",
	Short: "Drive Discord bots with script instructions",
	Long: "Connects Discord bots under script-chosen names, executes instructions read line by line " +
		"and prints the events the bots observe as JSON lines.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: built-in defaults)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File to load environment variables from")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	l := logrus.New()
	l.SetOutput(cmd.ErrOrStderr())
	l.SetLevel(level)
	logger.SetLogger(l)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logger.Debugf("The env file %s was not loaded: %+v", envFile, err)
		}
	}

	return nil
}

func loadConfig() (*discord.Config, error) {
	if configPath == "" {
		return discord.NewConfig(), nil
	}
	return discord.LoadConfig(configPath)
}
