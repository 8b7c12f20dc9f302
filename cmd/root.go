package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	command  string
	noPrompt bool
)

// configDir is the --config flag, or the user's config directory.
func configDir() string {
	if cfgPath != "" {
		return cfgPath
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "pipesh")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(configDir())

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// loadConfigOrDefault falls back to the built-in configuration if none was
// initialized, in which case dir is empty.
func loadConfigOrDefault() (configuration *config.Configuration, dir string, err error) {
	dir = configDir()
	configuration, err = config.Load(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	return configuration, dir, err
}

// openEventLog returns the configured event log, or one that discards
// everything if the configuration has none.
func openEventLog(configuration *config.Configuration) (*logger.Logger, io.Closer, error) {
	if configuration.EventLog == "" {
		return logger.Discard(), io.NopCloser(nil), nil
	}

	fd, err := configuration.OpenEventLog()
	switch {
	case errors.Is(err, config.ErrNoDirectory):
		return logger.Discard(), io.NopCloser(nil), nil
	case err != nil:
		return nil, nil, err
	}
	return logger.NewJSONLinesLogRecorder(fd), fd, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "Pipeline shell",
	Long: `A small command interpreter that runs lines of the form

  cmd args... [< in] | cmd args... | ... [> out] [&]

as pipelines of host processes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, dir, err := loadConfigOrDefault()
		if err != nil {
			return err
		}

		eventLog, closer, err := openEventLog(configuration)
		if err != nil {
			return err
		}
		defer closer.Close()

		opsys := &vos.HostOS{Path: configuration.Path}
		sh := core.NewShell(configuration, opsys, cmd.OutOrStdout(), eventLog.NewSession())
		sh.ConfigDir = dir
		if noPrompt {
			sh.Prompt = ""
		}

		if cmd.Flags().Changed("command") {
			status, _ := sh.RunLine(command)
			if !status.Success() {
				closer.Close()
				os.Exit(status.Code)
			}
			return nil
		}

		reader, err := sh.NewLineReader(os.Stdin, configuration.HistoryPath())
		if err != nil {
			return err
		}
		defer reader.Close()

		return sh.Serve(reader)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory (default is $XDG_CONFIG_HOME/pipesh)")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run one line and exit with its status")
	rootCmd.Flags().BoolVarP(&noPrompt, "no-prompt", "n", false, "don't print a prompt")
}
