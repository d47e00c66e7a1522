// Package commands provides agentctl's CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentcore/turnengine/internal/logging"
)

var (
	// Version is set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs   bool
	logLevel    string
	logFile     bool
	globalModel string
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "agentctl drives the Turn Engine against an external agent runtime",
	Long: `agentctl wires the Session Store, Permission Arbiter, Checkpoint
Recorder and Turn Engine together, either as a headless HTTP server or for
a single one-shot turn from the command line.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Output: os.Stderr,
			Pretty: printLogs,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logCfg.LogToFile = logFile
		logging.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file")
	rootCmd.PersistentFlags().StringVarP(&globalModel, "model", "m", "", "Model override")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentctl %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns dir if set, else the process's current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
