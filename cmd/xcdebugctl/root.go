package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/xcodebuildmcp/debugger/internal/telemetry"
)

var cfgFile string

// rootCmd is the xcdebugctl entry point. Subcommands are registered in
// init() across the other files in this package, following the teacher's
// one-flag-set-per-concern style generalized to cobra's per-command flag
// sets rather than a single flag.FlagSet.
var rootCmd = &cobra.Command{
	Use:     "xcdebugctl",
	Short:   "Drive the xcodebuildmcp debug session manager from a terminal",
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.xcdebugctl.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "backend kind: dap or lldb-cli (default: env XCODEBUILDMCP_DEBUGGER_BACKEND, else dap)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig wires viper's file+env+flag layering, grounded on the pack's
// cobra+viper CLI pattern (the teacher itself has no CLI framework: its
// editor took a bare flag.FlagSet, so this layer is adopted from the rest
// of the example pack rather than generalized from keystorm).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".xcdebugctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("XCODEBUILDMCP")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig() // absent config file is not an error
}

func initLogging() error {
	level := zapcore.InfoLevel
	switch viper.GetString("log-level") {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}
	telemetry.SetDefault(telemetry.NewLogger(level))
	return nil
}
