package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Stencil - a compile-time template compiler for Go",
	Long: `Stencil compiles Jinja-family templates into Go rendering code at
build time. Annotate a struct with a //stencil:template directive and run
stencil generate: the template is parsed, checked, and lowered into Render,
String, Extension and SizeHint methods for that struct.

Configuration is read from stencil.toml:
  [general] dirs, default_syntax, whitespace
  [[syntax]] named delimiter overrides
  [[escaper]] extension-to-escaper bindings`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stencil.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("STENCIL")
	viper.AutomaticEnv()
}

// configPath returns the effective configuration file path.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "stencil.toml"
}

// buildLogger creates the CLI logger; verbose enables debug output.
func buildLogger() *zap.Logger {
	if !viper.GetBool("verbose") {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
