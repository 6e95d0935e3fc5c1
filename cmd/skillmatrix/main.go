package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillmatrix/pkg/logger"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
)

// errSilent signals a failure that has already been reported to the user
var errSilent = errors.New("command failed")

func init() {
	viper.SetEnvPrefix("SKILLMATRIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillmatrix")

	// a missing user config file is fine
	_ = viper.ReadInConfig()

	viper.SetDefault("project", ".")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
}

var rootCmd = &cobra.Command{
	Use:   "skillmatrix",
	Short: "Resolve and compose skills from multiple sources",
	Long: `skillmatrix merges skills from a primary marketplace and any number of extra
sources into a single matrix, validates skill selections against their declared
relationships and keeps locally customized skills safe when their source changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return errors.Wrap(err, "invalid log level")
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	bindGlobalFlags(rootCmd.PersistentFlags())
}

// bindGlobalFlags registers the flags shared by every command and binds them to viper
func bindGlobalFlags(flags *pflag.FlagSet) {
	flags.String("project", ".", "Project directory containing .skillmatrix/config.yaml")
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "fmt", "Log format (fmt or json)")
	flags.String("cache-dir", "", "Directory for cached sources (defaults to the user cache directory)")
	flags.BoolP("quiet", "q", false, "Only print errors and requested data")

	viper.BindPFlag("project", flags.Lookup("project"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	viper.BindPFlag("quiet", flags.Lookup("quiet"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			presenter.Error(err, "")
		}
		os.Exit(1)
	}
}
