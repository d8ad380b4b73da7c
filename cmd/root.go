package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/inboxforward/internal/config"
)

// rootCmd represents the base command for the inboxforward application
var rootCmd = &cobra.Command{
	Use:   "inboxforward",
	Short: "Forwards unread Gmail messages to a Telegram chat",
	Long: `inboxforward polls a Gmail inbox for unread messages that do not yet carry
the processed label, forwards their text and images to a Telegram chat, and
labels them so they are not forwarded twice.

Run "inboxforward auth" once to authorize Gmail access, and
"inboxforward labels --create" to create the processed label.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	configFile string
	v          = config.New()
)

// SetVersion sets the version for the root command
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxforward version %s\n" .Version}}`)

	// If no subcommand is provided, run the poll command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "poll")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (YAML, JSON, TOML or .env)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().Bool("log-include-pii", false, "Log sender addresses and subjects verbatim")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":       "log.level",
		"log-format":      "log.format",
		"log-include-pii": "log.include_pii",
	})

	rootCmd.AddCommand(newPollCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// bindFlags binds flags to config keys. A flag only overrides the
// environment and config file when it was set on the command line.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// loadConfig reads the configuration shared by all subcommands.
func loadConfig() (*config.Config, error) {
	return config.Load(v, configFile)
}
