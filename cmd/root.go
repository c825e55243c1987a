package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mailwarden",
	Short: "Watch a mailbox and act on matching mail",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Setup logger after flag parsing
		setupLogger()
	},
}

func init() {
	// Add persistent flag to enable verbose logging
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (info/debug) logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)

	// Register subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(initCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("mailwarden")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("No config.yaml found in current directory.",
				"hint", "Run `mailwarden init` to create one interactively.")
		} else {
			slog.Error("Failed to read config", "error", err)
		}
	} else {
		// Validate config after successful load
		validateConfig()
	}
}

func validateConfig() {
	addressLists := map[string][]string{
		"rules.work.senders":      viper.GetStringSlice("rules.work.senders"),
		"rules.newsletters.to":    viper.GetStringSlice("rules.newsletters.to"),
		"rules.record_only.to":    viper.GetStringSlice("rules.record_only.to"),
		"rules.obnoxious.senders": viper.GetStringSlice("rules.obnoxious.senders"),
	}

	configured := 0
	for key, addresses := range addressLists {
		configured += len(addresses)
		for _, address := range addresses {
			if address != strings.ToLower(address) {
				slog.Warn("Filter address contains uppercase letters",
					"key", key, "address", address,
					"hint", "Address matching is case-insensitive, consider using lowercase for consistency")
			}
		}
	}

	if configured == 0 && viper.GetString("rules.proxy.address") == "" {
		slog.Warn("No rules configured - no mail will be processed")
	}

	if len(viper.GetStringSlice("rules.work.senders")) > 0 &&
		viper.GetString("rules.work.forward_to") == "" {
		slog.Warn("Work senders configured without rules.work.forward_to - forwarding will not work")
	}

	if viper.GetString("rules.proxy.address") != "" &&
		viper.GetString("rules.proxy.folder") == "" {
		slog.Warn("Proxy address configured without rules.proxy.folder - proxied content will not be stored")
	}
}

func setupLogger() {
	var level slog.Level
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
