package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mailwarden/mailwarden/internal/web"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Watch the mailbox and serve the status dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("imap") || !viper.InConfig("smtp") {
			return fmt.Errorf("config.yaml is missing or incomplete. Run `mailwarden init`")
		}

		engine, dial, table, err := buildEngine()
		if err != nil {
			return err
		}

		port := viper.GetString("web.port")
		bind := viper.GetString("web.bind")
		username := stringOr("web.username", "admin")
		password := viper.GetString("web.password")
		if password == "" {
			slog.Warn("No web.password configured - the dashboard will reject all logins")
		}

		slog.Info("Starting web interface", "port", port, "bind", bind)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The engine runs alongside the dashboard; whichever stops first
		// takes the other down with it.
		engineErr := make(chan error, 1)
		engineCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			engineErr <- engine.Run(engineCtx, dial, engineOptions(false))
		}()

		server := web.NewServer(port, bind, username, password, engine.Status(), table)
		serverErr := server.Start(ctx)

		cancel()
		if err := <-engineErr; err != nil {
			return err
		}
		return serverErr
	},
}

func init() {
	// Add web-specific flags
	webCmd.Flags().String("port", "8080", "Port to bind the web server to")
	webCmd.Flags().String("bind", "127.0.0.1", "Address to bind the web server to")

	if err := viper.BindPFlag("web.port", webCmd.Flags().Lookup("port")); err != nil {
		slog.Error("Failed to bind port flag", "error", err)
	}
	if err := viper.BindPFlag("web.bind", webCmd.Flags().Lookup("bind")); err != nil {
		slog.Error("Failed to bind bind flag", "error", err)
	}
}
