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

	"github.com/mailwarden/mailwarden/internal/mailbox"
	"github.com/mailwarden/mailwarden/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously watch the mailbox and apply the rule table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("imap") || !viper.InConfig("smtp") {
			return fmt.Errorf(`configuration missing or incomplete.

Create a config.yaml file by running:
  mailwarden init

The configuration file should be in your current directory and contain:
- IMAP server settings (which mailbox to watch)
- SMTP server settings (to send replies and forwards)
- Rule settings (which senders trigger which actions)`)
		}

		engine, dial, _, err := buildEngine()
		if err != nil {
			return err
		}

		slog.Info("Starting serve mode (watching mailbox)")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return engine.Run(ctx, dial, engineOptions(false))
	},
}

// buildEngine materializes every component from the loaded configuration.
// The mailbox credentials are resolved once, not on every reconnect.
func buildEngine() (*rules.Engine, rules.Dial, []rules.Rule, error) {
	cfg := engineConfig()
	sender := smtpSender()

	proc, err := proxyProcessor(sender)
	if err != nil {
		return nil, nil, nil, err
	}

	table := rules.BuildTable(cfg)
	engine := rules.NewEngine(table, cfg, sender, proc)

	mbox := mailboxConfig()
	dial := func() (rules.Session, error) {
		return mailbox.Dial(mbox)
	}
	return engine, dial, table, nil
}
