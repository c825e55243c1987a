package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the rule table once over the mailbox and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, dial, _, err := buildEngine()
		if err != nil {
			return err
		}

		if err := engine.Run(context.Background(), dial, engineOptions(true)); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		return nil
	},
}
