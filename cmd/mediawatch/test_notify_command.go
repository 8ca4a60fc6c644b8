package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediawatch/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through every configured notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Email.Enabled && cfg.Ntfy.Topic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifier configured; enable [email] or set ntfy.topic")
				return nil
			}
			logger, logFile, err := ctx.logger(cmd)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logFile.Close()
			if err := notifications.NewService(cfg, logger).Test(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
