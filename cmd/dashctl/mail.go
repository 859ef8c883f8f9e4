package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadsengine/dashboard/internal/app"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/spf13/cobra"
)

var (
	sendSubject string
	sendBody    string
	sendCC      []string
)

// newApp wires the mail engine without the inbox watcher; one-shot commands
// run a single sync or delivery and exit.
func newApp() *app.App {
	c := *cfg
	c.IMAPWatch = false
	return app.New(&c, pool, logger)
}

var syncInboxCmd = &cobra.Command{
	Use:   "sync-inbox",
	Short: "Pull the newest inbox messages into the database once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		if !a.Mail.CanSync() {
			return errors.New("IMAP credentials missing")
		}

		result, err := a.Mail.SyncInbox(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync inbox: %w", err)
		}
		return printResult(cmd, result, "Fetched %d messages: %d new, %d already stored",
			result.Fetched, result.Inserted, result.Skipped)
	},
}

var sendTestCmd = &cobra.Command{
	Use:   "send-test <to>",
	Short: "Send one message through the outbox and wait for the outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		if !a.Mail.CanSend() {
			return errors.New("SMTP credentials missing")
		}

		ctx := cmd.Context()
		a.Start(ctx)

		msg, err := a.Mail.Send(ctx, models.Compose{
			To:      []string{args[0]},
			CC:      sendCC,
			Subject: sendSubject,
			Body:    sendBody,
		})
		if err != nil {
			_ = a.Close(ctx)
			return fmt.Errorf("queue message: %w", err)
		}

		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.SendTimeout*3)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			return err
		}

		stored, err := db.GetMessageByID(ctx, pool, msg.ID)
		if err != nil {
			return fmt.Errorf("read message status: %w", err)
		}
		if stored.Status == models.StatusFailed {
			return fmt.Errorf("delivery failed: %s", stored.Error)
		}
		return printResult(cmd, stored, "Message %s %s to %s (subject %q)",
			stored.ID, stored.Status, strings.Join(stored.ToAddresses, ", "), stored.Subject)
	},
}

func init() {
	sendTestCmd.Flags().StringVarP(&sendSubject, "subject", "s", "Test message", "Subject (a stored thread subject takes precedence)")
	sendTestCmd.Flags().StringVarP(&sendBody, "body", "b", "Sent at "+time.Now().Format(time.RFC1123), "Plain-text body")
	sendTestCmd.Flags().StringSliceVar(&sendCC, "cc", nil, "CC recipients")

	rootCmd.AddCommand(syncInboxCmd, sendTestCmd)
}
