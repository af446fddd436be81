package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the mailbox connection",
	Long:  `Check logs in to the configured IMAP server, opens the folder and logs out again.`,
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	mailbox, err := a.newMailbox(cmd.Context())
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	ctx := cmd.Context()
	if err := mailbox.Connect(ctx); err != nil {
		err = fmt.Errorf("login to %s failed: %w", a.cfg.IMAP.Host, err)
		formatter.PrintError(err)
		return err
	}
	defer mailbox.Logout(ctx)

	if err := mailbox.Select(ctx, a.cfg.IMAP.Folder); err != nil {
		err = fmt.Errorf("folder %s not available: %w", a.cfg.IMAP.Folder, err)
		formatter.PrintError(err)
		return err
	}

	formatter.PrintSuccess(fmt.Sprintf("Connected to %s as %s, folder %s is available",
		a.cfg.IMAP.Host, a.cfg.IMAP.Username, a.cfg.IMAP.Folder))
	return nil
}
