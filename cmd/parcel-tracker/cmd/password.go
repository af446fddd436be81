package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parcel-tracking/internal/credential"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the IMAP password in the system keyring",
	Long: `The IMAP password is looked up in the system keyring when no password is
configured. It is stored under the configured host and username.`,
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the IMAP password, read from stdin",
	Args:  cobra.NoArgs,
	RunE:  runPasswordSet,
}

var passwordDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored IMAP password",
	Args:  cobra.NoArgs,
	RunE:  runPasswordDelete,
}

func init() {
	passwordCmd.AddCommand(passwordSetCmd, passwordDeleteCmd)
	rootCmd.AddCommand(passwordCmd)
}

func openKeyring(cmd *cobra.Command) (*credential.Store, string, error) {
	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.RequireIMAP(); err != nil {
		return nil, "", err
	}
	if cfg.Keyring.Disabled {
		return nil, "", errors.New("keyring is disabled")
	}

	store, err := credential.Open(credential.Config{
		Backend: cfg.Keyring.Backend,
		FileDir: cfg.Keyring.FileDir,
	})
	if err != nil {
		return nil, "", err
	}
	return store, credential.Key(cfg.IMAP.Host, cfg.IMAP.Username), nil
}

func runPasswordSet(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	store, key, err := openKeyring(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		if err == nil {
			err = errors.New("empty password")
		}
		err = fmt.Errorf("failed to read password: %w", err)
		formatter.PrintError(err)
		return err
	}

	if err := store.Set(key, password); err != nil {
		formatter.PrintError(err)
		return err
	}
	formatter.PrintSuccess("Stored password for " + key)
	return nil
}

func runPasswordDelete(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	store, key, err := openKeyring(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	if err := store.Delete(key); err != nil {
		formatter.PrintError(err)
		return err
	}
	formatter.PrintSuccess("Removed password for " + key)
	return nil
}
