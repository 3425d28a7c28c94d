package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdelaire/annoyray/internal/keychain"
)

func newSecretCmd() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials stored in the system keychain",
	}

	setCmd := &cobra.Command{
		Use:   "set <telegram_token|openai_api_key>",
		Short: "Store a credential read from stdin",
		Long: `Reads a single line from stdin and stores it in the system keychain.

Example:
  printf '%s' "$TOKEN" | annoyray secret set telegram_token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			if !keychain.ValidAccount(account) {
				return fmt.Errorf("unknown secret %q (want %s or %s)",
					account, keychain.AccountTelegramToken, keychain.AccountOpenAIKey)
			}

			value, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := keychain.Set(account, value); err != nil {
				return fmt.Errorf("store %s: %w", account, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", account)
			return nil
		},
	}

	secretCmd.AddCommand(setCmd)
	return secretCmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("empty secret on stdin")
	}
	return value, nil
}
