package keychain

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "annoyray"

// Accounts under which the bot's credentials are stored.
const (
	AccountTelegramToken = "telegram_token"
	AccountOpenAIKey     = "openai_api_key"
)

// ValidAccount reports whether name is one of the known accounts.
func ValidAccount(name string) bool {
	return name == AccountTelegramToken || name == AccountOpenAIKey
}

// Get retrieves a secret from the system keychain.
func Get(account string) (string, error) {
	return keyring.Get(serviceName, account)
}

// Set stores a secret in the system keychain.
func Set(account, value string) error {
	if !ValidAccount(account) {
		return fmt.Errorf("unknown account %q", account)
	}
	return keyring.Set(serviceName, account, value)
}
