package gh

import (
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "netscore"
	keyringUser    = "github_token"
)

// Token resolves the GitHub token from the named environment variable, falling
// back to the OS keychain. It returns "" when neither has one.
func Token(envName string) string {
	if envName != "" {
		if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
			return v
		}
	}
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}
