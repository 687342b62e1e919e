package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/wardctl/internal/auth"
	"github.com/danmuck/wardctl/internal/protocol"
)

// Credentials converts provisioned user entries into authority
// credentials, hashing any plain passwords.
func Credentials(entries []UserConfig) ([]auth.Credential, error) {
	creds := make([]auth.Credential, 0, len(entries))
	for i, entry := range entries {
		role, err := protocol.ParseRole(entry.Role)
		if err != nil {
			return nil, fmt.Errorf("auth.users[%d]: %w", i, err)
		}

		var hash []byte
		if stored := strings.TrimSpace(entry.PasswordHash); stored != "" {
			hash = []byte(stored)
		} else {
			hash, err = auth.HashPassword(entry.Password)
			if err != nil {
				return nil, fmt.Errorf("auth.users[%d]: hash password: %w", i, err)
			}
		}

		creds = append(creds, auth.Credential{
			Username:     strings.TrimSpace(entry.Username),
			PasswordHash: hash,
			Role:         role,
		})
	}
	return creds, nil
}
