package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "wardd":
		return warddTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const warddTemplate = `id = "wardd.local"
listen_addr = ":8000"
cors_origins = ["*"]

[auth]
secret = "change-me-shared-hs256-secret"
agent_token_ttl_hours = 168
controller_token_ttl_hours = 12
revoked_prune_minutes = 60

[[auth.users]]
username = "overseer"
password = "change-me"
role = "controller"

[[auth.users]]
username = "ward1"
password = "change-me"
role = "agent"

[relay]
handshake_timeout_seconds = 10
write_timeout_seconds = 10
send_queue_depth = 256
max_frame_bytes = 1048576
allowed_origins = ["*"]
data_kinds = ["camera", "microphone", "screen", "directory", "files", "location"]

[sweep]
interval_seconds = 120
expire_after_seconds = 150
`
