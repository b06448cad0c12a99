package config

import (
	"fmt"
	"os"
	"strings"
)

// SetEnvValue rewrites a single KEY=value line in an env file, appending the
// line when the key is not present yet. Pipeline steps use this to hand
// values (DATA_FOLDER, FABRIC_AGENT_ID) to later steps and later runs.
func SetEnvValue(path, key, value string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		content = nil
	}

	lines := strings.Split(string(content), "\n")
	prefix := key + "="
	updated := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			lines[i] = prefix + value
			updated = true
			break
		}
	}

	if !updated {
		// Drop a single trailing blank line so appends stay tidy.
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, prefix+value)
	}

	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}

	return nil
}
