package recognition

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Command builds a Recognizer that shells out to an external OCR tool and
// treats its stdout as the raw recognition text. An empty command yields a
// recognizer that never reads anything, which keeps a station idle until a
// camera pipeline is configured.
func Command(command string) Recognizer {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return func(context.Context) (string, bool) { return "", false }
	}
	name, args := fields[0], fields[1:]

	return func(ctx context.Context) (string, bool) {
		out, err := exec.CommandContext(ctx, name, args...).Output()
		if err != nil {
			return "", false
		}
		text := string(bytes.TrimSpace(out))
		if text == "" {
			return "", false
		}
		return text, true
	}
}
