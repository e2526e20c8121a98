package common

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLogfFollowsSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Logf("decoded %d messages", 7)
	got := buf.String()
	if !strings.HasPrefix(got, "[fitdec] ") {
		t.Fatalf("missing prefix: %q", got)
	}
	if !strings.Contains(got, "decoded 7 messages") {
		t.Fatalf("missing message: %q", got)
	}
}
