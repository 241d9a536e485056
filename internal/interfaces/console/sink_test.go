package console

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteBoard(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	if err := s.WriteBoard(ts, "funding diff", []string{"BTCUSDT 0.01%", "ETHUSDT 0.02%"}); err != nil {
		t.Fatalf("WriteBoard failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2026-03-01 08:00:00 funding diff\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.HasSuffix(out, "ETHUSDT 0.02%\n\n") {
		t.Errorf("unexpected tail: %q", out)
	}
}
