package port

import "time"

type Sink interface {
	// Snapshot block: a timestamped header followed by table lines
	WriteBoard(ts time.Time, title string, lines []string) error
	// Normal newline (for logs)
	NewLine() error
}
