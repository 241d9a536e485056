package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"fundarb/internal/application/port"
)

// Sink 把看板打印到终端
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink() port.Sink { return &Sink{w: os.Stdout} }

// NewWriterSink 输出到任意 writer
func NewWriterSink(w io.Writer) *Sink { return &Sink{w: w} }

// WriteBoard 先输出带时间的标题行，再输出表格，末尾留一个空行
func (s *Sink) WriteBoard(ts time.Time, title string, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n", ts.Format("2006-01-02 15:04:05"), title)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, "\n")
	return err
}
