package supervisor

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stream identifies which pipe a line came from.
type Stream string

const (
	// Stdout is the child's standard output.
	Stdout Stream = "stdout"
	// Stderr is the child's standard error.
	Stderr Stream = "stderr"
)

// Line is one captured output line.
type Line struct {
	Stream Stream
	Text   string
	Time   time.Time
}

// output accumulates lines from both pipes in arrival order.
type output struct {
	mu      sync.Mutex
	lines   []Line
	writers []*streamWriter
	logger  zerolog.Logger
	onLine  func(Line)
}

func newOutput(logger zerolog.Logger, onLine func(Line)) *output {
	return &output{logger: logger, onLine: onLine}
}

func (o *output) writer(stream Stream) *streamWriter {
	w := &streamWriter{out: o, stream: stream}
	o.mu.Lock()
	o.writers = append(o.writers, w)
	o.mu.Unlock()
	return w
}

// appendLocked records a line. o.mu must be held.
func (o *output) appendLocked(stream Stream, text string) {
	line := Line{Stream: stream, Text: strings.TrimSuffix(text, "\r"), Time: time.Now()}
	o.lines = append(o.lines, line)
	o.logger.Debug().Str("stream", string(stream)).Msg(line.Text)
	if o.onLine != nil {
		o.onLine(line)
	}
}

// flush records any unterminated trailing output.
func (o *output) flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, w := range o.writers {
		if len(w.partial) > 0 {
			o.appendLocked(w.stream, string(w.partial))
			w.partial = nil
		}
	}
}

func (o *output) snapshot() []Line {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Line, len(o.lines))
	copy(out, o.lines)
	return out
}

// streamWriter splits one pipe into lines.
type streamWriter struct {
	out     *output
	stream  Stream
	partial []byte
}

// Write implements io.Writer.
func (w *streamWriter) Write(p []byte) (int, error) {
	w.out.mu.Lock()
	defer w.out.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.out.appendLocked(w.stream, string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	if len(w.partial) == 0 {
		w.partial = nil
	}
	return len(p), nil
}
