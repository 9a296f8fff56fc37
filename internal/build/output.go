package build

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

// logWriter forwards subprocess output line by line to the debug log and
// remembers the last lines written.
type logWriter struct {
	repo, stage, stream string

	mu      sync.Mutex
	partial bytes.Buffer
	keep    int
	tail    []string
}

func newLogWriter(repo, stage, stream string, keep int) *logWriter {
	return &logWriter{repo: repo, stage: stage, stream: stream, keep: keep}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partial.Write(p)
	for {
		line, err := w.partial.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.partial.Reset()
			w.partial.WriteString(line)
			break
		}
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits a trailing line without newline.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial.Len() > 0 {
		w.emit(w.partial.String())
		w.partial.Reset()
	}
}

func (w *logWriter) emit(line string) {
	slog.Debug(line, logfields.Repository(w.repo), logfields.Stage(w.stage), slog.String("stream", w.stream))
	if w.keep == 0 {
		return
	}
	w.tail = append(w.tail, line)
	if len(w.tail) > w.keep {
		w.tail = w.tail[len(w.tail)-w.keep:]
	}
}

// Tail returns the remembered lines joined by newlines.
func (w *logWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.tail, "\n")
}
