package encoder

import (
	"bytes"
	"strings"
	"sync"
)

// maxLineBytes caps a single retained diagnostic line
const maxLineBytes = 1024

// tailBuffer is an io.Writer that keeps only the last limit complete lines
type tailBuffer struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial bytes.Buffer
}

func newTailBuffer(limit int) *tailBuffer {
	if limit < 1 {
		limit = 1
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			if room := maxLineBytes - t.partial.Len(); room > 0 {
				t.partial.Write(p[:min(len(p), room)])
			}
			break
		}
		if room := maxLineBytes - t.partial.Len(); room > 0 {
			t.partial.Write(p[:min(i, room)])
		}
		t.flush()
		p = p[i+1:]
	}
	return n, nil
}

func (t *tailBuffer) flush() {
	line := strings.TrimSpace(t.partial.String())
	t.partial.Reset()
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

// Lines returns the retained lines, including an unterminated last line
func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := append([]string(nil), t.lines...)
	if last := strings.TrimSpace(t.partial.String()); last != "" {
		out = append(out, last)
		if len(out) > t.limit {
			out = out[len(out)-t.limit:]
		}
	}
	return out
}
