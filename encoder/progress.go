package encoder

import (
	"bytes"
	"strconv"
	"strings"
)

// progressWriter parses the key=value stream written by "-progress pipe:1"
// and reports completion percentages in [0, 100]. Reports never go backwards.
type progressWriter struct {
	total   float64
	report  func(percent float64)
	last    float64
	partial []byte
}

func newProgressWriter(total float64, report func(float64)) *progressWriter {
	return &progressWriter{total: total, report: report, last: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.line(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) line(s string) {
	key, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return
	}
	switch key {
	// out_time_ms is in microseconds as well
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 || w.total <= 0 {
			return
		}
		w.emit(min(float64(us)/1e6/w.total*100, 99.9))
	case "progress":
		if value == "end" {
			w.emit(100)
		}
	}
}

func (w *progressWriter) emit(pct float64) {
	if pct <= w.last {
		return
	}
	w.last = pct
	if w.report != nil {
		w.report(pct)
	}
}
