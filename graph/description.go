// Package graph builds declarative filter graph descriptions: inputs,
// filter nodes connected through named ports, and the output ports to map.
// A Description is plain data; the encoder package turns it into an
// ffmpeg command line.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Description kinds
const (
	KindSingle   = "single"
	KindSegment  = "segment"
	KindStitch   = "stitch"
	KindFinalize = "finalize"
)

// Option is one ordered key/value pair. An empty Value means a bare flag.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Input is a file (or lavfi source when Options contain f=lavfi) read by the engine
type Input struct {
	Path    string   `json:"path"`
	Options []Option `json:"options,omitempty"`
}

// Node is one filter. Inputs name ports: "N:v"/"N:a" for input streams or
// the Output label of an earlier node.
type Node struct {
	Filter string   `json:"filter"`
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
	Args   []string `json:"args,omitempty"`
	Params []Option `json:"params,omitempty"`
}

// Description is a complete render: inputs, filter nodes in topological order
// and the ports mapped to the output file. AudioOut is empty for video-only renders.
type Description struct {
	Kind     string  `json:"kind"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      int     `json:"fps"`
	Duration float64 `json:"duration"`
	Inputs   []Input `json:"inputs"`
	Nodes    []Node  `json:"nodes"`
	VideoOut string  `json:"video_out"`
	AudioOut string  `json:"audio_out,omitempty"`
}

// InputPort names a stream of input index i; kind is "v" or "a"
func InputPort(i int, kind string) string {
	return fmt.Sprintf("%d:%s", i, kind)
}

// ParseInputPort splits an input port into index and kind
func ParseInputPort(port string) (int, string, bool) {
	var idx int
	var kind string
	n, err := fmt.Sscanf(strings.Replace(port, ":", " ", 1), "%d %s", &idx, &kind)
	if err != nil || n != 2 || (kind != "v" && kind != "a") {
		return 0, "", false
	}
	return idx, kind, true
}

// Validate checks that every port is defined before use, node labels are
// unique and consumed at most once, and the output ports exist.
func (d *Description) Validate() error {
	if len(d.Inputs) == 0 {
		return fmt.Errorf("graph has no inputs")
	}
	if d.VideoOut == "" {
		return fmt.Errorf("graph has no video output")
	}
	if d.Duration <= 0 {
		return fmt.Errorf("graph duration %.3f must be positive", d.Duration)
	}

	defined := make(map[string]bool, len(d.Nodes))
	consumed := make(map[string]bool, len(d.Nodes))
	use := func(port, where string) error {
		if idx, _, ok := ParseInputPort(port); ok {
			if idx < 0 || idx >= len(d.Inputs) {
				return fmt.Errorf("%s references input %d of %d", where, idx, len(d.Inputs))
			}
			return nil
		}
		if !defined[port] {
			return fmt.Errorf("%s references undefined port %q", where, port)
		}
		if consumed[port] {
			return fmt.Errorf("%s reuses port %q", where, port)
		}
		consumed[port] = true
		return nil
	}

	for i, n := range d.Nodes {
		where := fmt.Sprintf("node %d (%s)", i, n.Filter)
		if n.Filter == "" || n.Output == "" || len(n.Inputs) == 0 {
			return fmt.Errorf("%s is incomplete", where)
		}
		for _, in := range n.Inputs {
			if err := use(in, where); err != nil {
				return err
			}
		}
		if _, _, ok := ParseInputPort(n.Output); ok || defined[n.Output] {
			return fmt.Errorf("%s redefines port %q", where, n.Output)
		}
		defined[n.Output] = true
	}

	if err := use(d.VideoOut, "video output"); err != nil {
		return err
	}
	if d.AudioOut != "" {
		if err := use(d.AudioOut, "audio output"); err != nil {
			return err
		}
	}
	return nil
}

// JSON serialises the description. Identical descriptions give identical bytes.
func (d *Description) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// String renders the graph in filtergraph-like notation for logs and debugging
func (d *Description) String() string {
	var b strings.Builder
	for i, in := range d.Inputs {
		fmt.Fprintf(&b, "input %d: %s", i, in.Path)
		for _, o := range in.Options {
			fmt.Fprintf(&b, " -%s", o.Key)
			if o.Value != "" {
				fmt.Fprintf(&b, " %s", o.Value)
			}
		}
		b.WriteString("\n")
	}
	for _, n := range d.Nodes {
		for _, in := range n.Inputs {
			fmt.Fprintf(&b, "[%s]", in)
		}
		b.WriteString(n.Filter)
		parts := append([]string{}, n.Args...)
		for _, p := range n.Params {
			parts = append(parts, p.Key+"="+p.Value)
		}
		if len(parts) > 0 {
			b.WriteString("=" + strings.Join(parts, ":"))
		}
		fmt.Fprintf(&b, "[%s];\n", n.Output)
	}
	fmt.Fprintf(&b, "map video [%s]", d.VideoOut)
	if d.AudioOut != "" {
		fmt.Fprintf(&b, " audio [%s]", d.AudioOut)
	}
	return b.String()
}
