// Package batch decides whether a composition renders in one pass or in
// overlapping batches, and computes per-image durations that keep the final
// length on target once every crossfade has been paid for.
package batch

import "fmt"

// Batch is one group of images rendered into a single segment
type Batch struct {
	Index int `json:"index"`
	// Images are indexes into the request's image list
	Images    []int     `json:"images"`
	Durations []float64 `json:"durations"`
	// Overlap is true when Images[0] repeats the previous batch's last image
	Overlap         bool    `json:"overlap"`
	SegmentDuration float64 `json:"segment_duration"`
}

// Plan is the scheduling decision for one composition
type Plan struct {
	Batched    bool    `json:"batched"`
	Target     float64 `json:"target"`
	PerImage   float64 `json:"per_image"`
	Transition float64 `json:"transition"`
	Clamped    bool    `json:"clamped,omitempty"`
	Batches    []Batch `json:"batches"`
	// Offsets[k-1] is where the transition into batch k starts in the stitched video
	Offsets []float64 `json:"offsets,omitempty"`
}

// Crossfades is the number of transitions executed by the plan
func (p *Plan) Crossfades() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Images) - 1
	}
	return n + len(p.Batches) - 1
}

// Duration is the length of the rendered video after all transitions
func (p *Plan) Duration() float64 {
	if len(p.Batches) == 0 {
		return 0
	}
	total := p.Batches[0].SegmentDuration
	for k := 1; k < len(p.Batches); k++ {
		total = p.Offsets[k-1] + p.Batches[k].SegmentDuration
	}
	return total
}

// Schedule plans n images over target seconds with transitions of t seconds.
// Up to threshold images render in one pass; more are split into batches of
// batchSize new images, each later batch starting with the previous batch's
// last image.
func Schedule(n int, target, t float64, threshold, batchSize int) (*Plan, error) {
	if n < 1 {
		return nil, fmt.Errorf("schedule needs at least one image")
	}
	if target <= 0 {
		return nil, fmt.Errorf("target duration %.3f must be positive", target)
	}
	if t < 0 {
		return nil, fmt.Errorf("transition duration %.3f is negative", t)
	}
	if batchSize < 2 {
		return nil, fmt.Errorf("batch size %d must be at least 2", batchSize)
	}

	groups := [][]int{seq(0, n)}
	batched := n > threshold
	if batched {
		groups = split(n, batchSize)
	}

	// every internal join plus every seam consumes t seconds
	fades := n - 1
	if batched {
		fades += len(groups) - 1
	}

	p := &Plan{Batched: batched, Target: target, Transition: t}
	if n == 1 {
		p.Transition = 0
	} else if limit := target / float64(2*n-fades); t > limit {
		p.Transition = limit
		p.Clamped = true
	}
	p.PerImage = (target + float64(fades)*p.Transition) / float64(n)

	for k, g := range groups {
		b := Batch{
			Index:     k,
			Images:    g,
			Durations: make([]float64, len(g)),
			Overlap:   k > 0,
		}
		for i := range g {
			b.Durations[i] = p.PerImage
		}
		b.SegmentDuration = segmentDuration(b.Durations, p.Transition)
		p.Batches = append(p.Batches, b)
	}
	p.Offsets = StitchOffsets(segments(p.Batches), overlaps(p.Batches), p.Transition)
	return p, nil
}

// StitchOffsets returns the xfade offset of every seam. The transition into
// segment k starts one overlap image plus one transition before the end of
// the video stitched so far, so the repeated image is shown once.
func StitchOffsets(segmentDurations, overlapDurations []float64, t float64) []float64 {
	if len(segmentDurations) < 2 {
		return nil
	}
	offsets := make([]float64, 0, len(segmentDurations)-1)
	cum := segmentDurations[0]
	for k := 1; k < len(segmentDurations); k++ {
		off := cum - overlapDurations[k] - t
		offsets = append(offsets, off)
		cum = off + segmentDurations[k]
	}
	return offsets
}

// segmentDuration is the length of clips joined with transitions of t
func segmentDuration(durations []float64, t float64) float64 {
	total := 0.0
	for _, d := range durations {
		total += d
	}
	return total - float64(len(durations)-1)*t
}

func segments(batches []Batch) []float64 {
	out := make([]float64, len(batches))
	for i, b := range batches {
		out[i] = b.SegmentDuration
	}
	return out
}

// overlaps returns, per batch, the duration of its repeated leading image
func overlaps(batches []Batch) []float64 {
	out := make([]float64, len(batches))
	for i, b := range batches {
		if b.Overlap {
			out[i] = b.Durations[0]
		}
	}
	return out
}

func split(n, size int) [][]int {
	var groups [][]int
	for start := 0; start < n; start += size {
		g := seq(start, min(start+size, n))
		if start > 0 {
			g = append([]int{start - 1}, g...)
		}
		groups = append(groups, g)
	}
	return groups
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
