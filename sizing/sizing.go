// Package sizing computes overlay geometry from golden-ratio and
// percentage-of-frame rules. Every function is pure.
package sizing

import (
	"math"
	"strings"

	"reelcomposer/platform"
	"reelcomposer/types"
)

// Kind is the overlay type being sized
type Kind string

const (
	KindLogo       Kind = "logo"
	KindReviewCard Kind = "review_card"
)

const (
	// Phi is the golden ratio
	Phi = 1.618033988749895

	// nearSquare is the largest landscape aspect still sized off the frame width
	nearSquare = 1.1

	// marginRatio is the minimum clear space around an overlay, per axis
	marginRatio = 0.05

	// textBase is the reference dimension at which TextScale is 1
	textBase = 1080.0
)

// FallbackAsset is used when an overlay's dimensions are unknown
var FallbackAsset = types.Dimensions{Width: 1920, Height: 1080}

// Anchor names
const (
	TopLeft      = "top-left"
	TopCenter    = "top-center"
	TopRight     = "top-right"
	CenterLeft   = "center-left"
	Center       = "center"
	CenterRight  = "center-right"
	BottomLeft   = "bottom-left"
	BottomCenter = "bottom-center"
	BottomRight  = "bottom-right"
)

// ValidAnchor reports whether name is one of the anchor names
func ValidAnchor(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TopLeft, TopCenter, TopRight, CenterLeft, Center, CenterRight, BottomLeft, BottomCenter, BottomRight:
		return true
	}
	return false
}

// goldenWidthCap is the default fraction of frame width an overlay may occupy:
// 1/phi^2 for logos, 1/phi for review cards.
func goldenWidthCap(kind Kind) float64 {
	if kind == KindReviewCard {
		return 1 / Phi
	}
	return 1 / (Phi * Phi)
}

func rule(tpl *platform.Template, kind Kind) platform.OverlayRule {
	if kind == KindReviewCard {
		return tpl.ReviewCard
	}
	return tpl.Logo
}

// ReferenceDimension returns the frame side overlays are sized from
func ReferenceDimension(tpl *platform.Template, frameW, frameH int) float64 {
	if frameH <= 0 {
		return float64(frameW)
	}
	aspect := float64(frameW) / float64(frameH)
	if tpl.WidthReference || aspect <= nearSquare {
		return float64(frameW)
	}
	return float64(frameH)
}

// ComputeOverlaySize sizes and positions one overlay on the frame.
// The asset aspect ratio is preserved; the height always lands inside the
// template's [min, max] range even when that breaks the percentage rule.
func ComputeOverlaySize(tpl *platform.Template, kind Kind, frameW, frameH, assetW, assetH int, anchor string) types.Placement {
	if assetW <= 0 || assetH <= 0 {
		assetW, assetH = FallbackAsset.Width, FallbackAsset.Height
	}
	r := rule(tpl, kind)
	aspect := float64(assetW) / float64(assetH)

	height := ReferenceDimension(tpl, frameW, frameH) * r.Percent
	width := height * aspect

	capRatio := goldenWidthCap(kind)
	if r.MaxWidthRatio > 0 && r.MaxWidthRatio < capRatio {
		capRatio = r.MaxWidthRatio
	}
	if maxWidth := float64(frameW) * capRatio; width > maxWidth {
		width = maxWidth
		height = width / aspect
	}

	h := int(math.Round(height))
	if h > r.MaxHeight {
		h = r.MaxHeight
	}
	if h < r.MinHeight {
		h = r.MinHeight
	}
	w := int(math.Round(float64(h) * aspect))
	if w < 1 {
		w = 1
	}

	if anchor == "" {
		anchor = r.Anchor
	}
	x, y := Position(anchor, frameW, frameH, w, h)
	return types.Placement{Width: w, Height: h, X: x, Y: y}
}

// Position places a w×h box on the frame at a named anchor with a 5% clear-space
// margin. Unknown anchors fall back to bottom-right.
func Position(anchor string, frameW, frameH, w, h int) (x, y int) {
	mx := int(math.Round(float64(frameW) * marginRatio))
	my := int(math.Round(float64(frameH) * marginRatio))
	left, centerX, right := mx, (frameW-w)/2, frameW-w-mx
	top, centerY, bottom := my, (frameH-h)/2, frameH-h-my

	switch strings.ToLower(strings.TrimSpace(anchor)) {
	case TopLeft:
		x, y = left, top
	case TopCenter:
		x, y = centerX, top
	case TopRight:
		x, y = right, top
	case CenterLeft:
		x, y = left, centerY
	case Center:
		x, y = centerX, centerY
	case CenterRight:
		x, y = right, centerY
	case BottomLeft:
		x, y = left, bottom
	case BottomCenter:
		x, y = centerX, bottom
	default:
		x, y = right, bottom
	}
	return max(x, 0), max(y, 0)
}

// Result is the full sizing outcome for one request
type Result struct {
	Logo       *types.Placement `json:"logo,omitempty"`
	ReviewCard *types.Placement `json:"review_card,omitempty"`
	TextScale  float64          `json:"text_scale"`
	SafeZone   types.Rect       `json:"safe_zone"`
}

// Input carries the overlay assets present in a request. A nil dimension
// means the overlay is absent; a zero one means its size is unknown.
type Input struct {
	Logo             *types.Dimensions
	ReviewCard       *types.Dimensions
	LogoAnchor       string
	ReviewCardAnchor string
}

// Compute sizes every overlay present in in for the template's frame
func Compute(tpl *platform.Template, in Input) Result {
	fw, fh := tpl.Width, tpl.Height
	res := Result{
		TextScale: ReferenceDimension(tpl, fw, fh) / textBase,
		SafeZone:  SafeZone(tpl),
	}
	if in.Logo != nil {
		p := ComputeOverlaySize(tpl, KindLogo, fw, fh, in.Logo.Width, in.Logo.Height, in.LogoAnchor)
		res.Logo = &p
	}
	if in.ReviewCard != nil {
		p := ComputeOverlaySize(tpl, KindReviewCard, fw, fh, in.ReviewCard.Width, in.ReviewCard.Height, in.ReviewCardAnchor)
		res.ReviewCard = &p
	}
	return res
}

// SafeZone returns the inset rectangle left free of platform UI chrome
func SafeZone(tpl *platform.Template) types.Rect {
	fw, fh := float64(tpl.Width), float64(tpl.Height)
	x := int(math.Round(tpl.SafeZone.Left * fw))
	y := int(math.Round(tpl.SafeZone.Top * fh))
	right := int(math.Round(tpl.SafeZone.Right * fw))
	bottom := int(math.Round(tpl.SafeZone.Bottom * fh))
	return types.Rect{
		X:      x,
		Y:      y,
		Width:  max(tpl.Width-x-right, 0),
		Height: max(tpl.Height-y-bottom, 0),
	}
}
