package sizing

import (
	"math"
	"testing"

	"reelcomposer/platform"
	"reelcomposer/types"
)

func mustTemplate(t *testing.T, id string) *platform.Template {
	t.Helper()
	c, err := platform.Default()
	if err != nil {
		t.Fatalf("platform.Default() error: %v", err)
	}
	tpl, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error: %v", id, err)
	}
	return tpl
}

func TestComputeOverlaySizeExamples(t *testing.T) {
	cases := []struct {
		name     string
		platform string
		kind     Kind
		asset    types.Dimensions
		anchor   string
		want     types.Placement
	}{
		{"tiktok logo top-left", "tiktok", KindLogo, types.Dimensions{Width: 400, Height: 200}, TopLeft,
			types.Placement{Width: 260, Height: 130, X: 54, Y: 96}},
		{"wide logo capped then floored", "tiktok", KindLogo, types.Dimensions{Width: 1000, Height: 100}, TopLeft,
			types.Placement{Width: 600, Height: 60, X: 54, Y: 96}},
		{"youtube card sized off height", "youtube", KindReviewCard, types.Dimensions{Width: 800, Height: 600}, CenterRight,
			types.Placement{Width: 576, Height: 432, X: 1248, Y: 324}},
		{"linkedin width reference", "linkedin", KindLogo, types.Dimensions{Width: 500, Height: 500}, BottomRight,
			types.Placement{Width: 134, Height: 134, X: 1690, Y: 892}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tpl := mustTemplate(t, c.platform)
			got := ComputeOverlaySize(tpl, c.kind, tpl.Width, tpl.Height, c.asset.Width, c.asset.Height, c.anchor)
			if got != c.want {
				t.Fatalf("ComputeOverlaySize() = %+v; want %+v", got, c.want)
			}
		})
	}
}

func TestHeightBoundsAndAspectHoldForAllPlatforms(t *testing.T) {
	c, err := platform.Default()
	if err != nil {
		t.Fatal(err)
	}
	assets := []types.Dimensions{
		{Width: 100, Height: 100},
		{Width: 1200, Height: 300},
		{Width: 300, Height: 1200},
		{Width: 1920, Height: 1080},
		{Width: 64, Height: 32},
		{Width: 4000, Height: 1000},
	}

	for _, id := range c.IDs() {
		tpl, _ := c.Get(id)
		for _, kind := range []Kind{KindLogo, KindReviewCard} {
			r := rule(tpl, kind)
			for _, a := range assets {
				p := ComputeOverlaySize(tpl, kind, tpl.Width, tpl.Height, a.Width, a.Height, "")
				if p.Height < r.MinHeight || p.Height > r.MaxHeight {
					t.Fatalf("%s/%s %v: height %d outside [%d,%d]", id, kind, a, p.Height, r.MinHeight, r.MaxHeight)
				}
				got := float64(p.Width) / float64(p.Height)
				if math.Abs(got-a.Aspect()) > 1/float64(p.Height) {
					t.Fatalf("%s/%s %v: aspect %.4f; want %.4f", id, kind, a, got, a.Aspect())
				}
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	tpl := mustTemplate(t, "instagram_feed")
	first := ComputeOverlaySize(tpl, KindReviewCard, 1080, 1080, 640, 480, Center)
	for i := 0; i < 50; i++ {
		if got := ComputeOverlaySize(tpl, KindReviewCard, 1080, 1080, 640, 480, Center); got != first {
			t.Fatalf("run %d = %+v; want %+v", i, got, first)
		}
	}
}

func TestMissingDimensionsUseFallback(t *testing.T) {
	tpl := mustTemplate(t, "youtube")
	want := ComputeOverlaySize(tpl, KindLogo, 1920, 1080, FallbackAsset.Width, FallbackAsset.Height, TopRight)
	for _, a := range []types.Dimensions{{}, {Width: 500}, {Height: 500}, {Width: -1, Height: 10}} {
		if got := ComputeOverlaySize(tpl, KindLogo, 1920, 1080, a.Width, a.Height, TopRight); got != want {
			t.Fatalf("asset %v = %+v; want fallback %+v", a, got, want)
		}
	}
}

func TestPositionAnchors(t *testing.T) {
	// 1000x2000 frame, margins 50 and 100, box 100x200
	cases := []struct {
		anchor string
		x, y   int
	}{
		{TopLeft, 50, 100},
		{TopCenter, 450, 100},
		{TopRight, 850, 100},
		{CenterLeft, 50, 900},
		{Center, 450, 900},
		{CenterRight, 850, 900},
		{BottomLeft, 50, 1700},
		{BottomCenter, 450, 1700},
		{BottomRight, 850, 1700},
		{"BOTTOM-RIGHT", 850, 1700},
		{"somewhere", 850, 1700},
		{"", 850, 1700},
	}
	for _, c := range cases {
		x, y := Position(c.anchor, 1000, 2000, 100, 200)
		if x != c.x || y != c.y {
			t.Fatalf("Position(%q) = (%d,%d); want (%d,%d)", c.anchor, x, y, c.x, c.y)
		}
	}
}

func TestPositionNeverNegative(t *testing.T) {
	x, y := Position(BottomRight, 100, 100, 400, 400)
	if x < 0 || y < 0 {
		t.Fatalf("Position() = (%d,%d); want non-negative", x, y)
	}
}

func TestCompute(t *testing.T) {
	tpl := mustTemplate(t, "tiktok")
	res := Compute(tpl, Input{
		Logo:       &types.Dimensions{Width: 400, Height: 200},
		ReviewCard: &types.Dimensions{},
	})
	if res.Logo == nil || res.ReviewCard == nil {
		t.Fatalf("Compute() missing placements: %+v", res)
	}
	if res.TextScale != 1 {
		t.Fatalf("TextScale = %v; want 1", res.TextScale)
	}
	// top 10%, bottom 20%, left 5%, right 12% of 1080x1920
	want := types.Rect{X: 54, Y: 192, Width: 896, Height: 1344}
	if res.SafeZone != want {
		t.Fatalf("SafeZone = %+v; want %+v", res.SafeZone, want)
	}

	empty := Compute(tpl, Input{})
	if empty.Logo != nil || empty.ReviewCard != nil {
		t.Fatalf("Compute() without overlays returned placements: %+v", empty)
	}
}

func TestValidAnchor(t *testing.T) {
	for _, a := range []string{TopLeft, Center, "Bottom-Right", " center-left "} {
		if !ValidAnchor(a) {
			t.Errorf("ValidAnchor(%q) = false", a)
		}
	}
	for _, a := range []string{"", "middle", "top"} {
		if ValidAnchor(a) {
			t.Errorf("ValidAnchor(%q) = true", a)
		}
	}
}
