package composer

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"reelcomposer/types"
)

// checkFile fails for missing, unreadable, non-regular or empty files
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// imageSize reads the pixel dimensions from the image header
func imageSize(path string) (types.Dimensions, error) {
	if err := checkFile(path); err != nil {
		return types.Dimensions{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return types.Dimensions{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("decode image header: %w", err)
	}
	dims := types.Dimensions{Width: cfg.Width, Height: cfg.Height}
	if dims.IsZero() {
		return types.Dimensions{}, fmt.Errorf("image has no pixels")
	}
	return dims, nil
}

// audioLength probes an audio asset and returns its length in seconds
func (c *Composer) audioLength(ctx context.Context, path string) (float64, error) {
	if err := checkFile(path); err != nil {
		return 0, err
	}
	meta, err := c.enc.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if !meta.HasAudio || meta.Duration <= 0 {
		return 0, fmt.Errorf("no audio stream")
	}
	return meta.Duration, nil
}

// assets are the decoded inputs of a request
type assets struct {
	images       []types.Dimensions
	placeholders []bool
	logo         *types.Dimensions
	card         *types.Dimensions
	voiceOver    string
	voiceLength  float64
	music        string
}

// loadAssets validates every asset referenced by req. Unreadable images
// become placeholders and unreadable optional assets are dropped only when
// placeholders are allowed.
func (c *Composer) loadAssets(ctx context.Context, req *types.CompositionRequest, frame types.Dimensions) (*assets, error) {
	a := &assets{
		images:       make([]types.Dimensions, len(req.Images)),
		placeholders: make([]bool, len(req.Images)),
	}
	unreadable := func(what, path string, err error) error {
		return types.NewError(types.KindAssetUnreadable, "assets", fmt.Sprintf("%s %s", what, path), err)
	}

	for i, path := range req.Images {
		dims, err := imageSize(path)
		if err != nil {
			if !c.cfg.AllowPlaceholders {
				return nil, unreadable(fmt.Sprintf("image %d", i), path, err)
			}
			c.logger.Warn("substituting placeholder for unreadable image", "index", i, "error", err)
			dims = frame
			a.placeholders[i] = true
		}
		a.images[i] = dims
	}

	overlay := func(what, path string) (*types.Dimensions, error) {
		if path == "" {
			return nil, nil
		}
		dims, err := imageSize(path)
		if err == nil {
			return &dims, nil
		}
		if !c.cfg.AllowPlaceholders {
			return nil, unreadable(what, path, err)
		}
		c.logger.Warn("dropping unreadable overlay", "overlay", what, "error", err)
		return nil, nil
	}
	var err error
	if a.logo, err = overlay("logo", req.Logo); err != nil {
		return nil, err
	}
	if a.card, err = overlay("review card", req.ReviewCard); err != nil {
		return nil, err
	}

	if req.VoiceOver != "" {
		n, err := c.audioLength(ctx, req.VoiceOver)
		switch {
		case err == nil:
			a.voiceOver, a.voiceLength = req.VoiceOver, n
		case c.cfg.AllowPlaceholders:
			c.logger.Warn("dropping unreadable voice-over", "error", err)
		default:
			return nil, unreadable("voice-over", req.VoiceOver, err)
		}
	}
	if req.Music != "" {
		_, err := c.audioLength(ctx, req.Music)
		switch {
		case err == nil:
			a.music = req.Music
		case c.cfg.AllowPlaceholders:
			c.logger.Warn("dropping unreadable music", "error", err)
		default:
			return nil, unreadable("music", req.Music, err)
		}
	}
	return a, nil
}
