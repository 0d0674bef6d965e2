package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LayoutPreference selects how images are fitted into the output frame.
// The zero value behaves like LayoutAuto.
type LayoutPreference string

const (
	LayoutAuto           LayoutPreference = "auto"
	LayoutCropFill       LayoutPreference = "crop_fill"
	LayoutLetterbox      LayoutPreference = "letterbox"
	LayoutBlurBackground LayoutPreference = "blur_background"
)

// TransitionSpec describes the join between two adjacent clips
type TransitionSpec struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

// QualitySpec holds the encoder quality knobs of a request
type QualitySpec struct {
	Preset string `json:"preset"`
	CRF    int    `json:"crf" validate:"gte=0,lte=51"`
}

// CompositionRequest is everything the engine needs to produce one video.
// All paths must already be local files.
type CompositionRequest struct {
	Platform         string           `json:"platform" validate:"required"`
	Images           []string         `json:"images" validate:"required,min=1,dive,required"`
	Logo             string           `json:"logo,omitempty"`
	ReviewCard       string           `json:"review_card,omitempty"`
	VoiceOver        string           `json:"voice_over,omitempty"`
	Music            string           `json:"music,omitempty"`
	TargetDuration   *float64         `json:"target_duration,omitempty" validate:"omitempty,gt=0"`
	Transition       TransitionSpec   `json:"transition"`
	Quality          QualitySpec      `json:"quality"`
	LogoAnchor       string           `json:"logo_anchor,omitempty"`
	ReviewCardAnchor string           `json:"review_card_anchor,omitempty"`
	Layout           LayoutPreference `json:"layout,omitempty" validate:"omitempty,oneof=auto crop_fill letterbox blur_background"`
	BackgroundColor  string           `json:"background_color,omitempty"`
	RetainArtifacts  bool             `json:"retain_artifacts,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the structural rules that do not need a platform template.
// Only the first failing field is reported.
func (r *CompositionRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return NewError(KindInvalidRequest, "validate", describeField(fieldErrs[0]), nil)
	}
	return NewError(KindInvalidRequest, "validate", "malformed request", err)
}

func describeField(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s %v is not one of [%s]", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// Dimensions is a width/height pair in pixels
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Aspect returns width/height, or 0 when either side is missing
func (d Dimensions) Aspect() float64 {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

// IsZero reports whether the dimensions are unknown
func (d Dimensions) IsZero() bool {
	return d.Width <= 0 || d.Height <= 0
}

// Placement is the computed geometry of one overlay on the frame
type Placement struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Rect is an axis-aligned rectangle in frame pixels
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
