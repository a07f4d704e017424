package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/agbru/lookforge/internal/errors"
)

// Output selects the final artifact of a job.
type Output string

const (
	// OutputImage stops after the still image.
	OutputImage Output = "image"
	// OutputVideo animates the still image into a short clip.
	OutputVideo Output = "video"
)

// Segment counts per output type.
const (
	ImageSegments = 4
	VideoSegments = 5
)

// Phase names recorded in session timings and errors.
const (
	PhaseCharacter = "character_analysis"
	PhaseProduct   = "product_analysis"
	PhasePrompt    = "prompt_composition"
	PhaseImage     = "image_generation"
	PhaseVideo     = "video_generation"
	PhasePersist   = "persist"
)

// DefaultVideoSeconds is the clip length requested when a job leaves it unset.
const DefaultVideoSeconds = 5

// Job is one try-on generation request.
type Job struct {
	// SessionID is generated when empty.
	SessionID         string `json:"sessionId,omitempty"`
	CharacterImageURL string `json:"characterImageUrl"`
	ProductImageURL   string `json:"productImageUrl"`
	Style             string `json:"style,omitempty"`
	Output            Output `json:"output,omitempty"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	VideoSeconds      int    `json:"videoSeconds,omitempty"`
}

// Segments is the number of progress steps the job goes through.
func (j Job) Segments() int {
	if j.Output == OutputVideo {
		return VideoSegments
	}
	return ImageSegments
}

// Validate checks the job's inputs. It returns a ValidationError naming the
// first offending field.
func (j Job) Validate() error {
	if err := validateURL("characterImageUrl", j.CharacterImageURL); err != nil {
		return err
	}
	if err := validateURL("productImageUrl", j.ProductImageURL); err != nil {
		return err
	}
	switch j.Output {
	case "", OutputImage, OutputVideo:
	default:
		return apperrors.ValidationError{Field: "output", Message: fmt.Sprintf("must be %q or %q", OutputImage, OutputVideo)}
	}
	if j.VideoSeconds < 0 || j.VideoSeconds > 30 {
		return apperrors.ValidationError{Field: "videoSeconds", Message: "must be between 0 and 30"}
	}
	return nil
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.ValidationError{Field: field, Message: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.ValidationError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ComposePrompt builds the image prompt from both analyses.
func ComposePrompt(character, product, style string) string {
	if style == "" {
		style = "editorial"
	}
	var b strings.Builder
	b.WriteString("Full-body fashion photograph in a ")
	b.WriteString(style)
	b.WriteString(" style. ")
	if s := strings.TrimSpace(character); s != "" {
		b.WriteString("Model: ")
		b.WriteString(s)
		b.WriteString(". ")
	}
	if s := strings.TrimSpace(product); s != "" {
		b.WriteString("Wearing: ")
		b.WriteString(s)
		b.WriteString(". ")
	}
	b.WriteString("Keep the garment's exact colour, fabric and fit. Photorealistic, soft studio lighting.")
	return b.String()
}

// VideoPrompt is the motion prompt sent with the still image.
func VideoPrompt(style string) string {
	if style == "" {
		return "Slow camera orbit around the model, natural movement, showcasing the outfit."
	}
	return "Slow camera orbit around the model, natural movement, showcasing the outfit in a " + style + " mood."
}
