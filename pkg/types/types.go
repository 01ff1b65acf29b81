package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ImagePayload is a compressed, transfer-ready encoding of a source image.
// It is immutable once produced.
type ImagePayload struct {
	data     []byte
	mimeType string
	width    int
	height   int
}

// NewImagePayload copies data into a new payload
func NewImagePayload(data []byte, mimeType string, width, height int) ImagePayload {
	buf := make([]byte, len(data))
	copy(buf, data)
	return ImagePayload{data: buf, mimeType: mimeType, width: width, height: height}
}

// Bytes returns a copy of the encoded image bytes
func (p ImagePayload) Bytes() []byte {
	buf := make([]byte, len(p.data))
	copy(buf, p.data)
	return buf
}

// MIMEType returns the payload MIME type, e.g. image/jpeg
func (p ImagePayload) MIMEType() string { return p.mimeType }

// Width returns the encoded image width in pixels
func (p ImagePayload) Width() int { return p.width }

// Height returns the encoded image height in pixels
func (p ImagePayload) Height() int { return p.height }

// Size returns the encoded size in bytes
func (p ImagePayload) Size() int { return len(p.data) }

// IsEmpty reports whether the payload carries no image data
func (p ImagePayload) IsEmpty() bool { return len(p.data) == 0 }

// Base64 returns the raw base64 body used on the wire
func (p ImagePayload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.data)
}

// DataURI returns the payload as a data:<mime>;base64,<body> URI
func (p ImagePayload) DataURI() string {
	return "data:" + p.mimeType + ";base64," + p.Base64()
}

// ParseDataURI strips the scheme and encoding prefix of a data URI and decodes
// the base64 body. Dimensions are unknown and left at zero.
func ParseDataURI(uri string) (ImagePayload, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:") {
		return ImagePayload{}, fmt.Errorf("not a data URI")
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return ImagePayload{}, fmt.Errorf("data URI has no payload separator")
	}
	meta := uri[len("data:"):comma]
	mimeType := meta
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mimeType = meta[:semi]
		if meta[semi+1:] != "base64" {
			return ImagePayload{}, fmt.Errorf("unsupported data URI encoding %q", meta[semi+1:])
		}
	}
	raw, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return ImagePayload{}, fmt.Errorf("failed to decode data URI body: %w", err)
	}
	return ImagePayload{data: raw, mimeType: mimeType}, nil
}

// AnalysisRequest is one outbound analysis attempt: a fixed prompt plus one image
type AnalysisRequest struct {
	ID      string
	Prompt  string
	Payload ImagePayload
}

// FoodItem is one recognized food with its calorie estimate
type FoodItem struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Portion  string  `json:"portion"`
}

// Exercise is a suggested activity for burning the estimated calories
type Exercise struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
	Type     string `json:"type"`
}

// ResultSource tells whether a result came from the model or from the fallback policy
type ResultSource int

const (
	SourceModel ResultSource = iota
	SourceFallback
)

func (s ResultSource) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("ResultSource(%d)", int(s))
	}
}

// AnalysisResult contains the structured nutrition estimate for one analysis
type AnalysisResult struct {
	Foods              []FoodItem   `json:"foods"`
	TotalCalories      float64      `json:"totalCalories"`
	CalculationProcess []string     `json:"calculationProcess"`
	Exercises          []Exercise   `json:"exercises"`
	Source             ResultSource `json:"-"`
}

// IsFallback reports whether r is the generic estimate substituted for an unparseable answer
func (r AnalysisResult) IsFallback() bool {
	return r.Source == SourceFallback
}
