package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/internal/utils"
	"github.com/menta2k/calorie-analyzer/pkg/types"
)

const (
	DefaultMaxWidth    = 800
	DefaultMaxHeight   = 600
	DefaultQuality     = 80
	DefaultMaxFileSize = 10 * 1024 * 1024

	payloadMIMEType = "image/jpeg"
)

// Config holds the normalization bounds
type Config struct {
	MaxWidth    int
	MaxHeight   int
	Quality     int
	MaxFileSize int64
}

// DefaultConfig returns the 800x600, quality 80, 10MB limits
func DefaultConfig() Config {
	return Config{
		MaxWidth:    DefaultMaxWidth,
		MaxHeight:   DefaultMaxHeight,
		Quality:     DefaultQuality,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Source is a user-supplied image file before normalization
type Source struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the source size in bytes
func (s Source) Size() int64 { return int64(len(s.Data)) }

// Normalizer rescales and re-encodes images into bounded JPEG payloads
type Normalizer struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNormalizer creates a normalizer with default bounds
func NewNormalizer() *Normalizer {
	return NewNormalizerWithConfig(DefaultConfig(), nil)
}

// NewNormalizerWithConfig creates a normalizer with custom bounds. Zero fields
// fall back to the defaults.
func NewNormalizerWithConfig(config Config, logger *zap.Logger) *Normalizer {
	def := DefaultConfig()
	if config.MaxWidth <= 0 {
		config.MaxWidth = def.MaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = def.MaxHeight
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = def.MaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Config returns the effective bounds
func (n *Normalizer) Config() Config {
	return n.config
}

// Validate checks size and MIME type without decoding
func (n *Normalizer) Validate(src Source) error {
	if src.Size() > n.config.MaxFileSize {
		return &types.ValidationError{
			Reason: types.ReasonTooLarge,
			Detail: fmt.Sprintf("%s exceeds %s", utils.FormatFileSize(src.Size()), utils.FormatFileSize(n.config.MaxFileSize)),
		}
	}
	if !strings.HasPrefix(src.MIMEType, "image/") {
		return &types.ValidationError{
			Reason: types.ReasonUnsupportedType,
			Detail: fmt.Sprintf("MIME type %q is not an image", src.MIMEType),
		}
	}
	return nil
}

// Normalize validates, decodes, and re-encodes a source image
func (n *Normalizer) Normalize(src Source) (types.ImagePayload, error) {
	if err := n.Validate(src); err != nil {
		return types.ImagePayload{}, err
	}

	img, err := decodeImage(src.Data)
	if err != nil {
		return types.ImagePayload{}, &types.ValidationError{
			Reason: types.ReasonUndecodable,
			Detail: fmt.Sprintf("cannot decode %s", src.Name),
			Err:    err,
		}
	}

	payload, err := n.NormalizeImage(img)
	if err != nil {
		return types.ImagePayload{}, err
	}
	n.logger.Debug("image normalized",
		zap.String("name", src.Name),
		zap.String("source_size", utils.FormatFileSize(src.Size())),
		zap.String("payload_size", utils.FormatFileSize(int64(payload.Size()))),
		zap.Int("width", payload.Width()),
		zap.Int("height", payload.Height()))
	return payload, nil
}

// NormalizeImage scales an already decoded image into the configured bounds and
// encodes it as JPEG. Images inside the bounds keep their size.
func (n *Normalizer) NormalizeImage(img image.Image) (types.ImagePayload, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return types.ImagePayload{}, &types.ValidationError{
			Reason: types.ReasonUndecodable,
			Detail: fmt.Sprintf("image has empty bounds %dx%d", b.Dx(), b.Dy()),
		}
	}

	w, h := TargetSize(b.Dx(), b.Dy(), n.config.MaxWidth, n.config.MaxHeight)
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.config.Quality)); err != nil {
		return types.ImagePayload{}, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return types.NewImagePayload(buf.Bytes(), payloadMIMEType, w, h), nil
}

// TargetSize computes the uniform downscale of w x h into maxW x maxH.
// It never upscales.
func TargetSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	tw := clampInt(int(math.Round(float64(w)*ratio)), 1, maxW)
	th := clampInt(int(math.Round(float64(h)*ratio)), 1, maxH)
	return tw, th
}

// LoadSource reads an image file from disk
func (n *Normalizer) LoadSource(filePath string) (Source, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open image file: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read image file: %w", err)
	}
	return Source{
		Name:     info.Name(),
		MIMEType: utils.DetectMIMEType(filePath, head(data)),
		Data:     data,
	}, nil
}

// LoadSourceFromURL downloads a sample image. Reading stops one byte past the
// size limit so oversized downloads still fail validation.
func (n *Normalizer) LoadSourceFromURL(ctx context.Context, imageURL string) (Source, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return Source{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Source{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Source{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Calorie-Analyzer/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Source{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Source{}, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.config.MaxFileSize+1))
	if err != nil {
		return Source{}, fmt.Errorf("failed to read image data: %w", err)
	}

	// generic types like application/octet-stream defer to the path and bytes
	mimeType := resp.Header.Get("Content-Type")
	if semi := strings.IndexByte(mimeType, ';'); semi >= 0 {
		mimeType = strings.TrimSpace(mimeType[:semi])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = utils.DetectMIMEType(parsedURL.Path, head(data))
	}

	name := path.Base(parsedURL.Path)
	if name == "" || name == "/" || name == "." {
		name = "image"
	}
	return Source{Name: name, MIMEType: mimeType, Data: data}, nil
}

// LoadSourceFromDataURI decodes an inline data:<mime>;base64,<body> image
func (n *Normalizer) LoadSourceFromDataURI(uri string) (Source, error) {
	payload, err := types.ParseDataURI(uri)
	if err != nil {
		return Source{}, fmt.Errorf("invalid data URI: %w", err)
	}
	return Source{Name: "inline", MIMEType: payload.MIMEType(), Data: payload.Bytes()}, nil
}

// LoadSourceSmart loads from a URL or data URI when ref looks like one,
// otherwise from disk
func (n *Normalizer) LoadSourceSmart(ctx context.Context, ref string) (Source, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return n.LoadSourceFromURL(ctx, ref)
	case strings.HasPrefix(ref, "data:"):
		return n.LoadSourceFromDataURI(ref)
	}
	return n.LoadSource(ref)
}

// decodeImage decodes with EXIF orientation applied, falling back to the
// chai2010 WebP decoder for files the registered decoders reject.
func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}
	return nil, err
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
