package processing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedBounds(t *testing.T, p types.ImagePayload) image.Rectangle {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(p.Bytes()))
	require.NoError(t, err)
	return img.Bounds()
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{800, 600, 800, 600},
		{640, 480, 640, 480},
		{1, 1, 1, 1},
		{1600, 1200, 800, 600},
		{4000, 3000, 800, 600},
		{1000, 500, 800, 400},
		{500, 1000, 300, 600},
		{801, 10, 800, 10},
		{10000, 1, 800, 1},
		{3024, 4032, 450, 600},
	}
	for _, tt := range tests {
		w, h := TargetSize(tt.w, tt.h, DefaultMaxWidth, DefaultMaxHeight)
		assert.Equal(t, tt.wantW, w, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "height for %dx%d", tt.w, tt.h)
	}
}

func TestNormalizeImageNeverUpscales(t *testing.T) {
	n := NewNormalizer()
	for _, sz := range [][2]int{{800, 600}, {320, 240}, {600, 800 - 200}, {17, 33}} {
		payload, err := n.NormalizeImage(createTestImage(sz[0], sz[1]))
		require.NoError(t, err)

		assert.Equal(t, sz[0], payload.Width())
		assert.Equal(t, sz[1], payload.Height())
		b := decodedBounds(t, payload)
		assert.Equal(t, sz[0], b.Dx())
		assert.Equal(t, sz[1], b.Dy())
	}
}

func TestNormalizeImageDownscalesPreservingAspect(t *testing.T) {
	n := NewNormalizer()
	for _, sz := range [][2]int{{1600, 1200}, {1024, 300}, {300, 1024}, {900, 601}} {
		payload, err := n.NormalizeImage(createTestImage(sz[0], sz[1]))
		require.NoError(t, err)

		b := decodedBounds(t, payload)
		assert.LessOrEqual(t, b.Dx(), DefaultMaxWidth)
		assert.LessOrEqual(t, b.Dy(), DefaultMaxHeight)

		want := float64(sz[0]) / float64(sz[1])
		got := float64(b.Dx()) / float64(b.Dy())
		// one pixel of rounding on the shorter side
		tolerance := want / float64(min(b.Dx(), b.Dy()))
		assert.InDelta(t, want, got, tolerance+1e-9, "aspect for %dx%d", sz[0], sz[1])
	}
}

func TestNormalizeProducesJPEGDataURI(t *testing.T) {
	n := NewNormalizer()
	payload, err := n.Normalize(Source{Name: "meal.png", MIMEType: "image/png", Data: encodePNG(t, createTestImage(100, 80))})
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", payload.MIMEType())
	assert.True(t, len(payload.DataURI()) > len("data:image/jpeg;base64,"))
	assert.Equal(t, "data:image/jpeg;base64,"+payload.Base64(), payload.DataURI())

	parsed, err := types.ParseDataURI(payload.DataURI())
	require.NoError(t, err)
	assert.Equal(t, payload.Bytes(), parsed.Bytes())
	assert.Equal(t, "image/jpeg", parsed.MIMEType())
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer()
	src := Source{Name: "meal.png", MIMEType: "image/png", Data: encodePNG(t, createTestImage(1200, 900))}

	first, err := n.Normalize(src)
	require.NoError(t, err)
	second, err := n.Normalize(src)
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestValidateRejectsBeforeDecoding(t *testing.T) {
	n := NewNormalizer()

	// The bytes are not a decodable image, so a decode attempt would surface
	// ReasonUndecodable instead of the expected reason.
	garbage := []byte("definitely not an image")

	tooLarge := Source{Name: "big.jpg", MIMEType: "image/jpeg", Data: make([]byte, DefaultMaxFileSize+1)}
	_, err := n.Normalize(tooLarge)
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.ReasonTooLarge, verr.Reason)

	wrongType := Source{Name: "notes.txt", MIMEType: "text/plain", Data: garbage}
	_, err = n.Normalize(wrongType)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.ReasonUnsupportedType, verr.Reason)

	exactLimit := Source{Name: "edge.jpg", MIMEType: "image/jpeg", Data: make([]byte, DefaultMaxFileSize)}
	assert.NoError(t, n.Validate(exactLimit))
}

func TestNormalizeUndecodable(t *testing.T) {
	n := NewNormalizer()
	_, err := n.Normalize(Source{Name: "broken.jpg", MIMEType: "image/jpeg", Data: []byte("garbage")})

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.ReasonUndecodable, verr.Reason)
}

func TestNewNormalizerWithConfigDefaults(t *testing.T) {
	n := NewNormalizerWithConfig(Config{MaxWidth: 400}, nil)
	cfg := n.Config()
	assert.Equal(t, 400, cfg.MaxWidth)
	assert.Equal(t, DefaultMaxHeight, cfg.MaxHeight)
	assert.Equal(t, DefaultQuality, cfg.Quality)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)

	payload, err := n.NormalizeImage(createTestImage(800, 400))
	require.NoError(t, err)
	assert.Equal(t, 400, payload.Width())
	assert.Equal(t, 200, payload.Height())
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "bibimbap.png")
	require.NoError(t, os.WriteFile(filePath, encodePNG(t, createTestImage(10, 10)), 0o644))

	n := NewNormalizer()
	src, err := n.LoadSource(filePath)
	require.NoError(t, err)
	assert.Equal(t, "bibimbap.png", src.Name)
	assert.Equal(t, "image/png", src.MIMEType)

	_, err = n.LoadSource(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestLoadSourceFromURL(t *testing.T) {
	data := encodePNG(t, createTestImage(20, 20))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/samples/kimchi.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	n := NewNormalizer()
	src, err := n.LoadSourceSmart(context.Background(), server.URL+"/samples/kimchi.png")
	require.NoError(t, err)
	assert.Equal(t, "kimchi.png", src.Name)
	assert.Equal(t, "image/png", src.MIMEType)
	assert.Equal(t, data, src.Data)

	_, err = n.LoadSourceFromURL(context.Background(), server.URL+"/missing.png")
	assert.Error(t, err)

	_, err = n.LoadSourceFromURL(context.Background(), "ftp://example.com/a.png")
	assert.Error(t, err)
}

func TestLoadSourceFromURLCapsSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	n := NewNormalizerWithConfig(Config{MaxFileSize: 1024}, nil)
	src, err := n.LoadSourceFromURL(context.Background(), server.URL+"/big.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(1025), src.Size())

	var verr *types.ValidationError
	_, err = n.Normalize(src)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.ReasonTooLarge, verr.Reason)
}

func TestLoadSourceFromURLGenericContentType(t *testing.T) {
	data := encodePNG(t, createTestImage(20, 20))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}))
	defer server.Close()

	n := NewNormalizer()
	src, err := n.LoadSourceFromURL(context.Background(), server.URL+"/photos/naengmyeon.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", src.MIMEType)

	// no extension: the bytes decide
	src, err = n.LoadSourceFromURL(context.Background(), server.URL+"/download")
	require.NoError(t, err)
	assert.Equal(t, "image/png", src.MIMEType)

	payload, err := n.Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, 20, payload.Width())
}

func TestLoadSourceSmartDataURI(t *testing.T) {
	data := encodePNG(t, createTestImage(30, 20))
	uri := types.NewImagePayload(data, "image/png", 30, 20).DataURI()

	n := NewNormalizer()
	src, err := n.LoadSourceSmart(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", src.MIMEType)
	assert.Equal(t, data, src.Data)

	payload, err := n.Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), decodedBounds(t, payload))

	_, err = n.LoadSourceSmart(context.Background(), "data:image/png;base64,@@@")
	assert.Error(t, err)
}
