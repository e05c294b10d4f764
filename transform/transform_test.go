package transform

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testJPEG renders a w×h gradient and encodes it as JPEG.
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (string, int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return format, cfg.Width, cfg.Height
}

func TestApplyEncodeFormats(t *testing.T) {
	src := testJPEG(t, 64, 48)
	tests := []struct {
		format     string
		wantFormat string
	}{
		{"jpeg", "jpeg"},
		{"jpg", "jpeg"},
		{"png", "png"},
		{"gif", "gif"},
		{"webp", "webp"},
		{"tiff", "tiff"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := Apply(src, Options{Format: tt.format, Quality: 80})
			require.NoError(t, err)
			format, w, h := decodeDims(t, out)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, 64, w)
			assert.Equal(t, 48, h)
		})
	}
}

func TestApplyCoverFit(t *testing.T) {
	src := testJPEG(t, 1600, 1200)
	out, err := Apply(src, Options{Width: 800, Height: 600, Format: "webp", Quality: 80})
	require.NoError(t, err)

	format, w, h := decodeDims(t, out)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestApplyCoverFitCropsAspect(t *testing.T) {
	// Wide source, square target: cover must crop, not letterbox.
	src := testJPEG(t, 800, 400)
	out, err := Apply(src, Options{Width: 300, Height: 300, Format: "png", Quality: 80})
	require.NoError(t, err)

	_, w, h := decodeDims(t, out)
	assert.Equal(t, 300, w)
	assert.Equal(t, 300, h)
}

func TestApplyNoUpscaleBothDims(t *testing.T) {
	src := testJPEG(t, 200, 100)
	out, err := Apply(src, Options{Width: 800, Height: 600, Format: "jpeg", Quality: 80})
	require.NoError(t, err)

	_, w, h := decodeDims(t, out)
	assert.LessOrEqual(t, w, 200, "width must not exceed source")
	assert.LessOrEqual(t, h, 100, "height must not exceed source")
}

func TestApplySingleDimension(t *testing.T) {
	src := testJPEG(t, 400, 200)

	out, err := Apply(src, Options{Width: 100, Format: "jpeg", Quality: 80})
	require.NoError(t, err)
	_, w, h := decodeDims(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h, "aspect ratio must be preserved")

	out, err = Apply(src, Options{Height: 100, Format: "jpeg", Quality: 80})
	require.NoError(t, err)
	_, w, h = decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestApplySingleDimensionNoUpscale(t *testing.T) {
	src := testJPEG(t, 400, 200)
	out, err := Apply(src, Options{Width: 4000, Format: "jpeg", Quality: 80})
	require.NoError(t, err)

	_, w, h := decodeDims(t, out)
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
}

func TestApplyNoResizeWithoutDimensions(t *testing.T) {
	src := testJPEG(t, 123, 77)
	out, err := Apply(src, Options{Format: "png", Quality: 80})
	require.NoError(t, err)

	_, w, h := decodeDims(t, out)
	assert.Equal(t, 123, w)
	assert.Equal(t, 77, h)
}

func TestApplyRejectsCorruptData(t *testing.T) {
	_, err := Apply([]byte("definitely not an image"), Options{Format: "jpeg", Quality: 80})
	assert.Error(t, err)
}

func TestApplyRejectsSVGOutput(t *testing.T) {
	src := testJPEG(t, 64, 48)
	_, err := Apply(src, Options{Format: "svg", Quality: 80})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestApplyQualityAffectsOutput(t *testing.T) {
	src := testJPEG(t, 256, 256)
	hi, err := Apply(src, Options{Format: "jpeg", Quality: 95})
	require.NoError(t, err)
	lo, err := Apply(src, Options{Format: "jpeg", Quality: 10})
	require.NoError(t, err)

	assert.NotEqual(t, hi, lo, "quality must change the encoded bytes")
	assert.Greater(t, len(hi), len(lo), "higher quality should be larger")
}

// oversizedPNGHeader builds a syntactically valid PNG signature + IHDR chunk
// declaring absurd dimensions, enough for DecodeConfig to report them.
func oversizedPNGHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	buf.Write(length[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
	return buf.Bytes()
}

func TestApplyRejectsDecompressionBomb(t *testing.T) {
	data := oversizedPNGHeader(100000, 100000)
	_, err := Apply(data, Options{Format: "jpeg", Quality: 80})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed maximum")
}

func TestApplyDecodesPNGInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := Apply(buf.Bytes(), Options{Format: "jpeg", Quality: 80})
	require.NoError(t, err)
	format, _, _ := decodeDims(t, out)
	assert.Equal(t, "jpeg", format)
}
