package vips

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	if os.Getenv("TOASTPIPE_VIPS_TESTS") == "" {
		t.Skip("TOASTPIPE_VIPS_TESTS not set")
	}
	Startup()
	return &Codec{WebpQuality: 75, JpegQuality: 75, PngCompression: 5}
}

func samplePNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWebp(t *testing.T) {
	c := testCodec(t)
	out, err := c.Webp(samplePNG(t))
	require.NoError(t, err)
	require.Greater(t, len(out), 12)
	assert.Equal(t, []byte("RIFF"), out[0:4])
	assert.Equal(t, []byte("WEBP"), out[8:12])
}

func TestOptimizePassthrough(t *testing.T) {
	c := &Codec{}
	src := []byte("GIF89a")
	out, err := c.Optimize(".gif", src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestOptimizePNG(t *testing.T) {
	c := testCodec(t)
	src := samplePNG(t)
	out, err := c.Optimize(".png", src)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), len(src))
}

func TestDecodeError(t *testing.T) {
	c := testCodec(t)
	_, err := c.Webp([]byte("not an image"))
	assert.Error(t, err)
}
