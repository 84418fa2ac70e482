package favicon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, size int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	file := filepath.Join(t.TempDir(), "server-icon.png")
	f, err := os.Create(file)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return file
}

func decode(t *testing.T, f Favicon) image.Image {
	t.Helper()
	b := f.Bytes()
	require.NotNil(t, b)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestParseFileScalesDown(t *testing.T) {
	f, err := Parse(writePNG(t, 128))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, Size, Size), decode(t, f).Bounds())
}

func TestParseFileKeepsSmallImages(t *testing.T) {
	f, err := Parse(writePNG(t, 16))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), decode(t, f).Bounds())
}

func TestParseDataURI(t *testing.T) {
	const uri = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAEAAAAABCAYAAABubagXAAAAEElEQVR42mP8z8BQzzCCAQB+lAGA+H8KEAAAAABJRU5ErkJggg=="
	f, err := Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, Favicon(uri), f)
	assert.Equal(t, 64, decode(t, f).Bounds().Dx())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	notAnImage := filepath.Join(t.TempDir(), "icon.png")
	require.NoError(t, os.WriteFile(notAnImage, []byte("plain text"), 0644))
	_, err = Parse(notAnImage)
	assert.Error(t, err)

	assert.Nil(t, Favicon("data:image/jpeg;base64,AAAA").Bytes())
}
