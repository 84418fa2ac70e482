// Package favicon loads the server list icon sent in status responses.
package favicon

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // decoder
	"image/png"
	"os"
	"strings"

	"github.com/nfnt/resize"
)

// Size is the edge length in pixels clients expect.
const Size = 64

// Favicon is an image data uri, usually "data:image/png;base64,...".
type Favicon string

const (
	uriPrefix    = "data:image/"
	pngURIPrefix = uriPrefix + "png;base64,"
)

// Parse accepts a data uri as is and otherwise loads s as a png or jpeg file.
// Larger images are scaled down to Size.
func Parse(s string) (Favicon, error) {
	if strings.HasPrefix(s, uriPrefix) {
		return Favicon(s), nil
	}
	img, err := load(s)
	if err != nil {
		return "", fmt.Errorf("favicon: %w", err)
	}
	var buf bytes.Buffer
	if err = png.Encode(&buf, fit(img)); err != nil {
		return "", fmt.Errorf("favicon: encode %s: %w", s, err)
	}
	return FromPNG(buf.Bytes()), nil
}

func load(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

func fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= Size && b.Dy() <= Size {
		return img
	}
	return resize.Resize(Size, Size, img, resize.NearestNeighbor)
}

// FromPNG makes a data uri of png encoded bytes.
func FromPNG(b []byte) Favicon {
	return Favicon(pngURIPrefix + base64.StdEncoding.EncodeToString(b))
}

// Bytes decodes a png data uri. Other favicons yield nil.
func (f Favicon) Bytes() []byte {
	enc, ok := strings.CutPrefix(string(f), pngURIPrefix)
	if !ok {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil
	}
	return b
}
