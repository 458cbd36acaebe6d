// Package imaging prepares listing photos for upload.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxDimension is the longest side of an uploaded photo.
const MaxDimension = 1280

// JPEGQuality is the compression quality for uploads.
const JPEGQuality = 82

// MaxInputSize caps the size of a photo before it is decoded.
const MaxInputSize = 15 << 20

// ErrTooLarge is returned for input over MaxInputSize.
var ErrTooLarge = errors.New("image is too large")

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Upload is a photo ready to send to the API.
type Upload struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Prepare reads a photo, checks its format from its content, shrinks it to
// fit MaxDimension and re-encodes it as JPEG. Transparent areas become
// white.
func Prepare(r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxInputSize {
		return nil, ErrTooLarge
	}

	mime := http.DetectContentType(data)
	if !allowedMIME[mime] {
		return nil, fmt.Errorf("unsupported image format %s, use JPEG or PNG", mime)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Upload{Data: buf.Bytes(), MIME: "image/jpeg", Width: w, Height: h}, nil
}

// fit scales w x h down so the longer side is at most limit, keeping the
// aspect ratio.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
