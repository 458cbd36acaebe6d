package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPrepareKeepsSmallPhotos(t *testing.T) {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(200, 150, color.RGBA{200, 10, 10, 255}), nil)

	up, err := Prepare(&buf)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if up.MIME != "image/jpeg" || up.Width != 200 || up.Height != 150 {
		t.Errorf("unexpected upload %s %dx%d", up.MIME, up.Width, up.Height)
	}
	if _, err := jpeg.Decode(bytes.NewReader(up.Data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}

func TestPrepareDownscales(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{2560, 1280, 1280, 640},
		{1000, 3000, 426, 1280},
		{5000, 2, 1280, 1},
	}

	for _, tt := range tests {
		data := encodePNG(t, solid(tt.w, tt.h, color.RGBA{0, 0, 255, 255}))
		up, err := Prepare(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Prepare %dx%d: %v", tt.w, tt.h, err)
		}
		if up.Width != tt.wantW || up.Height != tt.wantH {
			t.Errorf("%dx%d: expected %dx%d, got %dx%d", tt.w, tt.h, tt.wantW, tt.wantH, up.Width, up.Height)
		}
	}
}

func TestPrepareFlattensTransparency(t *testing.T) {
	data := encodePNG(t, solid(10, 10, color.RGBA{}))

	up, err := Prepare(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(up.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestPrepareRejectsOtherFormats(t *testing.T) {
	if _, err := Prepare(bytes.NewReader([]byte("GIF89a not really"))); err == nil {
		t.Error("expected GIF to be rejected")
	}
	if _, err := Prepare(bytes.NewReader([]byte("hello"))); err == nil {
		t.Error("expected text to be rejected")
	}
}

func TestPrepareRejectsOversizedInput(t *testing.T) {
	big := bytes.Repeat([]byte{0}, MaxInputSize+1)
	if _, err := Prepare(bytes.NewReader(big)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestPrepareRejectsCorruptImage(t *testing.T) {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)
	if _, err := Prepare(bytes.NewReader(data)); err == nil {
		t.Error("expected corrupt PNG to fail")
	}
}
