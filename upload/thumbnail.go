package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrImageTooLarge is returned for images over MaxBytes encoded or MaxPixels decoded.
var ErrImageTooLarge = errors.New("upload: image too large for a thumbnail")

// Thumbnailer renders the small JPEG preview stored on image records.
type Thumbnailer struct {
	MaxSize   int   // longest side in pixels
	Quality   int   // JPEG quality 1-100
	MaxBytes  int64 // encoded input limit
	MaxPixels int64 // width*height limit checked from the header before decoding
}

// DefaultThumbnailer matches the gallery card: 200px, quality 70.
func DefaultThumbnailer() Thumbnailer {
	return Thumbnailer{MaxSize: 200, Quality: 70, MaxBytes: 64 << 20, MaxPixels: 50_000_000}
}

// ScaledSize shrinks w x h so the longer side is at most limit, keeping the aspect ratio.
func ScaledSize(w, h, limit int) (int, int) {
	switch {
	case w > h && w > limit:
		h = h * limit / w
		w = limit
	case h >= w && h > limit:
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Generate decodes r and returns a "data:image/jpeg;base64," URL.
func (t Thumbnailer) Generate(r io.Reader) (string, error) {
	if t.MaxBytes > 0 {
		r = io.LimitReader(r, t.MaxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if t.MaxBytes > 0 && int64(len(raw)) > t.MaxBytes {
		return "", ErrImageTooLarge
	}
	// a tiny compressed file can declare huge dimensions; Decode would allocate them all
	if t.MaxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("decode image header: %w", err)
		}
		if int64(cfg.Width)*int64(cfg.Height) > t.MaxPixels {
			return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
		}
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	size, quality := t.MaxSize, t.Quality
	if size <= 0 {
		size = 200
	}
	if quality <= 0 || quality > 100 {
		quality = 70
	}
	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), size)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; transparent pixels become white instead of black
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
