// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

// marker returns a w×h image, black everywhere except a white top-left pixel.
func marker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	img.Set(0, 0, color.White)
	return img
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func TestOrient(t *testing.T) {
	src := marker(4, 2)
	tests := []struct {
		orientation uint8
		w, h        int
		white       image.Point
	}{
		{1, 4, 2, image.Pt(0, 0)},
		{2, 4, 2, image.Pt(3, 0)},
		{3, 4, 2, image.Pt(3, 1)},
		{4, 4, 2, image.Pt(0, 1)},
		{5, 2, 4, image.Pt(0, 0)},
		{6, 2, 4, image.Pt(1, 0)},
		{7, 2, 4, image.Pt(1, 3)},
		{8, 2, 4, image.Pt(0, 3)},
	}
	for _, tt := range tests {
		out := orient(src, tt.orientation)
		assert.Equal(t, tt.w, out.Bounds().Dx(), "orientation %d", tt.orientation)
		assert.Equal(t, tt.h, out.Bounds().Dy(), "orientation %d", tt.orientation)
		assert.True(t, isWhite(out.At(tt.white.X, tt.white.Y)), "orientation %d", tt.orientation)
	}
}

func TestCropCenter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	img.Set(320, 240, color.White)

	out := cropCenter(img, 200)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
	assert.True(t, isWhite(out.At(100, 100)))

	small := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Same(t, small, cropCenter(small, 200))

	wide := cropCenter(image.NewRGBA(image.Rect(0, 0, 800, 150)), 200)
	assert.Equal(t, image.Rect(0, 0, 200, 150), wide.Bounds())
}

func TestFit(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 4096, 1024))
	out := fit(big)
	assert.Equal(t, 2048, out.Bounds().Dx())
	assert.Equal(t, 512, out.Bounds().Dy())

	small := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Same(t, small, fit(small))
}

func TestExifOrientation_NoExif(t *testing.T) {
	assert.Equal(t, uint8(1), exifOrientation([]byte("not an image")))
}
