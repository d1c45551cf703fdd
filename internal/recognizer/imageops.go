// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import (
	"bytes"
	"image"

	"github.com/evanoberholster/imagemeta"
	"golang.org/x/image/draw"
)

// maxEdge bounds the longest side handed to the decoders.
const maxEdge = 2048

// exifOrientation reads the EXIF orientation tag (1..8); 1 when absent.
func exifOrientation(data []byte) uint8 {
	e, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	o := uint8(e.Orientation)
	if o < 1 || o > 8 {
		return 1
	}
	return o
}

// orient returns img transformed so that it displays upright for the given
// EXIF orientation.
func orient(img image.Image, orientation uint8) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// orientations 5..8 swap width and height
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 CW
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 270 CW
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// cropCenter returns the centred size×size square of img, or img itself when
// it is not larger than size in both dimensions.
func cropCenter(img image.Image, size int) image.Image {
	b := img.Bounds()
	if size <= 0 || (b.Dx() <= size && b.Dy() <= size) {
		return img
	}
	w, h := min(size, b.Dx()), min(size, b.Dy())
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst
}

// fit downscales img so its longest edge is at most maxEdge.
func fit(img image.Image) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= maxEdge {
		return img
	}
	w := b.Dx() * maxEdge / longest
	h := b.Dy() * maxEdge / longest
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
