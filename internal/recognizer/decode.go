// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp" // register WebP
)

// maxPixels guards against decompression bombs.
const maxPixels = 40_000_000

// Decoded is a recognised barcode.
type Decoded struct {
	Text   string
	Format string
}

// decodeBytes turns encoded image bytes into an upright image.
func decodeBytes(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	if format == "jpeg" {
		img = orient(img, exifOrientation(data))
	}
	return img, format, nil
}

// readers covers QR, EAN/UPC and Code 128, tried in that order.
func readers(hints map[gozxing.DecodeHintType]interface{}) []gozxing.Reader {
	return []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		oned.NewMultiFormatUPCEANReader(hints),
		oned.NewCode128Reader(),
	}
}

// decodeBarcode tries every reader on img. tryHarder spends more time per
// reader and also retries on a 90 degree rotation for 1D symbologies.
func decodeBarcode(img image.Image, tryHarder bool) (Decoded, error) {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	candidates := []image.Image{img}
	if tryHarder {
		candidates = append(candidates, orient(img, 6))
	}

	for _, candidate := range candidates {
		bmp, err := gozxing.NewBinaryBitmapFromImage(candidate)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
		}
		for _, r := range readers(hints) {
			res, err := r.Decode(bmp, hints)
			if err != nil || res == nil || res.GetText() == "" {
				continue
			}
			return Decoded{Text: res.GetText(), Format: res.GetBarcodeFormat().String()}, nil
		}
	}
	return Decoded{}, ErrNotFound
}
