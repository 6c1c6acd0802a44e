package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUndecodableImage is returned when bytes are not a supported image encoding
var ErrUndecodableImage = errors.New("image could not be decoded")

// ImageNormalizer fits images into fixed target dimensions as transparent PNGs
type ImageNormalizer interface {
	Normalize(raw []byte, width, height int) ([]byte, error)
}

type imageNormalizer struct{}

func NewImageNormalizer() ImageNormalizer {
	return imageNormalizer{}
}

// Normalize scales the image to fit inside width x height preserving aspect ratio,
// centred on a transparent canvas of exactly that size
func (imageNormalizer) Normalize(raw []byte, width, height int) ([]byte, error) {
	src, err := DecodeImage(raw)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, fitRect(src.Bounds(), width, height), src, src.Bounds(), draw.Src, nil)

	return EncodePNG(dst)
}

// DecodeImage decodes PNG, JPEG, GIF or WebP bytes
func DecodeImage(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrUndecodableImage
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func fitRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return image.Rect(0, 0, width, height)
	}

	w, h := width, sh*width/sw
	if h > height {
		w, h = sw*height/sh, height
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	x0 := (width - w) / 2
	y0 := (height - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}
