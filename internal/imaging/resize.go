package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"strconv"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder"
)

// MaxOutputSize bounds the longest side of an image sent to the backend.
const MaxOutputSize = 1536

const ratioTolerance = 0.001

var ErrInvalidRatio = errors.New("invalid aspect ratio")

// ParseRatio turns "3:4" into width/height.
func ParseRatio(ratio string) (float64, error) {
	parts := strings.SplitN(strings.TrimSpace(ratio), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRatio, ratio)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRatio, ratio)
	}
	return float64(w) / float64(h), nil
}

func Decode(img Image) (image.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: image may be corrupted: %w", img.mime(), err)
	}
	return decoded, nil
}

// ResizeToAspectRatio center-crops to ratio, then shrinks so that neither side
// exceeds MaxOutputSize. The result is always PNG.
func ResizeToAspectRatio(img Image, ratio string) (Image, error) {
	target, err := ParseRatio(ratio)
	if err != nil {
		return Image{}, err
	}

	src, err := Decode(img)
	if err != nil {
		return Image{}, err
	}

	out := resizeImage(cropToRatio(src, target), MaxOutputSize)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{MIMEType: "image/png", Data: buf.Bytes()}, nil
}

func cropToRatio(src image.Image, target float64) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}

	current := float64(w) / float64(h)
	if math.Abs(current-target) <= ratioTolerance {
		return src
	}

	cropW, cropH := w, h
	if current > target {
		cropW = int(math.Round(float64(h) * target))
	} else {
		cropH = int(math.Round(float64(w) / target))
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}

	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2

	dst := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x0, Y: y0}, draw.Src)
	return dst
}

// resizeImage scales down with nearest-neighbour sampling. Images already
// within bounds are returned untouched.
func resizeImage(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}

	scale := math.Min(float64(maxSide)/float64(w), float64(maxSide)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := b.Min.Y + int(float64(y)/scale)
		if srcY >= b.Max.Y {
			srcY = b.Max.Y - 1
		}
		for x := 0; x < newW; x++ {
			srcX := b.Min.X + int(float64(x)/scale)
			if srcX >= b.Max.X {
				srcX = b.Max.X - 1
			}
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
