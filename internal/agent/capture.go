package agent

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"
)

// Capturer grabs one snapshot of the screen.
type Capturer interface {
	Capture() (image.Image, error)
}

// primaryDisplay captures the primary monitor.
type primaryDisplay struct{}

// NewScreenCapturer returns a Capturer for the primary display.
func NewScreenCapturer() Capturer {
	return primaryDisplay{}
}

func (primaryDisplay) Capture() (image.Image, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("capture display: %w", err)
	}
	return img, nil
}

// EncodeFrame downscales the image to fit within MaxFrameWidth x
// MaxFrameHeight, preserving aspect ratio, and encodes it as JPEG.
// Images already inside the bounding box are encoded as-is.
func EncodeFrame(img image.Image) ([]byte, error) {
	img = fitToBounds(img, MaxFrameWidth, MaxFrameHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func fitToBounds(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
