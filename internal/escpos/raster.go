package escpos

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
)

// DefaultDots is the printable width of 80mm paper at 203dpi.
const DefaultDots = 576

// maxRasterHeight is the GS v 0 yL/yH limit per command.
const maxRasterHeight = 2303

// Raster converts img to 1-bit GS v 0 commands, thresholding at mid-grey.
// Tall images are split into bands the printer will accept.
func Raster(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx() - bounds.Dx()%8
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("raster: empty image")
	}
	rowBytes := width / 8

	var out bytes.Buffer
	for top := 0; top < height; top += maxRasterHeight {
		band := height - top
		if band > maxRasterHeight {
			band = maxRasterHeight
		}
		out.Write([]byte{
			GS, 'v', '0', 0x00,
			byte(rowBytes), byte(rowBytes >> 8),
			byte(band), byte(band >> 8),
		})

		data := make([]byte, rowBytes*band)
		for y := 0; y < band; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+top+y).RGBA()
				if (r+g+b)/3 < 0x8000 {
					data[y*rowBytes+x/8] |= 1 << (7 - x%8)
				}
			}
		}
		out.Write(data)
	}
	return out.Bytes(), nil
}

// ImageJob wraps a rasterized receipt with the same preamble and cut as
// text receipts.
func ImageJob(img image.Image, dots int, feed byte) ([]byte, error) {
	if dots <= 0 {
		dots = DefaultDots
	}
	raster, err := Raster(ResizeToWidth(img, dots))
	if err != nil {
		return nil, err
	}
	job := append([]byte{}, CmdInit...)
	job = append(job, raster...)
	job = append(job, Feed(feed)...)
	job = append(job, Cut(0)...)
	return job, nil
}

// ResizeToWidth scales src with nearest-neighbour sampling.
func ResizeToWidth(src image.Image, targetWidth int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == targetWidth || w == 0 {
		return src
	}

	scale := float64(targetWidth) / float64(w)
	newHeight := int(float64(h) * scale)
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			sy := bounds.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
