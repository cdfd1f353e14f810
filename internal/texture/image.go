package texture

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"gs-texreplace/internal/postprocess"
)

// AlphaMinMax is the range of alpha values found in the base level.
type AlphaMinMax struct {
	Min uint8
	Max uint8
}

// MipLevel is one reduced level of a decoded image.
type MipLevel struct {
	Width  int
	Height int
	Pitch  int
	Pixels []byte
}

// DecodedImage is a replacement decoded into memory. Once it is inserted into
// the cache it is never mutated.
type DecodedImage struct {
	Width  int
	Height int
	Format gputypes.TextureFormat
	Pitch  int
	Pixels []byte
	Mips   []MipLevel
	Alpha  AlphaMinMax
}

// FromNRGBA wraps an NRGBA image as an RGBA8 decoded image. The pixel slice is
// shared with img.
func FromNRGBA(img *image.NRGBA) *DecodedImage {
	b := img.Bounds()
	if b.Min != (image.Point{}) {
		cp := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			src := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(cp.Pix[y*cp.Stride:(y+1)*cp.Stride], img.Pix[src:src+b.Dx()*4])
		}
		img = cp
	}
	d := &DecodedImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: gputypes.TextureFormatRGBA8Unorm,
		Pitch:  img.Stride,
		Pixels: img.Pix,
	}
	d.Alpha = ComputeAlphaMinMax(d)
	return d
}

// NRGBA returns the base level as an image sharing the pixel data.
func (d *DecodedImage) NRGBA() (*image.NRGBA, error) {
	if d.Format != gputypes.TextureFormatRGBA8Unorm {
		return nil, fmt.Errorf("texture: format %v has no NRGBA view", d.Format)
	}
	return &image.NRGBA{
		Pix:    d.Pixels,
		Stride: d.Pitch,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}, nil
}

// Levels is the number of levels including the base.
func (d *DecodedImage) Levels() int {
	return 1 + len(d.Mips)
}

// ComputeAlphaMinMax scans the base level. Formats other than RGBA8 report
// the full range.
func ComputeAlphaMinMax(d *DecodedImage) AlphaMinMax {
	if d.Format != gputypes.TextureFormatRGBA8Unorm || d.Width == 0 || d.Height == 0 {
		return AlphaMinMax{Min: 0, Max: 255}
	}
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < d.Height; y++ {
		row := d.Pixels[y*d.Pitch : y*d.Pitch+d.Width*4]
		for i := 3; i < len(row); i += 4 {
			a := row[i]
			if a < lo {
				lo = a
			}
			if a > hi {
				hi = a
			}
		}
	}
	return AlphaMinMax{Min: lo, Max: hi}
}

// GenerateMipmaps fills in the mip chain from the base level. Images that
// already carry mips, or are not RGBA8, are left alone.
func (d *DecodedImage) GenerateMipmaps() {
	if len(d.Mips) > 0 {
		return
	}
	base, err := d.NRGBA()
	if err != nil {
		return
	}
	for _, lvl := range postprocess.MipChain(base) {
		d.Mips = append(d.Mips, MipLevel{
			Width:  lvl.Bounds().Dx(),
			Height: lvl.Bounds().Dy(),
			Pitch:  lvl.Stride,
			Pixels: lvl.Pix,
		})
	}
}
