// Package headless provides an in-memory renderer device and texture cache.
// They stand in for a GPU when running tools or tests.
package headless

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"

	"gs-texreplace/internal/texture"
)

// ErrOutOfMemory is returned by CreateTexture once the texture budget is spent.
var ErrOutOfMemory = errors.New("headless: out of texture memory")

// Texture is a texture whose levels live in host memory.
type Texture struct {
	size    gputypes.Extent3D
	format  gputypes.TextureFormat
	levels  [][]byte
	uploads int
}

func (t *Texture) Size() gputypes.Extent3D { return t.size }
func (t *Texture) MipLevels() uint32       { return uint32(len(t.levels)) }

// Format is the texel format the texture was created with.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Level returns the tightly packed texels of mip level i.
func (t *Texture) Level(i int) []byte { return t.levels[i] }

// Uploads counts UploadRegion calls made against the texture.
func (t *Texture) Uploads() int { return t.uploads }

// Device creates host-memory textures. A zero MaxTextures means no budget.
type Device struct {
	MaxTextures int

	mu      sync.Mutex
	created int
}

// NewDevice returns a device without a texture budget.
func NewDevice() *Device {
	return &Device{}
}

// Created returns the number of textures created so far.
func (d *Device) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

func (d *Device) CreateTexture(size gputypes.Extent3D, mipLevels uint32, format gputypes.TextureFormat) (texture.Texture, error) {
	if format != gputypes.TextureFormatRGBA8Unorm {
		return nil, fmt.Errorf("headless: unsupported format %v", format)
	}
	if size.Width == 0 || size.Height == 0 || mipLevels == 0 {
		return nil, fmt.Errorf("headless: invalid texture %dx%d with %d levels", size.Width, size.Height, mipLevels)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MaxTextures > 0 && d.created >= d.MaxTextures {
		return nil, ErrOutOfMemory
	}
	d.created++

	t := &Texture{size: size, format: format, levels: make([][]byte, mipLevels)}
	w, h := int(size.Width), int(size.Height)
	for i := range t.levels {
		t.levels[i] = make([]byte, w*h*4)
		w, h = max(w/2, 1), max(h/2, 1)
	}
	return t, nil
}

func (d *Device) UploadRegion(tex texture.Texture, rect image.Rectangle, pixels []byte, pitch int, mip int) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("headless: foreign texture %T", tex)
	}
	if mip < 0 || mip >= len(t.levels) {
		return fmt.Errorf("headless: mip %d out of range", mip)
	}

	lw := max(int(t.size.Width)>>mip, 1)
	lh := max(int(t.size.Height)>>mip, 1)
	if !rect.In(image.Rect(0, 0, lw, lh)) {
		return fmt.Errorf("headless: region %v outside %dx%d level %d", rect, lw, lh, mip)
	}
	rowBytes := rect.Dx() * 4
	if pitch < rowBytes || len(pixels) < pitch*(rect.Dy()-1)+rowBytes {
		return fmt.Errorf("headless: short upload for region %v", rect)
	}

	dst := t.levels[mip]
	for y := 0; y < rect.Dy(); y++ {
		off := ((rect.Min.Y+y)*lw + rect.Min.X) * 4
		copy(dst[off:off+rowBytes], pixels[y*pitch:y*pitch+rowBytes])
	}
	t.uploads++
	return nil
}
