package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ftrvxmtrx/tga"
	"github.com/spf13/afero"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrNoDecoder is returned when no decoder is registered for a file's extension.
var ErrNoDecoder = errors.New("texture: no decoder for extension")

// Decoder turns an encoded replacement into a decoded image. When
// onlyBaseLevel is set a decoder may skip any mip levels stored in the file.
type Decoder interface {
	Decode(r io.Reader, onlyBaseLevel bool) (*DecodedImage, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(r io.Reader, onlyBaseLevel bool) (*DecodedImage, error)

func (f DecoderFunc) Decode(r io.Reader, onlyBaseLevel bool) (*DecodedImage, error) {
	return f(r, onlyBaseLevel)
}

// ImageDecoder adapts an image.Decode style function. Single-level formats
// ignore onlyBaseLevel.
func ImageDecoder(decode func(io.Reader) (image.Image, error)) Decoder {
	return DecoderFunc(func(r io.Reader, _ bool) (*DecodedImage, error) {
		img, err := decode(r)
		if err != nil {
			return nil, err
		}
		return FromNRGBA(toNRGBA(img)), nil
	})
}

// Registry maps file extensions to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry returns a registry with every format the module can decode
// without outside help.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".png", ImageDecoder(png.Decode))
	r.Register(".jpg", ImageDecoder(jpeg.Decode))
	r.Register(".jpeg", ImageDecoder(jpeg.Decode))
	r.Register(".tga", ImageDecoder(tga.Decode))
	r.Register(".bmp", ImageDecoder(bmp.Decode))
	r.Register(".tif", ImageDecoder(tiff.Decode))
	r.Register(".tiff", ImageDecoder(tiff.Decode))
	r.Register(".webp", ImageDecoder(webp.Decode))
	return r
}

// Register installs d for ext, replacing any previous decoder.
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normalizeExt(ext)] = d
}

// Lookup returns the decoder for ext.
func (r *Registry) Lookup(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[normalizeExt(ext)]
	return d, ok
}

// Recognizes reports whether a decoder handles path's extension.
func (r *Registry) Recognizes(path string) bool {
	_, ok := r.Lookup(filepath.Ext(path))
	return ok
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	return exts
}

// Load reads and decodes path from fs and fills in the alpha range.
func (r *Registry) Load(fs afero.Fs, path string, onlyBaseLevel bool) (*DecodedImage, error) {
	d, ok := r.Lookup(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, path)
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texture: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := d.Decode(f, onlyBaseLevel)
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("texture: decode %s: empty image", path)
	}
	if onlyBaseLevel {
		img.Mips = nil
	}
	img.Alpha = ComputeAlphaMinMax(img)
	return img, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// toNRGBA converts any image to NRGBA format.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	// Check if source has alpha
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha: draw and force opaque
		draw.Draw(dst, b, src, b.Min, draw.Src)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := dst.PixOffset(x, y)
				dst.Pix[i+3] = 255
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				i := dst.PixOffset(x, y)
				dst.Pix[i] = c.R
				dst.Pix[i+1] = c.G
				dst.Pix[i+2] = c.B
				dst.Pix[i+3] = c.A
			}
		}
	}
	return dst
}
