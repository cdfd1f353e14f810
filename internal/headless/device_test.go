package headless

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gs-texreplace/internal/texture"
)

func extent(w, h uint32) gputypes.Extent3D {
	return gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
}

func TestCreateTextureLevels(t *testing.T) {
	d := NewDevice()
	tex, err := d.CreateTexture(extent(8, 2), 4, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	ht := tex.(*Texture)
	assert.EqualValues(t, 4, ht.MipLevels())
	assert.Len(t, ht.Level(0), 8*2*4)
	assert.Len(t, ht.Level(1), 4*1*4)
	assert.Len(t, ht.Level(3), 1*1*4)
	assert.Equal(t, 1, d.Created())
}

func TestCreateTextureRejects(t *testing.T) {
	d := &Device{MaxTextures: 1}
	_, err := d.CreateTexture(extent(1, 1), 1, gputypes.TextureFormatBGRA8Unorm)
	assert.Error(t, err)
	_, err = d.CreateTexture(extent(0, 1), 1, gputypes.TextureFormatRGBA8Unorm)
	assert.Error(t, err)

	_, err = d.CreateTexture(extent(1, 1), 1, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	_, err = d.CreateTexture(extent(1, 1), 1, gputypes.TextureFormatRGBA8Unorm)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestUploadRegion(t *testing.T) {
	d := NewDevice()
	tex, err := d.CreateTexture(extent(4, 4), 2, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	// two rows of a 2x2 region with padding in the source pitch
	src := []byte{
		1, 1, 1, 1, 2, 2, 2, 2, 0, 0,
		3, 3, 3, 3, 4, 4, 4, 4,
	}
	require.NoError(t, d.UploadRegion(tex, image.Rect(1, 1, 3, 3), src, 10, 0))

	lvl := tex.(*Texture).Level(0)
	assert.Equal(t, []byte{1, 1, 1, 1, 2, 2, 2, 2}, lvl[(1*4+1)*4:(1*4+3)*4])
	assert.Equal(t, []byte{3, 3, 3, 3, 4, 4, 4, 4}, lvl[(2*4+1)*4:(2*4+3)*4])
	assert.Equal(t, 1, tex.(*Texture).Uploads())

	assert.Error(t, d.UploadRegion(tex, image.Rect(0, 0, 4, 4), src, 16, 1))
	assert.Error(t, d.UploadRegion(tex, image.Rect(0, 0, 2, 2), src, 8, 2))
	assert.Error(t, d.UploadRegion(tex, image.Rect(0, 0, 2, 2), src[:4], 8, 0))
}

type foreign struct{}

func (foreign) Size() gputypes.Extent3D { return gputypes.Extent3D{} }
func (foreign) MipLevels() uint32       { return 1 }

func TestUploadRegionForeignTexture(t *testing.T) {
	err := NewDevice().UploadRegion(foreign{}, image.Rect(0, 0, 1, 1), make([]byte, 4), 4, 0)
	assert.Error(t, err)
}

func TestTextureCache(t *testing.T) {
	c := NewTextureCache()
	k := texture.CacheKey{Hash: 1}
	c.InjectDecodedTexture(k, foreign{}, texture.AlphaMinMax{Min: 1, Max: 2})
	c.InjectDecodedTexture(k, foreign{}, texture.AlphaMinMax{Min: 3, Max: 4})

	inj, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, texture.AlphaMinMax{Min: 3, Max: 4}, inj.Alpha)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, c.Injections())
}
