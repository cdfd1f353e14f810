package texture

import (
	"slices"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePatterns(t *testing.T) {
	tests := []struct {
		name string
		want NameKey
	}{
		{
			name: "A1B2C3D4E5F6A7B8-0123456789ABCDEF-r0000000F-00000013.png",
			want: NameKey{Hash: 0xA1B2C3D4E5F6A7B8, CLUTHash: 0x0123456789ABCDEF, Region: 0xF, Format: 0x13},
		},
		{
			name: "a1b2c3d4e5f6a7b8-r00010002-00000000.dds",
			want: NameKey{Hash: 0xA1B2C3D4E5F6A7B8, Region: 0x00010002},
		},
		{
			name: "a1b2c3d4e5f6a7b8-00000000000000ff-00000014.png",
			want: NameKey{Hash: 0xA1B2C3D4E5F6A7B8, CLUTHash: 0xFF, Format: 0x14},
		},
		{
			name: "a1b2c3d4e5f6a7b8-00000001.png",
			want: NameKey{Hash: 0xA1B2C3D4E5F6A7B8, Format: 1},
		},
		{
			// scanf-style fields need not be zero padded
			name: "1f-2.png",
			want: NameKey{Hash: 0x1F, Format: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeZeroesCLUTWithoutPalette(t *testing.T) {
	// PSM 2 is a direct color mode, so the middle field is a stale CLUT hash.
	got, ok := Decode("a1b2c3d4e5f6a7b8-ffaa0102-00000002.dds")
	require.True(t, ok)
	assert.Equal(t, NameKey{Hash: 0xA1B2C3D4E5F6A7B8, Format: 2}, got)
}

func TestDecodeHexPrefix(t *testing.T) {
	got, ok := Decode("0xA1-0X0000000000000002-0x00000013.png")
	require.True(t, ok)
	assert.Equal(t, NameKey{Hash: 0xA1, CLUTHash: 2, Format: 0x13}, got)

	got, ok = Decode("0X00000000000000FF-r0x10-00000000.png")
	require.True(t, ok)
	assert.Equal(t, NameKey{Hash: 0xFF, Region: 0x10}, got)

	// a bare 0x is the digit 0 followed by junk
	_, ok = Decode("0x-00000000.png")
	assert.False(t, ok)
}

func TestDecodeRejects(t *testing.T) {
	for _, name := range []string{
		"not-a-hash.png",
		"a1b2c3d4e5f6a7b8.png",
		"a1b2c3d4e5f6a7b8-00000001",
		"a1b2c3d4e5f6a7b8-00000001.",
		"a1b2c3d4e5f6a7b8-00000001_x.png",
		"a1b2c3d4e5f6a7b8-00000001 .png",
		"a1b2c3d4e5f6a7b8-0123-r-00000001.png",
		"a1b2c3d4e5f6a7b8-rzz-00000001.png",
		"a1b2c3d4e5f6a7b8a-00000001.png",  // hash wider than 64 bits
		"a1b2c3d4e5f6a7b8-100000000.png",  // format wider than 32 bits
		"-00000001.png",
		" a1b2c3d4e5f6a7b8-00000001.png",
		"+a1b2c3d4e5f6a7b8-00000001.png",
		"0x1a1b2c3d4e5f6a7b8-00000001.png",
		"",
	} {
		_, ok := Decode(name)
		assert.False(t, ok, name)
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	keys := []NameKey{
		Encode(TextureDescriptor{Hash: 0xA1B2C3D4E5F6A7B8, PSM: PSMCT32, TW: 8, TH: 8, TCC: true}),
		Encode(TextureDescriptor{Hash: 1, CLUTHash: 0xDEADBEEF, PSM: PSMT8, TW: 7, TH: 6, CPSM: 2}),
		Encode(TextureDescriptor{Hash: 2, CLUTHash: 3, PSM: PSMT4HH, Region: 0x00400040}),
		Encode(TextureDescriptor{Hash: 4, PSM: PSMCT16, Region: 0x10}),
		Encode(TextureDescriptor{Hash: 5, PSM: PSMT4}),
		{Hash: 6, CLUTHash: 7, Format: PSMCT24},
	}
	for _, k := range keys {
		name := k.Filename("png")
		got, ok := Decode(name)
		require.True(t, ok, name)
		assert.Equal(t, k.normalized(), got, name)
	}
}

func TestFilenameShape(t *testing.T) {
	k := Encode(TextureDescriptor{Hash: 0xA1B2C3D4E5F6A7B8, CLUTHash: 0xFF, PSM: PSMT8, Region: 5})
	assert.Equal(t, "A1B2C3D4E5F6A7B8-00000000000000FF-r00000005-00000013.dds", k.Filename(".dds"))

	k = Encode(TextureDescriptor{Hash: 0xA1B2C3D4E5F6A7B8, CLUTHash: 0xFF, PSM: PSMCT32})
	assert.Equal(t, "A1B2C3D4E5F6A7B8-00000000.png", k.Filename("png"))
}

func TestEncodePacksFormat(t *testing.T) {
	k := Encode(TextureDescriptor{Hash: 9, CLUTHash: 10, PSM: PSMT4HL, TW: 9, TH: 5, TCC: true, TFX: 3, CPSM: 0xA, Mip: 2})

	f := k.Format
	assert.Equal(t, uint8(PSMT4HL), f.PSM())
	assert.Equal(t, uint8(9), f.TW())
	assert.Equal(t, uint8(5), f.TH())
	assert.Equal(t, 512, f.Width())
	assert.Equal(t, 32, f.Height())
	assert.True(t, f.TCC())
	assert.Equal(t, uint8(3), f.TFX())
	assert.Equal(t, uint8(0xA), f.CPSM())
	assert.True(t, k.HasPalette())
	assert.Equal(t, uint64(10), k.CLUTHash)
	assert.Equal(t, uint32(2), k.Mip)
}

func TestEncodeZeroesCLUTWithoutPalette(t *testing.T) {
	a := Encode(TextureDescriptor{Hash: 9, CLUTHash: 10, PSM: PSMCT16S})
	b := Encode(TextureDescriptor{Hash: 9, CLUTHash: 11, PSM: PSMCT16S})
	assert.Zero(t, a.CLUTHash)
	assert.Equal(t, a, b)
}

func TestKeyConversion(t *testing.T) {
	k := NameKey{Hash: 1, CLUTHash: 2, Region: 3, Format: PSMT8, Mip: 5}
	assert.Equal(t, CacheKey{Hash: 1, CLUTHash: 2, Region: 3, Format: PSMT8, Mip: 5}, k.CacheKey())
	assert.Equal(t, k, k.CacheKey().NameKey())
	assert.EqualValues(t, 32, unsafe.Sizeof(k))
}

func TestCacheKeyDropsStaleCLUT(t *testing.T) {
	a := NameKey{Hash: 1, CLUTHash: 0xDEADBEEF, Format: PSMCT32, Mip: 1}
	b := NameKey{Hash: 1, Format: PSMCT32, Mip: 1}
	assert.Equal(t, b.CacheKey(), a.CacheKey())
	assert.Zero(t, a.CacheKey().CLUTHash)
}

func TestCompareOrder(t *testing.T) {
	keys := []NameKey{
		{Hash: 2},
		{Hash: 1, CLUTHash: 1},
		{Hash: 1, Region: 1},
		{Hash: 1, Format: 1},
		{Hash: 1, Format: 1, Mip: 1},
		{Hash: 1},
	}
	slices.SortFunc(keys, Compare)
	assert.Equal(t, []NameKey{
		{Hash: 1},
		{Hash: 1, Format: 1},
		{Hash: 1, Format: 1, Mip: 1},
		{Hash: 1, Region: 1},
		{Hash: 1, CLUTHash: 1},
		{Hash: 2},
	}, keys)
	assert.Zero(t, Compare(NameKey{Hash: 3}, NameKey{Hash: 3}))
}
