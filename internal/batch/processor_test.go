package batch

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gs-texreplace/internal/texture"
)

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.SetNRGBA(i%w, i/w, color.NRGBA{R: 9, A: 128})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	good := texture.Encode(texture.TextureDescriptor{Hash: 1, PSM: texture.PSMCT32, TW: 2, TH: 2})
	small := texture.Encode(texture.TextureDescriptor{Hash: 2, PSM: texture.PSMCT32, TW: 4, TH: 4})
	broken := texture.NameKey{Hash: 3}

	writePNG(t, fs, "/r/"+good.Filename("png"), 8, 8)
	writePNG(t, fs, "/r/"+small.Filename("png"), 8, 8)
	require.NoError(t, afero.WriteFile(fs, "/r/"+broken.Filename("png"), []byte("junk"), 0644))

	reg := texture.DefaultRegistry()
	idx, err := texture.BuildIndex(fs, "/r", reg, zerolog.Nop())
	require.NoError(t, err)

	var calls atomic.Int32
	results := Run(Config{
		FS:            fs,
		Registry:      reg,
		Workers:       2,
		Progress:      func(int, int, float64) { calls.Add(1) },
		ProgressEvery: time.Millisecond,
	}, idx)
	require.Len(t, results, 3)

	assert.Equal(t, good, results[0].Key)
	assert.True(t, results[0].Success)
	assert.Equal(t, 8, results[0].Width)
	assert.Equal(t, 1, results[0].Levels)
	assert.Equal(t, texture.AlphaMinMax{Min: 128, Max: 128}, results[0].Alpha)

	assert.Equal(t, small, results[1].Key)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "smaller than texture 16x16")

	assert.Equal(t, broken, results[2].Key)
	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, "texture: decode")
}

func TestRunEmptyIndex(t *testing.T) {
	assert.Empty(t, Run(Config{}, texture.EmptyIndex()))
}

func TestWriteManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	pal := texture.Encode(texture.TextureDescriptor{Hash: 0xAB, CLUTHash: 0xCD, PSM: texture.PSMT8})
	results := []Result{
		{Key: pal, File: "/r/a.png", Width: 4, Height: 4, Levels: 1, Alpha: texture.AlphaMinMax{Max: 255}, Success: true},
		{Key: texture.NameKey{Hash: 1, Region: 7}, File: "/r/b.png", Error: "boom"},
	}
	require.NoError(t, WriteManifest(fs, "/out/manifest.json", results))

	data, err := afero.ReadFile(fs, "/out/manifest.json")
	require.NoError(t, err)

	var entries []ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "00000000000000AB", entries[0].Hash)
	assert.Equal(t, "00000000000000CD", entries[0].CLUTHash)
	assert.Equal(t, pal.Filename("*"), entries[0].Name)
	assert.True(t, entries[0].OK)

	assert.Empty(t, entries[1].CLUTHash)
	assert.Equal(t, uint32(7), entries[1].Region)
	assert.Equal(t, "boom", entries[1].Error)
	assert.NotContains(t, string(data), `"width": 0`)
}
