package batch

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// ManifestEntry represents one replacement in the verification report.
type ManifestEntry struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Hash     string `json:"hash"`
	CLUTHash string `json:"clut_hash,omitempty"`
	Region   uint32 `json:"region,omitempty"`
	Format   uint32 `json:"format"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Levels   int    `json:"levels,omitempty"`
	AlphaMin uint8  `json:"alpha_min"`
	AlphaMax uint8  `json:"alpha_max"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// WriteManifest writes the verification results as JSON.
func WriteManifest(fs afero.Fs, path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{
			Name:     r.Key.Filename("*"),
			File:     r.File,
			Hash:     hex64(r.Key.Hash),
			Region:   r.Key.Region,
			Format:   uint32(r.Key.Format),
			Width:    r.Width,
			Height:   r.Height,
			Levels:   r.Levels,
			AlphaMin: r.Alpha.Min,
			AlphaMax: r.Alpha.Max,
			OK:       r.Success,
			Error:    r.Error,
		}
		if r.Key.HasPalette() {
			e.CLUTHash = hex64(r.Key.CLUTHash)
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

func hex64(v uint64) string {
	return fmt.Sprintf("%016X", v)
}
