package texture

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Index maps replacement names to filesystem paths. It is built once per scan
// and read-only afterwards.
type Index struct {
	entries map[NameKey]string // normalized key → full path
	noCLUT  map[NameKey]struct{}
	hasCLUT bool
}

// EmptyIndex returns an index with no entries.
func EmptyIndex() *Index {
	return &Index{
		entries: make(map[NameKey]string),
		noCLUT:  make(map[NameKey]struct{}),
	}
}

// BuildIndex scans root recursively for files the registry can decode whose
// names parse as replacement names. A missing root gives an empty index.
//
// The walk visits paths in lexical order so when two files map to the same
// key the lexically last one wins.
func BuildIndex(fs afero.Fs, root string, reg *Registry, log zerolog.Logger) (*Index, error) {
	idx := EmptyIndex()

	if info, err := fs.Stat(root); err != nil || !info.IsDir() {
		log.Debug().Str("dir", root).Msg("no replacement directory")
		return idx, nil
	}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if info.IsDir() || !reg.Recognizes(path) {
			return nil
		}

		key, ok := Decode(filepath.Base(path))
		if !ok {
			log.Warn().Str("path", path).Msg("replacement name does not match any pattern")
			return nil
		}

		if prev, exists := idx.entries[key]; exists {
			log.Warn().Str("key", key.String()).Str("kept", path).Str("dropped", prev).
				Msg("duplicate replacement for texture")
		}
		idx.add(key, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) add(key NameKey, path string) {
	key = indexKey(key)
	idx.entries[key] = path
	idx.noCLUT[noCLUTKey(key)] = struct{}{}
	if key.CLUTHash != 0 {
		idx.hasCLUT = true
	}
}

// indexKey drops what the filename cannot carry.
func indexKey(k NameKey) NameKey {
	k = k.normalized()
	k.Mip = 0
	return k
}

// noCLUTKey keeps hash, region and format with palette information removed.
func noCLUTKey(k NameKey) NameKey {
	k = indexKey(k)
	k.CLUTHash = 0
	k.Format &^= formatCPSMMask
	return k
}

// Lookup returns the path of the replacement for key.
func (idx *Index) Lookup(key NameKey) (string, bool) {
	path, ok := idx.entries[indexKey(key)]
	return path, ok
}

// ExistsIgnoringPalette reports whether some replacement shares the key's
// hash, region and format under any palette. The CLUT storage mode (CPSM) is
// part of the palette, so it is ignored too.
func (idx *Index) ExistsIgnoringPalette(key NameKey) bool {
	_, ok := idx.noCLUT[noCLUTKey(key)]
	return ok
}

// HasAnyEntries reports whether the scan found anything.
func (idx *Index) HasAnyEntries() bool {
	return len(idx.entries) > 0
}

// HasCLUTEntries reports whether any replacement is keyed by a palette hash.
func (idx *Index) HasCLUTEntries() bool {
	return idx.hasCLUT
}

// Len returns the number of indexed replacements.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Keys returns every indexed key in ascending order.
func (idx *Index) Keys() []NameKey {
	keys := make([]NameKey, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Compare)
	return keys
}
