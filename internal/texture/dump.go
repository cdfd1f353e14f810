package texture

import (
	"fmt"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/spf13/afero"
)

// Dump queues img to be written to the dump directory of the current serial.
// It returns false when dumping is off or the worker is not running.
func (s *Service) Dump(key NameKey, img *DecodedImage) bool {
	if !s.opts.DumpingEnabled || s.serial == "" || img == nil {
		return false
	}
	path := filepath.Join(s.DumpDir(s.serial), key.Filename("webp"))
	return s.queue.Enqueue(DumpTask{Key: key.CacheKey(), Path: path, Image: img})
}

func (s *Service) runDump(t DumpTask) {
	if err := writeDump(s.fs, t.Path, t.Image); err != nil {
		s.log.Warn().Err(err).Str("file", t.Path).Msg("failed to dump texture")
		return
	}
	s.log.Debug().Str("file", t.Path).Msg("dumped texture")
}

// writeDump encodes img as WebP at path. Existing dumps are left alone.
func writeDump(fs afero.Fs, path string, img *DecodedImage) error {
	if exists, _ := afero.Exists(fs, path); exists {
		return nil
	}
	src, err := img.NRGBA()
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("texture: mkdir %s: %w", filepath.Dir(path), err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("texture: create %s: %w", path, err)
	}
	if err := nativewebp.Encode(f, src, nil); err != nil {
		f.Close()
		fs.Remove(path)
		return fmt.Errorf("texture: encode %s: %w", path, err)
	}
	return f.Close()
}
