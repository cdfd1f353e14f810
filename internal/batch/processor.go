package batch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"gs-texreplace/internal/texture"
)

// Config holds all shared resources for a verification run.
type Config struct {
	FS       afero.Fs
	Registry *texture.Registry
	Workers  int

	// Progress is called every ProgressEvery with the number of files done.
	// Nil disables progress reporting.
	Progress      func(done, total int, rate float64)
	ProgressEvery time.Duration
}

// Result holds the outcome of decoding one replacement.
type Result struct {
	Key     texture.NameKey
	File    string
	Width   int
	Height  int
	Levels  int
	Alpha   texture.AlphaMinMax
	Success bool
	Error   string
}

// Run decodes every replacement in the index using a worker pool. Results are
// returned in key order.
func Run(cfg Config, idx *texture.Index) []Result {
	keys := idx.Keys()
	total := len(keys)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	if cfg.Progress != nil {
		every := cfg.ProgressEvery
		if every <= 0 {
			every = 2 * time.Second
		}
		go func() {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						elapsed := time.Since(start).Seconds()
						cfg.Progress(int(p), total, float64(p)/elapsed)
					}
				}
			}
		}()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i, key := range keys {
		p.Go(func() {
			file, _ := idx.Lookup(key)
			results[i] = verifyOne(cfg, key, file)
			processed.Add(1)
		})
	}
	p.Wait()
	close(done)

	return results
}

func verifyOne(cfg Config, key texture.NameKey, file string) Result {
	res := Result{Key: key, File: file}

	img, err := cfg.Registry.Load(cfg.FS, file, false)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if f := key.Format; img.Width < f.Width() || img.Height < f.Height() {
		res.Error = fmt.Sprintf("replacement %dx%d is smaller than texture %dx%d", img.Width, img.Height, f.Width(), f.Height())
	} else {
		res.Success = true
	}
	res.Width = img.Width
	res.Height = img.Height
	res.Levels = img.Levels()
	res.Alpha = img.Alpha
	return res
}
