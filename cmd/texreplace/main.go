package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"gs-texreplace/internal/batch"
	"gs-texreplace/internal/config"
	"gs-texreplace/internal/headless"
	"gs-texreplace/internal/logger"
	"gs-texreplace/internal/texture"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config file (yaml, json or toml)")
	dir := flag.String("dir", "", "Game texture directory (default: ./textures)")
	serial := flag.String("serial", "", "Game serial whose replacements are loaded")
	precache := flag.Bool("precache", false, "Decode every replacement up front")
	sync := flag.Bool("sync", false, "Decode on lookup instead of on the worker")
	verify := flag.Bool("verify", false, "Decode every replacement in parallel and report failures")
	manifest := flag.String("manifest", "", "Write the verification report to this file")
	workers := flag.Int("workers", 0, "Number of verification goroutines (default: 4)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	flag.Parse()

	// Load config
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		GameTextureDir: *dir,
		Serial:         *serial,
		LogLevel:       *logLevel,
		Workers:        *workers,
		Enable:         true,
		Precache:       *precache,
		Sync:           *sync,
	})

	if cfg.Serial == "" {
		fmt.Fprintln(os.Stderr, "Error: no serial. Use -serial flag or config file.")
		os.Exit(1)
	}

	log := logger.NewConsole(cfg.LogLevel)
	fs := afero.NewOsFs()
	reg := texture.DefaultRegistry()

	if *verify {
		os.Exit(runVerify(cfg, fs, reg, log, *manifest))
	}
	os.Exit(runService(cfg, fs, reg, log))
}

func runService(cfg config.Config, fs afero.Fs, reg *texture.Registry, log zerolog.Logger) int {
	device := headless.NewDevice()
	textures := headless.NewTextureCache()
	svc := texture.New(texture.Params{
		FS:             fs,
		GameTextureDir: cfg.GameTextureDir,
		Registry:       reg,
		Device:         device,
		TextureCache:   textures,
		Logger:         log,
		Options:        cfg.Options(),
	})
	defer svc.Shutdown()

	start := time.Now()
	if err := svc.Initialize(cfg.Serial); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	idx := svc.Index()
	fmt.Printf("Replacements: %d indexed in %s\n", idx.Len(), svc.ReplacementDir(cfg.Serial))
	if idx.HasCLUTEntries() {
		fmt.Println("Palette-keyed replacements present")
	}
	if !idx.HasAnyEntries() {
		return 0
	}

	if cfg.Replacements.PrecacheAll {
		if err := svc.WaitIdle(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Precached %d in %.1fs\n", svc.Stats().Cached, time.Since(start).Seconds())
	}

	// Request every replacement the way the renderer would.
	ready, pending, failed := 0, 0, 0
	for _, key := range idx.Keys() {
		tex, isPending, _ := svc.Lookup(key, true)
		switch {
		case tex != nil:
			ready++
		case isPending:
			pending++
		default:
			failed++
		}
	}
	if pending > 0 {
		if err := svc.WaitIdle(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		ready += svc.DrainReady()
	}

	stats := svc.Stats()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())
	fmt.Printf("Textures: %d ready, %d failed, %d decoded, %d created\n", ready, failed, stats.Cached, device.Created())
	if failed > 0 {
		return 1
	}
	return 0
}

func runVerify(cfg config.Config, fs afero.Fs, reg *texture.Registry, log zerolog.Logger, manifestPath string) int {
	dir := cfg.ReplacementDir()
	idx, err := texture.BuildIndex(fs, dir, reg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Replacements: %d indexed in %s\n", idx.Len(), dir)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()
	results := batch.Run(batch.Config{
		FS:       fs,
		Registry: reg,
		Workers:  cfg.Workers,
		Progress: func(done, total int, rate float64) {
			fmt.Printf("  [%d/%d] %.1f files/sec\n", done, total, rate)
		},
	}, idx)

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	// Count results
	var errors []batch.Result
	for _, r := range results {
		if !r.Success {
			errors = append(errors, r)
		}
	}
	fmt.Printf("Decoded: %d/%d\n", len(results)-len(errors), len(results))

	if len(errors) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(errors))
		limit := min(len(errors), 20)
		for _, e := range errors[:limit] {
			fmt.Printf("  %s: %s\n", filepath.Base(e.File), e.Error)
		}
	}

	if manifestPath != "" {
		if err := batch.WriteManifest(fs, manifestPath, results); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
		} else {
			fmt.Printf("Manifest: %s\n", manifestPath)
		}
	}

	if len(errors) > 0 {
		return 1
	}
	return 0
}
