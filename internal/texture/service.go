package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrNotIndexed is returned when a key has no replacement on disk.
var ErrNotIndexed = errors.New("texture: no replacement for key")

// Texture is a GPU texture created by a Device.
type Texture interface {
	Size() gputypes.Extent3D
	MipLevels() uint32
}

// Device creates and fills GPU textures on the consumer thread.
type Device interface {
	CreateTexture(size gputypes.Extent3D, mipLevels uint32, format gputypes.TextureFormat) (Texture, error)
	UploadRegion(tex Texture, rect image.Rectangle, pixels []byte, pitch int, mip int) error
}

// TextureCache receives replacements that finished loading in the background.
type TextureCache interface {
	InjectDecodedTexture(key CacheKey, tex Texture, alpha AlphaMinMax)
}

// Options are the replacement settings the service reacts to.
type Options struct {
	Enabled        bool
	AsyncLoading   bool
	PrecacheAll    bool
	DumpingEnabled bool
}

// Params configures a Service.
type Params struct {
	// FS defaults to the OS filesystem.
	FS afero.Fs

	// GameTextureDir holds one directory per game serial.
	GameTextureDir string

	// Registry defaults to DefaultRegistry.
	Registry *Registry

	Device       Device
	TextureCache TextureCache
	Logger       zerolog.Logger
	Options      Options
}

// Service ties the index, cache and worker together. Lookup, DrainReady,
// Reload, UpdateConfig and Shutdown must be called from the consumer
// goroutine only.
type Service struct {
	fs       afero.Fs
	dir      string
	registry *Registry
	device   Device
	textures TextureCache
	log      zerolog.Logger

	opts   Options
	serial string
	index  *Index
	cache  *Cache
	queue  *Queue
}

// New creates a service. Nothing is scanned until Initialize.
func New(p Params) *Service {
	s := &Service{
		fs:       p.FS,
		dir:      p.GameTextureDir,
		registry: p.Registry,
		device:   p.Device,
		textures: p.TextureCache,
		log:      p.Logger,
		opts:     p.Options,
		index:    EmptyIndex(),
		cache:    NewCache(),
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	s.queue = NewQueue(s.handle)
	return s
}

// Initialize starts a session for serial.
func (s *Service) Initialize(serial string) error {
	s.serial = serial
	if s.workerWanted(s.opts) {
		s.queue.Start()
	}
	if !s.opts.Enabled {
		return nil
	}
	if err := s.reloadIndex(); err != nil {
		return err
	}
	if s.opts.PrecacheAll {
		s.Precache()
	}
	return nil
}

// Options returns the current settings.
func (s *Service) Options() Options { return s.opts }

// Serial returns the serial of the current session.
func (s *Service) Serial() string { return s.serial }

// Index returns the current replacement index.
func (s *Service) Index() *Index { return s.index }

// Cache returns the decoded replacement cache.
func (s *Service) Cache() *Cache { return s.cache }

// Queue returns the worker queue.
func (s *Service) Queue() *Queue { return s.queue }

// Stats returns the cache bookkeeping sizes.
func (s *Service) Stats() CacheStats { return s.cache.Stats() }

// ReplacementDir is where replacements for serial are read from.
func (s *Service) ReplacementDir(serial string) string {
	return filepath.Join(s.dir, serial, "replacements")
}

// DumpDir is where textures for serial are dumped to.
func (s *Service) DumpDir(serial string) string {
	return filepath.Join(s.dir, serial, "dumps")
}

// Lookup returns a GPU texture for key if a replacement exists. When the
// replacement is not decoded yet and async loading is on, the load is queued
// and pending is true; the texture arrives later through DrainReady.
//
// A nil texture with pending false means no replacement is used this time.
func (s *Service) Lookup(key NameKey, wantsMipmap bool) (tex Texture, pending bool, alpha AlphaMinMax) {
	if !s.opts.Enabled || !s.index.HasAnyEntries() {
		return nil, false, AlphaMinMax{}
	}
	filename, ok := s.index.Lookup(key)
	if !ok {
		return nil, false, AlphaMinMax{}
	}

	ck := key.CacheKey()
	if img, ok := s.cache.Acquire(ck); ok {
		img = s.withMips(ck, img, wantsMipmap)
		return s.createTexture(ck, img, wantsMipmap), false, img.Alpha
	}

	if s.opts.AsyncLoading && s.queue.Running() {
		if s.cache.MarkPending(ck, false, wantsMipmap) == NewlyQueued {
			if !s.queue.Enqueue(DecodeTask{Key: ck, Filename: filename, WantsMipmap: wantsMipmap}) {
				s.cache.CompletePending(ck)
				return nil, false, AlphaMinMax{}
			}
		}
		return nil, true, AlphaMinMax{}
	}

	img, err := s.load(filename, wantsMipmap)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("failed to load replacement")
		return nil, false, AlphaMinMax{}
	}
	s.cache.Insert(ck, img)
	return s.createTexture(ck, img, wantsMipmap), false, img.Alpha
}

// LookupImage returns the decoded replacement for key, loading it inline if
// it is not cached yet. The image must not be modified.
func (s *Service) LookupImage(key NameKey) (*DecodedImage, error) {
	filename, ok := s.index.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, key)
	}
	ck := key.CacheKey()
	if img, ok := s.cache.TryGet(ck); ok {
		return img, nil
	}
	img, err := s.load(filename, false)
	if err != nil {
		return nil, err
	}
	s.cache.Insert(ck, img)
	return img, nil
}

// DrainReady uploads every replacement the worker finished since the last
// call and hands it to the texture cache. It returns the number injected.
func (s *Service) DrainReady() int {
	injected := 0
	for _, r := range s.cache.TakeReady() {
		img := s.withMips(r.Key, r.Image, r.WantsMipmap)
		tex := s.createTexture(r.Key, img, r.WantsMipmap)
		if tex == nil {
			continue
		}
		if s.textures != nil {
			s.textures.InjectDecodedTexture(r.Key, tex, img.Alpha)
		}
		injected++
	}
	return injected
}

// Precache queues every indexed replacement that is not decoded yet. The
// loads are cache-only: they are not injected unless the renderer asks for
// them meanwhile.
func (s *Service) Precache() int {
	if !s.queue.Running() {
		return 0
	}
	queued := 0
	for _, key := range s.index.Keys() {
		ck := key.CacheKey()
		if _, ok := s.cache.TryGet(ck); ok {
			continue
		}
		if s.cache.MarkPending(ck, true, false) != NewlyQueued {
			continue
		}
		filename, _ := s.index.Lookup(key)
		if !s.queue.Enqueue(DecodeTask{Key: ck, Filename: filename}) {
			s.cache.CompletePending(ck)
			break
		}
		queued++
	}
	s.log.Info().Int("queued", queued).Str("serial", s.serial).Msg("precaching replacements")
	return queued
}

// WaitIdle blocks until the worker has nothing queued or executing.
func (s *Service) WaitIdle(ctx context.Context) error {
	return s.queue.WaitIdle(ctx)
}

// Clear drops every decoded replacement and outstanding load. Loads that are
// executing complete but their results are discarded.
func (s *Service) Clear() {
	s.queue.CancelAll()
	s.cache.Clear()
}

// Reload switches to serial. It is a no-op if the serial is unchanged.
func (s *Service) Reload(ctx context.Context, serial string) error {
	if serial == s.serial {
		return nil
	}
	if !s.opts.Enabled {
		s.serial = serial
		return nil
	}

	if err := s.queue.WaitIdle(ctx); err != nil {
		return err
	}
	s.serial = serial
	s.cache.Clear()
	if err := s.reloadIndex(); err != nil {
		return err
	}
	if s.opts.PrecacheAll {
		s.Precache()
	}
	return nil
}

// UpdateConfig applies a settings change.
func (s *Service) UpdateConfig(old, opts Options) error {
	s.opts = opts

	if s.workerWanted(opts) {
		s.queue.Start()
	} else {
		s.stopWorker()
	}

	if old.Enabled && !opts.Enabled {
		s.queue.CancelAll()
		s.cache.Clear()
		s.index = EmptyIndex()
		return nil
	}

	if opts.Enabled && !old.Enabled {
		if err := s.reloadIndex(); err != nil {
			return err
		}
		if opts.PrecacheAll {
			s.Precache()
		}
		return nil
	}

	if opts.Enabled && opts.PrecacheAll && !old.PrecacheAll {
		s.Precache()
	}
	return nil
}

// Shutdown stops the worker and releases everything the session holds.
func (s *Service) Shutdown() {
	s.stopWorker()
	s.cache.Clear()
	s.index = EmptyIndex()
	s.serial = ""
}

func (s *Service) workerWanted(opts Options) bool {
	return opts.Enabled || opts.DumpingEnabled
}

func (s *Service) stopWorker() {
	s.queue.Stop()
	s.cache.CancelPending()
}

func (s *Service) reloadIndex() error {
	if s.serial == "" {
		s.index = EmptyIndex()
		return nil
	}
	dir := s.ReplacementDir(s.serial)
	idx, err := BuildIndex(s.fs, dir, s.registry, s.log)
	if err != nil {
		s.index = EmptyIndex()
		return fmt.Errorf("texture: scan %s: %w", dir, err)
	}
	s.index = idx
	s.log.Info().Str("dir", dir).Int("replacements", idx.Len()).Msg("found texture replacements")
	return nil
}

// load decodes filename with every level the file stores, generating mips
// if the caller wants them and the file has none.
func (s *Service) load(filename string, wantsMipmap bool) (*DecodedImage, error) {
	img, err := s.registry.Load(s.fs, filename, false)
	if err != nil {
		return nil, err
	}
	if wantsMipmap {
		img.GenerateMipmaps()
	}
	return img, nil
}

// withMips returns img with a generated mip chain when one is wanted and img
// has none. Cached images are never mutated: the mip-complete copy replaces
// the cache entry instead.
func (s *Service) withMips(key CacheKey, img *DecodedImage, wantsMipmap bool) *DecodedImage {
	if !wantsMipmap || len(img.Mips) > 0 || (img.Width <= 1 && img.Height <= 1) {
		return img
	}
	cp := *img
	cp.Mips = nil
	cp.GenerateMipmaps()
	if len(cp.Mips) == 0 {
		return img
	}
	s.cache.Insert(key, &cp)
	return &cp
}

// createTexture uploads img. Failures return nil; the decoded image stays
// cached so the next request can retry cheaply.
func (s *Service) createTexture(key CacheKey, img *DecodedImage, wantsMipmap bool) Texture {
	if s.device == nil {
		return nil
	}
	levels := 1
	if wantsMipmap {
		levels = img.Levels()
	}
	size := gputypes.Extent3D{Width: uint32(img.Width), Height: uint32(img.Height), DepthOrArrayLayers: 1}
	tex, err := s.device.CreateTexture(size, uint32(levels), img.Format)
	if err != nil || tex == nil {
		s.log.Warn().Err(err).Str("key", key.NameKey().String()).Msg("failed to create replacement texture")
		return nil
	}

	if err := s.device.UploadRegion(tex, image.Rect(0, 0, img.Width, img.Height), img.Pixels, img.Pitch, 0); err != nil {
		s.log.Warn().Err(err).Str("key", key.NameKey().String()).Msg("failed to upload replacement texture")
		return nil
	}
	for i := 1; i < levels; i++ {
		m := img.Mips[i-1]
		if err := s.device.UploadRegion(tex, image.Rect(0, 0, m.Width, m.Height), m.Pixels, m.Pitch, i); err != nil {
			s.log.Warn().Err(err).Int("mip", i).Str("key", key.NameKey().String()).Msg("failed to upload replacement mip")
			return nil
		}
	}
	return tex
}

func (s *Service) handle(t Task) {
	switch t := t.(type) {
	case DecodeTask:
		s.runDecode(t)
	case DumpTask:
		s.runDump(t)
	}
}

func (s *Service) runDecode(t DecodeTask) {
	img, err := s.load(t.Filename, t.WantsMipmap)
	if err != nil {
		s.log.Warn().Err(err).Str("file", t.Filename).Msg("failed to load replacement")
		s.cache.CompletePending(t.Key)
		return
	}
	s.cache.FinishLoad(t.Key, img, t.WantsMipmap)
}
