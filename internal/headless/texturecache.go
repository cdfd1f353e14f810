package headless

import (
	"sync"

	"gs-texreplace/internal/texture"
)

// Injection records one texture handed to the cache.
type Injection struct {
	Texture texture.Texture
	Alpha   texture.AlphaMinMax
}

// TextureCache keeps injected replacements by key.
type TextureCache struct {
	mu       sync.Mutex
	textures map[texture.CacheKey]Injection
	count    int
}

func NewTextureCache() *TextureCache {
	return &TextureCache{textures: make(map[texture.CacheKey]Injection)}
}

func (c *TextureCache) InjectDecodedTexture(key texture.CacheKey, tex texture.Texture, alpha texture.AlphaMinMax) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textures[key] = Injection{Texture: tex, Alpha: alpha}
	c.count++
}

// Get returns the injection for key.
func (c *TextureCache) Get(key texture.CacheKey) (Injection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inj, ok := c.textures[key]
	return inj, ok
}

// Len is the number of distinct keys injected.
func (c *TextureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.textures)
}

// Injections counts every InjectDecodedTexture call, repeats included.
func (c *TextureCache) Injections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
