package texture

import (
	"cmp"
	"fmt"
	"strings"
)

// Pixel storage modes that matter to naming. Only the indexed modes carry a CLUT.
const (
	PSMCT32  = 0x00
	PSMCT24  = 0x01
	PSMCT16  = 0x02
	PSMCT16S = 0x0A
	PSMT8    = 0x13
	PSMT4    = 0x14
	PSMT8H   = 0x1B
	PSMT4HL  = 0x24
	PSMT4HH  = 0x2C
)

// Format is the packed texture format bitfield carried in a replacement name.
//
//	bits  0-5   PSM   pixel storage mode
//	bits  6-9   TW    log2 width
//	bits 10-13  TH    log2 height
//	bit  14     TCC   alpha component present
//	bits 15-16  TFX   texture function (alpha expansion)
//	bits 17-20  CPSM  CLUT storage mode
type Format uint32

const (
	formatPSMShift  = 0
	formatTWShift   = 6
	formatTHShift   = 10
	formatTCCShift  = 14
	formatTFXShift  = 15
	formatCPSMShift = 17

	formatCPSMMask Format = 0xF << formatCPSMShift
)

func (f Format) PSM() uint8  { return uint8(f>>formatPSMShift) & 0x3F }
func (f Format) TW() uint8   { return uint8(f>>formatTWShift) & 0xF }
func (f Format) TH() uint8   { return uint8(f>>formatTHShift) & 0xF }
func (f Format) TCC() bool   { return (f>>formatTCCShift)&1 != 0 }
func (f Format) TFX() uint8  { return uint8(f>>formatTFXShift) & 0x3 }
func (f Format) CPSM() uint8 { return uint8(f>>formatCPSMShift) & 0xF }

// Width and Height are the texture dimensions described by TW and TH.
func (f Format) Width() int  { return 1 << f.TW() }
func (f Format) Height() int { return 1 << f.TH() }

// HasPalette reports whether the pixel storage mode is indexed.
func (f Format) HasPalette() bool {
	switch f.PSM() {
	case PSMT8, PSMT4, PSMT8H, PSMT4HL, PSMT4HH:
		return true
	}
	return false
}

// TextureDescriptor is the raw description of a texture as the renderer sees it.
type TextureDescriptor struct {
	Hash     uint64
	CLUTHash uint64
	PSM      uint8
	TW       uint8
	TH       uint8
	TCC      bool
	TFX      uint8
	CPSM     uint8
	Region   uint32
	Mip      uint32
}

// NameKey identifies a replacement by texture content. It is a comparable
// 32-byte value and can be used directly as a map key.
type NameKey struct {
	Hash     uint64
	CLUTHash uint64
	Region   uint32
	Format   Format
	Mip      uint32
}

// CacheKey is the key of decoded images held in memory. It carries the same
// information as NameKey; use NameKey.CacheKey and CacheKey.NameKey to convert.
type CacheKey struct {
	Hash     uint64
	CLUTHash uint64
	Region   uint32
	Format   Format
	Mip      uint32
}

// CacheKey converts the name into a cache key. A stale CLUT hash on a format
// without a palette is dropped, so such keys share one cache entry.
func (k NameKey) CacheKey() CacheKey {
	k = k.normalized()
	return CacheKey{Hash: k.Hash, CLUTHash: k.CLUTHash, Region: k.Region, Format: k.Format, Mip: k.Mip}
}

// NameKey converts the cache key back into a name.
func (k CacheKey) NameKey() NameKey {
	return NameKey{Hash: k.Hash, CLUTHash: k.CLUTHash, Region: k.Region, Format: k.Format, Mip: k.Mip}
}

// HasPalette reports whether the key's format is indexed.
func (k NameKey) HasPalette() bool { return k.Format.HasPalette() }

// HasRegion reports whether the key carries a sub-rectangle override.
func (k NameKey) HasRegion() bool { return k.Region != 0 }

// normalized zeroes the CLUT hash of formats which have no palette.
func (k NameKey) normalized() NameKey {
	if !k.Format.HasPalette() {
		k.CLUTHash = 0
	}
	return k
}

// Compare orders keys by hash, CLUT hash, region, format and then mip level.
func Compare(a, b NameKey) int {
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CLUTHash, b.CLUTHash); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Region, b.Region); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Format, b.Format); c != 0 {
		return c
	}
	return cmp.Compare(a.Mip, b.Mip)
}

// Encode packs a texture descriptor into a NameKey.
func Encode(d TextureDescriptor) NameKey {
	f := Format(d.PSM&0x3F)<<formatPSMShift |
		Format(d.TW&0xF)<<formatTWShift |
		Format(d.TH&0xF)<<formatTHShift |
		Format(d.TFX&0x3)<<formatTFXShift |
		Format(d.CPSM&0xF)<<formatCPSMShift
	if d.TCC {
		f |= 1 << formatTCCShift
	}
	return NameKey{
		Hash:     d.Hash,
		CLUTHash: d.CLUTHash,
		Region:   d.Region,
		Format:   f,
		Mip:      d.Mip,
	}.normalized()
}

// Filename renders the most specific name pattern that applies to the key.
func (k NameKey) Filename(ext string) string {
	k = k.normalized()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%016X", k.Hash)
	if k.HasPalette() {
		fmt.Fprintf(&sb, "-%016X", k.CLUTHash)
	}
	if k.HasRegion() {
		fmt.Fprintf(&sb, "-r%08X", k.Region)
	}
	fmt.Fprintf(&sb, "-%08X.%s", uint32(k.Format), strings.TrimPrefix(ext, "."))
	return sb.String()
}

func (k NameKey) String() string {
	return fmt.Sprintf("%016X-%016X-r%08X-%08X/mip%d", k.Hash, k.CLUTHash, k.Region, uint32(k.Format), k.Mip)
}

type namePattern struct {
	clut   bool
	region bool
}

// most specific first
var namePatterns = [...]namePattern{
	{clut: true, region: true},
	{region: true},
	{clut: true},
	{},
}

// Decode parses a replacement filename (without directory). The result is
// false when the name fits none of the patterns.
func Decode(filename string) (NameKey, bool) {
	for _, p := range namePatterns {
		if k, ok := p.match(filename); ok {
			return k, true
		}
	}
	return NameKey{}, false
}

func (p namePattern) match(name string) (NameKey, bool) {
	sc := nameScanner{s: name}
	var k NameKey
	var ok bool

	if k.Hash, ok = sc.hex(64); !ok || !sc.lit('-') {
		return NameKey{}, false
	}
	if p.clut {
		if k.CLUTHash, ok = sc.hex(64); !ok || !sc.lit('-') {
			return NameKey{}, false
		}
	}
	if p.region {
		if !sc.lit('r') {
			return NameKey{}, false
		}
		r, ok := sc.hex(32)
		if !ok || !sc.lit('-') {
			return NameKey{}, false
		}
		k.Region = uint32(r)
	}
	f, ok := sc.hex(32)
	if !ok {
		return NameKey{}, false
	}
	k.Format = Format(f)

	// the extension separator must follow the last field directly
	if !sc.lit('.') || sc.done() {
		return NameKey{}, false
	}
	return k.normalized(), true
}

// nameScanner matches hex fields and literals the way %llX-style scanning
// does. A field may carry a 0x prefix; leading blanks and signs are rejected.
type nameScanner struct {
	s   string
	pos int
}

func (sc *nameScanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *nameScanner) lit(c byte) bool {
	if sc.done() || sc.s[sc.pos] != c {
		return false
	}
	sc.pos++
	return true
}

func (sc *nameScanner) hex(bits int) (uint64, bool) {
	if rest := sc.s[sc.pos:]; len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		if _, ok := hexDigit(rest[2]); ok {
			sc.pos += 2
		}
	}
	var v uint64
	n := 0
	for ; !sc.done(); sc.pos++ {
		d, ok := hexDigit(sc.s[sc.pos])
		if !ok {
			break
		}
		v = v<<4 | uint64(d)
		n++
	}
	if n == 0 || n > bits/4 {
		return 0, false
	}
	return v, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
