package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gs-texreplace/internal/texture"
)

func main() {
	encode := flag.Bool("encode", false, "Print the filename for the given fields instead of parsing arguments")
	hash := flag.String("hash", "0", "Texture hash (hex)")
	clut := flag.String("clut", "0", "CLUT hash (hex)")
	region := flag.String("region", "0", "Region override (hex)")
	psm := flag.Uint("psm", texture.PSMCT32, "Pixel storage mode")
	tw := flag.Uint("tw", 0, "log2 width")
	th := flag.Uint("th", 0, "log2 height")
	tcc := flag.Bool("tcc", false, "Texture has an alpha component")
	ext := flag.String("ext", "png", "Extension of the printed filename")
	flag.Parse()

	if *encode {
		d := texture.TextureDescriptor{
			Hash:     mustHex(*hash, 64),
			CLUTHash: mustHex(*clut, 64),
			Region:   uint32(mustHex(*region, 32)),
			PSM:      uint8(*psm),
			TW:       uint8(*tw),
			TH:       uint8(*th),
			TCC:      *tcc,
		}
		fmt.Println(texture.Encode(d).Filename(*ext))
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: texname [-encode fields] file...")
		os.Exit(2)
	}

	bad := 0
	for _, arg := range flag.Args() {
		key, ok := texture.Decode(filepath.Base(arg))
		if !ok {
			fmt.Printf("%s: not a replacement name\n", arg)
			bad++
			continue
		}
		f := key.Format
		fmt.Printf("%s:\n", arg)
		fmt.Printf("  Hash:   %016X\n", key.Hash)
		if key.HasPalette() {
			fmt.Printf("  CLUT:   %016X (CPSM %#x)\n", key.CLUTHash, f.CPSM())
		}
		if key.HasRegion() {
			fmt.Printf("  Region: %08X\n", key.Region)
		}
		fmt.Printf("  Format: %08X  PSM=%#02x %dx%d TCC=%v TFX=%d\n", uint32(f), f.PSM(), f.Width(), f.Height(), f.TCC(), f.TFX())
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func mustHex(s string, bits int) uint64 {
	v, err := strconv.ParseUint(s, 16, bits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad hex value %q: %v\n", s, err)
		os.Exit(2)
	}
	return v
}
