package kernel

import (
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
)

// FormatPlaceholder is replaced by the WGSL storage format name when a
// kernel source is specialised for a context's pixel format.
const FormatPlaceholder = "$FORMAT"

// Tile placeholders are replaced by the context's tile size, so that
// `@workgroup_size($TILE_W, $TILE_H)` matches the dispatch grid.
const (
	TileWidthPlaceholder  = "$TILE_W"
	TileHeightPlaceholder = "$TILE_H"
)

// StorageFormat returns the WGSL texel format name for a storage texture of
// format f. Only formats usable as write-only storage on all backends are
// accepted.
func StorageFormat(f gputypes.TextureFormat) (string, bool) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return "rgba8unorm", true
	case gputypes.TextureFormatRGBA16Float:
		return "rgba16float", true
	case gputypes.TextureFormatRGBA32Float:
		return "rgba32float", true
	default:
		return "", false
	}
}

// Specialize substitutes the storage format name of f and the tile size
// into wgsl. A placeholder is left in place when its value is unusable: an
// unsupported format or a zero tile dimension. Sources without
// placeholders are returned unchanged.
func Specialize(wgsl string, f gputypes.TextureFormat, tileW, tileH uint32) string {
	var pairs []string
	if name, ok := StorageFormat(f); ok {
		pairs = append(pairs, FormatPlaceholder, name)
	}
	if tileW > 0 {
		pairs = append(pairs, TileWidthPlaceholder, strconv.FormatUint(uint64(tileW), 10))
	}
	if tileH > 0 {
		pairs = append(pairs, TileHeightPlaceholder, strconv.FormatUint(uint64(tileH), 10))
	}
	if len(pairs) == 0 {
		return wgsl
	}
	return strings.NewReplacer(pairs...).Replace(wgsl)
}

// FixedWorkgroup reports whether wgsl declares a workgroup size without the
// tile placeholders.
func FixedWorkgroup(wgsl string) bool {
	return strings.Contains(wgsl, "@workgroup_size") &&
		(!strings.Contains(wgsl, TileWidthPlaceholder) || !strings.Contains(wgsl, TileHeightPlaceholder))
}
