package quarry

import (
	"fmt"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
)

// View selects one of the fixed map projections. The view decides how large a
// tile is in pixels, which tiles a chunk can possibly mark dirty, and which
// renderer implementation draws a tile.
type View int

const (
	// ViewIsometric draws 2:1 dimetric block sprites with three visible faces.
	ViewIsometric View = iota
	// ViewTopdown draws one flat pixel square per block column, seen from above.
	ViewTopdown
	// ViewSide draws the world face-on along the z axis.
	ViewSide
)

func ParseView(name string) (View, error) {
	switch name {
	case "isometric":
		return ViewIsometric, nil
	case "topdown":
		return ViewTopdown, nil
	case "side":
		return ViewSide, nil
	}
	return 0, fmt.Errorf("unknown view %q (expected isometric, topdown or side)", name)
}

func (v View) String() string {
	switch v {
	case ViewIsometric:
		return "isometric"
	case ViewTopdown:
		return "topdown"
	case ViewSide:
		return "side"
	}
	return fmt.Sprintf("view(%d)", int(v))
}

// TileBlocks returns the edge length of one tile in blocks.
func TileBlocks(tileWidth int) int {
	return 16 * tileWidth
}

// TileSize returns the pixel dimensions of one tile at the given texture size.
// Isometric tiles are taller than half their width because every block sprite
// hangs its two side faces below the top face.
func (v View) TileSize(textureSize, tileWidth int) (int, int) {
	blocks := TileBlocks(tileWidth)
	if v == ViewIsometric {
		return 2 * textureSize * blocks, (textureSize + textureSize/2) * blocks
	}
	return textureSize * blocks, textureSize * blocks
}

// NewRenderer builds the tile renderer for this view. Each render worker gets
// its own renderer so chunk caches are never shared across goroutines.
func (v View) NewRenderer(images *BlockImages, cache *mc.WorldCache, tileWidth int) TileRenderer {
	switch v {
	case ViewTopdown:
		return newTopdownRenderer(images, cache, tileWidth)
	case ViewSide:
		return newSideRenderer(images, cache, tileWidth)
	default:
		return newIsometricRenderer(images, cache, tileWidth)
	}
}

// TileRenderer draws one base tile of the pyramid in world tile coordinates.
type TileRenderer interface {
	RenderTile(pos TilePos) (*rgba.Image, error)
}

// chunkTiles calls fn for every world tile position the given chunk can draw
// into. minY and maxY bound the blocks the world may populate; the isometric
// projection smears a chunk across one tile column per 2*tileWidth chunks and
// one tile row per unit of height, so the spans here are intentionally
// conservative rather than probed per chunk.
func (v View) chunkTiles(pos mc.ChunkPos, tileWidth, minY, maxY int, fn func(TilePos)) {
	blocks := TileBlocks(tileWidth)
	switch v {
	case ViewTopdown:
		txLo := floorDiv(pos.X*16, blocks)
		txHi := floorDiv(pos.X*16+15, blocks)
		tyLo := floorDiv(pos.Z*16, blocks)
		tyHi := floorDiv(pos.Z*16+15, blocks)
		for ty := tyLo; ty <= tyHi; ty++ {
			for tx := txLo; tx <= txHi; tx++ {
				fn(TilePos{X: tx, Y: ty})
			}
		}
	case ViewSide:
		txLo := floorDiv(pos.X*16, blocks)
		txHi := floorDiv(pos.X*16+15, blocks)
		tyLo := floorDiv(-maxY, blocks)
		tyHi := floorDiv(-minY, blocks)
		for ty := tyLo; ty <= tyHi; ty++ {
			for tx := txLo; tx <= txHi; tx++ {
				fn(TilePos{X: tx, Y: ty})
			}
		}
	default:
		// column d = x+z advances one unit per block step east or south, row
		// u = x-z-y advances down-screen. sprites are two columns wide and
		// three rows tall, so neighbouring tiles share a one-column seam on
		// the left and a two-row seam on the top.
		dLo := 16 * (pos.X + pos.Z)
		dHi := dLo + 30
		uLo := 16*(pos.X-pos.Z) - 15 - maxY
		uHi := 16*(pos.X-pos.Z) + 15 - minY
		txLo := ceilDiv(dLo+1, 2*blocks) - 1
		txHi := floorDiv(dHi+1, 2*blocks)
		tyLo := ceilDiv(uLo+1, 3*blocks) - 1
		tyHi := floorDiv(uHi+2, 3*blocks)
		for ty := tyLo; ty <= tyHi; ty++ {
			for tx := txLo; tx <= txHi; tx++ {
				fn(TilePos{X: tx, Y: ty})
			}
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
