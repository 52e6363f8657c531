package quarry

import (
	"errors"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
)

// topdownDepthCap bounds how many transparent layers a single column blends
// before giving up on finding an opaque floor.
const topdownDepthCap = 32

// topdownRenderer draws one flat square per block column. Columns start at
// the surface heightmap and dive through transparent blocks until something
// opaque ends the stack, so glass and water show the ground under them.
type topdownRenderer struct {
	images    *BlockImages
	cache     *mc.WorldCache
	tileWidth int

	stack []*rgba.Image
	chunkWarner
}

func newTopdownRenderer(images *BlockImages, cache *mc.WorldCache, tileWidth int) TileRenderer {
	return &topdownRenderer{images: images, cache: cache, tileWidth: tileWidth}
}

func (r *topdownRenderer) RenderTile(pos TilePos) (*rgba.Image, error) {
	s := r.images.TextureSize()
	width, height := ViewTopdown.TileSize(s, r.tileWidth)
	img := rgba.New(width, height)

	for cz := 0; cz < r.tileWidth; cz++ {
		for cx := 0; cx < r.tileWidth; cx++ {
			cpos := mc.ChunkPos{X: r.tileWidth*pos.X + cx, Z: r.tileWidth*pos.Y + cz}
			chunk, err := r.cache.Chunk(cpos)
			if err != nil {
				if !errors.Is(err, mc.ErrChunkNotFound) {
					r.warnChunk(cpos, err)
				}
				continue
			}
			if chunk.Empty() {
				continue
			}
			for lz := 0; lz < 16; lz++ {
				for lx := 0; lx < 16; lx++ {
					col := mc.BlockPos{X: cpos.X*16 + lx, Z: cpos.Z*16 + lz}
					r.renderColumn(img, chunk, col, (cx*16+lx)*s, (cz*16+lz)*s)
				}
			}
		}
	}
	return img, nil
}

// renderColumn collects the visible layer stack top-down, then blends it
// bottom-up into the tile so upper transparent layers end up on top.
func (r *topdownRenderer) renderColumn(img *rgba.Image, chunk *mc.Chunk, col mc.BlockPos, px, py int) {
	cMin, _ := chunk.YBounds()
	top := chunk.TopY(col)
	if top < cMin {
		return
	}

	r.stack = r.stack[:0]
	for y := top; y >= cMin && len(r.stack) < topdownDepthCap; y-- {
		bpos := mc.BlockPos{X: col.X, Y: y, Z: col.Z}
		id := chunk.BlockID(bpos)
		if id == 0 {
			continue
		}
		sprite := r.images.Sprite(id, FaceAll)
		if sprite == nil {
			continue
		}

		layer := sprite.Image
		if sprite.Tint != TintNone {
			tint := r.images.TintColor(sprite.Tint, chunk.Biome(bpos))
			if sprite.Tint == TintWater {
				// deeper water columns read darker, like a bathymetric map
				if d := (y - chunk.HeightAt(mc.HeightOceanFloor, col)) * 8; d > 0 {
					if d > 128 {
						d = 128
					}
					tint = tint.AddClamp(-d, -d, -d)
				}
			}
			layer = r.images.Tinted(id, FaceAll, tint)
		}

		r.stack = append(r.stack, layer)
		if !sprite.Transparent {
			break
		}
	}

	for i := len(r.stack) - 1; i >= 0; i-- {
		img.AlphaBlit(r.stack[i], px, py)
	}
}
