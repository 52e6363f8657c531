package quarry

import (
	"errors"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
)

// sideRenderer draws the world face-on, looking along +z. Screen rows count
// downward from y=0, so tile row ty covers blocks y in (-ty-1, -ty] scaled by
// the tile height. Each pixel square shows the nearest visible block in its
// (x, y) lane.
type sideRenderer struct {
	images    *BlockImages
	cache     *mc.WorldCache
	tileWidth int

	// chunk z range of the world, fixed at construction; columns scan it
	// front to back
	zMin, zMax int
	chunkWarner
}

func newSideRenderer(images *BlockImages, cache *mc.WorldCache, tileWidth int) TileRenderer {
	r := &sideRenderer{images: images, cache: cache, tileWidth: tileWidth, zMin: 1, zMax: 0}
	for _, cpos := range cache.World().Chunks() {
		if r.zMin > r.zMax {
			r.zMin, r.zMax = cpos.Z, cpos.Z
			continue
		}
		r.zMin = min(r.zMin, cpos.Z)
		r.zMax = max(r.zMax, cpos.Z)
	}
	return r
}

func (r *sideRenderer) RenderTile(pos TilePos) (*rgba.Image, error) {
	s := r.images.TextureSize()
	blocks := TileBlocks(r.tileWidth)
	width, height := ViewSide.TileSize(s, r.tileWidth)
	img := rgba.New(width, height)
	if r.zMin > r.zMax {
		return img, nil
	}

	for by := 0; by < blocks; by++ {
		y := -(blocks*pos.Y + by)
		for bx := 0; bx < blocks; bx++ {
			r.renderLane(img, blocks*pos.X+bx, y, bx*s, by*s)
		}
	}
	return img, nil
}

// renderLane scans one (x, y) lane front to back and draws the first visible
// block. There is no depth dive; whatever is in front wins the pixel square.
func (r *sideRenderer) renderLane(img *rgba.Image, x, y, px, py int) {
	for cz := r.zMin; cz <= r.zMax; cz++ {
		cpos := mc.ChunkPos{X: x >> 4, Z: cz}
		chunk, err := r.cache.Chunk(cpos)
		if err != nil {
			if !errors.Is(err, mc.ErrChunkNotFound) {
				r.warnChunk(cpos, err)
			}
			continue
		}
		cMin, cMax := chunk.YBounds()
		if chunk.Empty() || y < cMin || y > cMax {
			continue
		}

		for lz := 0; lz < 16; lz++ {
			bpos := mc.BlockPos{X: x, Y: y, Z: cz*16 + lz}
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
				layer = r.images.Tinted(id, FaceAll, r.images.TintColor(sprite.Tint, chunk.Biome(bpos)))
			}
			img.AlphaBlit(layer, px, py)
			return
		}
	}
}
