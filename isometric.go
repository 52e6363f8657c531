package quarry

import (
	"errors"
	"log"
	"sort"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
)

// renderBlock is one queued sprite blit. x, y are tile pixels; w orders the
// painter back to front.
type renderBlock struct {
	x, y int
	w    int
	id   mc.BlockID
	img  *rgba.Image
}

// chunkWarner logs each broken chunk once per renderer so a corrupt region
// does not flood the log with one line per block lookup.
type chunkWarner struct {
	warned map[mc.ChunkPos]struct{}
}

func (cw *chunkWarner) warnChunk(pos mc.ChunkPos, err error) {
	if _, ok := cw.warned[pos]; ok {
		return
	}
	if cw.warned == nil {
		cw.warned = map[mc.ChunkPos]struct{}{}
	}
	cw.warned[pos] = struct{}{}
	log.Printf("[render] failed to read chunk %d,%d: %s", pos.X, pos.Z, err)
}

// isometricRenderer draws the diamond projection. Blocks project onto screen
// columns d = x+z and rows u = x-z-y; within a column the depth w = x-z+2y
// is constant along the row iterator (x+1, z-1, y-1), so a tile renders by
// walking every (d, w) path through its pixel window, queueing the visible
// blocks and painting them in ascending depth.
type isometricRenderer struct {
	images    *BlockImages
	cache     *mc.WorldCache
	tileWidth int

	opaque []renderBlock
	trans  []renderBlock
	chunkWarner
}

func newIsometricRenderer(images *BlockImages, cache *mc.WorldCache, tileWidth int) TileRenderer {
	return &isometricRenderer{images: images, cache: cache, tileWidth: tileWidth}
}

func (r *isometricRenderer) RenderTile(pos TilePos) (*rgba.Image, error) {
	blocks := TileBlocks(r.tileWidth)
	width, height := ViewIsometric.TileSize(r.images.TextureSize(), r.tileWidth)
	img := rgba.New(width, height)

	yMin, yMax := r.cache.World().Crop().BlockBounds()
	baseU := 3 * blocks * pos.Y
	// sprites are two columns wide and three rows tall, so the windows
	// reach one column left and two rows up for the seam blocks
	uMin, uMax := baseU-2, baseU+3*blocks-1

	r.opaque, r.trans = r.opaque[:0], r.trans[:0]
	for dd := -1; dd < 2*blocks; dd++ {
		d := 2*blocks*pos.X + dd
		wLo, wHi := uMin+3*yMin, uMax+3*yMax
		if (wLo-d)&1 != 0 {
			wLo++
		}
		for w := wLo; w <= wHi; w += 2 {
			r.collectPath(d, w, dd*r.images.TextureSize(), baseU, uMin, uMax, yMin, yMax)
		}
	}

	sortRenderBlocks(r.opaque)
	sortRenderBlocks(r.trans)
	for _, rb := range r.opaque {
		img.SimpleBlit(rb.img, rb.x, rb.y)
	}
	for _, rb := range r.trans {
		img.AlphaBlit(rb.img, rb.x, rb.y)
	}
	return img, nil
}

// collectPath walks one constant-depth diagonal through the tile's row
// window and queues every visible block on it. Missing or empty chunks are
// skipped in whole chunk-crossing steps instead of block by block.
func (r *isometricRenderer) collectPath(d, w, drawX, baseU, uMin, uMax, yMin, yMax int) {
	s := r.images.TextureSize()

	u := uMin
	if low := w - 3*yMax; low > u {
		u = low
	}
	if rem := ((u-w)%3 + 3) % 3; rem != 0 {
		u += 3 - rem
	}
	end := uMax
	if high := w - 3*yMin; high < end {
		end = high
	}
	if u > end {
		return
	}

	y := (w - u) / 3
	x := (d + w - 2*y) / 2
	z := d - x

	for u <= end {
		// steps until the row iterator leaves the current chunk column
		n := min(15-(x&15), z&15) + 1
		cpos := mc.ChunkPos{X: x >> 4, Z: z >> 4}
		chunk, err := r.cache.Chunk(cpos)
		switch {
		case err != nil:
			if !errors.Is(err, mc.ErrChunkNotFound) {
				r.warnChunk(cpos, err)
			}
		case chunk.Empty():
		default:
			cMin, cMax := chunk.YBounds()
			if y > cMax {
				n = min(n, y-cMax)
			} else if y >= cMin {
				bpos := mc.BlockPos{X: x, Y: y, Z: z}
				if id := chunk.BlockID(bpos); id != 0 {
					r.queueBlock(bpos, id, chunk, drawX, (u-baseU)*s/2, w)
				}
				n = 1
			}
		}
		u, x, y, z = u+3*n, x+n, y-n, z-n
	}
}

// queueBlock culls the faces hidden by opaque neighbours, resolves the biome
// tint and appends the blit to the matching paint phase.
func (r *isometricRenderer) queueBlock(pos mc.BlockPos, id mc.BlockID, chunk *mc.Chunk, drawX, drawY, w int) {
	faces := FaceAll
	if r.images.Opaque(r.cache.BlockID(mc.BlockPos{X: pos.X, Y: pos.Y + 1, Z: pos.Z})) {
		faces &^= FaceTop
	}
	if r.images.Opaque(r.cache.BlockID(mc.BlockPos{X: pos.X, Y: pos.Y, Z: pos.Z - 1})) {
		faces &^= FaceLeft
	}
	if r.images.Opaque(r.cache.BlockID(mc.BlockPos{X: pos.X + 1, Y: pos.Y, Z: pos.Z})) {
		faces &^= FaceRight
	}
	if faces == 0 {
		return
	}

	sprite := r.images.Sprite(id, faces)
	if sprite == nil {
		return
	}
	img := sprite.Image
	if sprite.Tint != TintNone {
		img = r.images.Tinted(id, faces, r.images.TintColor(sprite.Tint, chunk.Biome(pos)))
	}

	rb := renderBlock{x: drawX, y: drawY, w: w, id: id, img: img}
	if sprite.Transparent {
		r.trans = append(r.trans, rb)
	} else {
		r.opaque = append(r.opaque, rb)
	}
}

// sortRenderBlocks orders a paint phase back to front; equal depths never
// overlap on screen, so the id tie-break only keeps the order deterministic.
func sortRenderBlocks(queue []renderBlock) {
	sort.Slice(queue, func(i, j int) bool {
		if queue[i].w != queue[j].w {
			return queue[i].w < queue[j].w
		}
		return queue[i].id < queue[j].id
	})
}
