package mc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
)

// Chunks older than 21w43a (1.18) keep their sections under the legacy
// "Level" compound and are not supported.
const minDataVersion = 2844

// Heightmap kinds the game maintains that are useful for rendering.
const (
	HeightMotionBlocking = "MOTION_BLOCKING"
	HeightOceanFloor     = "OCEAN_FLOOR"
	HeightWorldSurface   = "WORLD_SURFACE"
)

// statusRendered reports whether a generation status means the chunk has all
// of its final blocks. Proto-chunks are kept but expose no blocks.
func statusRendered(status string) bool {
	switch strings.TrimPrefix(status, "minecraft:") {
	case "full", "spawn", "postprocessed", "fullchunk", "mobs_spawned":
		return true
	}
	return false
}

// Chunk is a decoded 16x16 block column. Positions handed to the accessors
// are in query space: a rotated region exposes the chunk at its rotated
// position and block lookups un-rotate internally, so callers never deal in
// on-disk coordinates.
//
// A chunk is not safe for concurrent use; sections decode lazily on first
// access.
type Chunk struct {
	Pos       ChunkPos
	Timestamp uint32

	registry *BlockRegistry
	rotation int
	unrotate int
	crop     *WorldCrop

	inner    save.Chunk
	sections map[int]*chunkSection
	heights  map[string]*level.BitStorage
	minY     int
	maxY     int
}

type chunkSection struct {
	blocks     *level.BitStorage
	palette    []BlockID
	biomes     *level.BitStorage
	biomeNames []string
}

// DecodeChunk parses uncompressed chunk NBT and prepares it for block
// queries under the given rotation and crop. NBT decode failures map to
// ErrChunkNBT, schema problems to ErrChunkInvalid.
func DecodeChunk(raw []byte, registry *BlockRegistry, rotation int, crop *WorldCrop) (*Chunk, error) {
	c := &Chunk{
		registry: registry,
		rotation: rotation & 3,
		unrotate: (4 - rotation) & 3,
		crop:     crop,
		sections: make(map[int]*chunkSection),
		heights:  make(map[string]*level.BitStorage),
	}
	if err := nbt.Unmarshal(raw, &c.inner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkNBT, err)
	}
	if c.inner.DataVersion < minDataVersion {
		return nil, fmt.Errorf("%w: unsupported data version %d", ErrChunkInvalid, c.inner.DataVersion)
	}
	if !statusRendered(c.inner.Status) {
		c.inner.Sections = nil
	}
	c.Pos = ChunkPos{X: int(c.inner.XPos), Z: int(c.inner.ZPos)}.Rotate(c.rotation)

	lo, hi := crop.BlockBounds()
	c.minY, c.maxY = 0, -1
	for i := range c.inner.Sections {
		s := &c.inner.Sections[i]
		if len(s.BlockStates.Palette) == 0 {
			continue
		}
		bottom, top := int(s.Y)*16, int(s.Y)*16+15
		if c.minY > c.maxY {
			c.minY, c.maxY = bottom, top
			continue
		}
		c.minY = min(c.minY, bottom)
		c.maxY = max(c.maxY, top)
	}
	if c.minY <= c.maxY {
		c.minY = max(c.minY, lo)
		c.maxY = min(c.maxY, hi)
	}
	return c, nil
}

// Empty reports whether no block query can return anything but air.
func (c *Chunk) Empty() bool {
	return c.minY > c.maxY
}

// YBounds returns the vertical block range that may contain non-air blocks,
// already narrowed by the crop. An empty chunk returns minY > maxY.
func (c *Chunk) YBounds() (minY, maxY int) {
	return c.minY, c.maxY
}

// BlockID returns the interned id of the block at pos, or 0 (air) outside
// the decoded sections or outside the world crop.
func (c *Chunk) BlockID(pos BlockPos) BlockID {
	if pos.Y < c.minY || pos.Y > c.maxY {
		return 0
	}
	orig := pos.Rotate(c.unrotate)
	if c.crop != nil && !c.crop.ContainsBlock(orig) {
		return 0
	}
	sec := c.sectionFor(pos.Y >> 4)
	if sec == nil {
		return 0
	}
	idx := sec.blocks.Get(((pos.Y&15)*16+orig.LocalZ())*16 + orig.LocalX())
	if idx >= len(sec.palette) {
		return 0
	}
	return sec.palette[idx]
}

// Biome returns the biome resource name governing pos, or "" when the chunk
// carries no biome data there. Biomes are stored per 4x4x4 cell.
func (c *Chunk) Biome(pos BlockPos) string {
	sec := c.sectionFor(pos.Y >> 4)
	if sec == nil || sec.biomes == nil {
		return ""
	}
	orig := pos.Rotate(c.unrotate)
	cy, cz, cx := (pos.Y&15)>>2, orig.LocalZ()>>2, orig.LocalX()>>2
	idx := sec.biomes.Get((cy*4+cz)*4 + cx)
	if idx >= len(sec.biomeNames) {
		return ""
	}
	return sec.biomeNames[idx]
}

// HeightAt returns the y of the highest block counted by the named heightmap
// in the column of pos, or minY-1 when the column is empty or the map is
// missing.
func (c *Chunk) HeightAt(kind string, pos BlockPos) int {
	hm := c.heightmap(kind)
	if hm == nil {
		return c.minY - 1
	}
	orig := pos.Rotate(c.unrotate)
	v := hm.Get(orig.LocalZ()*16 + orig.LocalX())
	if v == 0 {
		return c.minY - 1
	}
	top := int(c.inner.YPos)*16 + v - 1
	if top > c.maxY {
		top = c.maxY
	}
	return top
}

// TopY returns the y of the highest non-air block in the column of pos,
// starting from the world-surface heightmap when present. Returns minY-1 for
// an empty column.
func (c *Chunk) TopY(pos BlockPos) int {
	y := c.HeightAt(HeightWorldSurface, pos)
	if y < c.minY {
		y = c.maxY
	}
	for ; y >= c.minY; y-- {
		if c.BlockID(BlockPos{X: pos.X, Y: y, Z: pos.Z}) != 0 {
			return y
		}
	}
	return c.minY - 1
}

// EachBlock calls fn for every non-air block, section by section from the
// bottom. Positions are absolute and in query space.
func (c *Chunk) EachBlock(fn func(BlockPos, BlockID)) {
	origPos := c.Pos.Rotate(c.unrotate)
	var ys []int
	for i := range c.inner.Sections {
		if len(c.inner.Sections[i].BlockStates.Palette) > 0 {
			ys = append(ys, int(c.inner.Sections[i].Y))
		}
	}
	sort.Ints(ys)
	for _, sy := range ys {
		sec := c.sectionFor(sy)
		if sec == nil {
			continue
		}
		for ly := 0; ly < 16; ly++ {
			y := sy*16 + ly
			if y < c.minY || y > c.maxY {
				continue
			}
			for z := 0; z < 16; z++ {
				for x := 0; x < 16; x++ {
					idx := sec.blocks.Get(((ly*16)+z)*16 + x)
					if idx >= len(sec.palette) || sec.palette[idx] == 0 {
						continue
					}
					orig := origPos.Block(x, y, z)
					if c.crop != nil && !c.crop.ContainsBlock(orig) {
						continue
					}
					fn(orig.Rotate(c.rotation), sec.palette[idx])
				}
			}
		}
	}
}

func (c *Chunk) sectionFor(sy int) *chunkSection {
	if sec, ok := c.sections[sy]; ok {
		return sec
	}
	var sec *chunkSection
	for i := range c.inner.Sections {
		s := &c.inner.Sections[i]
		if int(s.Y) != sy || len(s.BlockStates.Palette) == 0 {
			continue
		}
		sec = &chunkSection{palette: make([]BlockID, len(s.BlockStates.Palette))}
		for j, state := range s.BlockStates.Palette {
			sec.palette[j] = c.registry.ID(NewBlockState(state.Name, statePropertiesMap(state.Properties)))
		}
		sec.blocks = storageFor(16*16*16, s.BlockStates.Data)
		if len(s.Biomes.Palette) > 0 {
			sec.biomeNames = make([]string, len(s.Biomes.Palette))
			for j, b := range s.Biomes.Palette {
				sec.biomeNames[j] = string(b)
			}
			sec.biomes = storageFor(4*4*4, s.Biomes.Data)
		}
		break
	}
	c.sections[sy] = sec
	return sec
}

func (c *Chunk) heightmap(kind string) *level.BitStorage {
	if hm, ok := c.heights[kind]; ok {
		return hm
	}
	var hm *level.BitStorage
	if data := c.inner.Heightmaps[kind]; len(data) > 0 {
		hm = storageFor(16*16, data)
	}
	c.heights[kind] = hm
	return hm
}

// storageFor builds the packed index storage for length values, deriving the
// bit width from the data size. Data whose size does not round-trip that
// derivation is dropped (every index reads zero) instead of being allowed to
// panic inside the storage.
func storageFor(length int, data []uint64) *level.BitStorage {
	bits := calcBitsPerValue(length, len(data))
	if bits > 0 {
		valuesPerLong := 64 / bits
		if (length+valuesPerLong-1)/valuesPerLong != len(data) {
			bits, data = 0, nil
		}
	}
	return level.NewBitStorage(bits, length, data)
}

func calcBitsPerValue(length, longs int) (bits int) {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}

func statePropertiesMap(msg nbt.RawMessage) map[string]string {
	props := map[string]string{}
	if msg.Type == nbt.TagEnd {
		return props
	}
	if err := msg.Unmarshal(&props); err != nil {
		return map[string]string{}
	}
	return props
}
