// Package mc reads Minecraft Java-edition worlds: anvil region files, chunk
// NBT, block states, and the entities that ride along with them. Coordinates
// can be rotated in quarter turns and cropped so the same world renders from
// four viewpoints without touching the files on disk.
package mc

// Vertical world bounds for modern anvil worlds (sections -4..19).
const (
	MinY = -64
	MaxY = 319
)

// BlockPos addresses a single block in world space.
type BlockPos struct {
	X, Y, Z int
}

// Chunk returns the chunk column containing the block.
func (p BlockPos) Chunk() ChunkPos {
	return ChunkPos{p.X >> 4, p.Z >> 4}
}

// LocalX and LocalZ are the block coordinates within its chunk.
func (p BlockPos) LocalX() int { return p.X & 15 }
func (p BlockPos) LocalZ() int { return p.Z & 15 }

// Rotate turns the position count quarter turns about the world origin.
// Cells stay aligned on the grid: one turn maps (x, z) to (z, -x-1).
func (p BlockPos) Rotate(count int) BlockPos {
	for i := 0; i < ((count%4)+4)%4; i++ {
		p.X, p.Z = p.Z, -p.X-1
	}
	return p
}

// ChunkPos addresses a 16x16 column of blocks.
type ChunkPos struct {
	X, Z int
}

// Region returns the region containing the chunk.
func (p ChunkPos) Region() RegionPos {
	return RegionPos{p.X >> 5, p.Z >> 5}
}

// Block returns the world position of a block local to this chunk.
func (p ChunkPos) Block(localX, y, localZ int) BlockPos {
	return BlockPos{p.X<<4 + localX, y, p.Z<<4 + localZ}
}

// HeaderIndex is the chunk's slot in its region file header. Region files
// are always addressed with unrotated coordinates.
func (p ChunkPos) HeaderIndex() int {
	return (p.Z&31)*32 + (p.X & 31)
}

// Rotate turns the chunk position count quarter turns about the origin.
func (p ChunkPos) Rotate(count int) ChunkPos {
	for i := 0; i < ((count%4)+4)%4; i++ {
		p.X, p.Z = p.Z, -p.X-1
	}
	return p
}

// RegionPos addresses a 32x32 square of chunks.
type RegionPos struct {
	X, Z int
}

// Chunk returns the world position of a chunk local to this region.
func (p RegionPos) Chunk(localX, localZ int) ChunkPos {
	return ChunkPos{p.X<<5 + localX, p.Z<<5 + localZ}
}

// Rotate turns the region position count quarter turns about the origin.
func (p RegionPos) Rotate(count int) RegionPos {
	for i := 0; i < ((count%4)+4)%4; i++ {
		p.X, p.Z = p.Z, -p.X-1
	}
	return p
}
