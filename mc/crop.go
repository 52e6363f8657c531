package mc

import "math"

// CropType selects the shape of a world crop.
type CropType int

const (
	CropNone CropType = iota
	CropRect
	CropCircle
)

// WorldCrop limits a world to a rectangular or circular area, in unrotated
// block coordinates, with optional vertical bounds. Chunks and regions that
// intersect the area are still loaded; blocks outside it read as air.
type WorldCrop struct {
	Type CropType

	// rectangle bounds, each optional
	MinX, MaxX, MinZ, MaxZ int
	HasMinX, HasMaxX       bool
	HasMinZ, HasMaxZ       bool

	// circle
	CenterX, CenterZ, Radius int

	MinY, MaxY       int
	HasMinY, HasMaxY bool
}

// Centered reports whether rendered output should be translated so the crop
// area sits at the map origin: circular crops always, rectangular ones only
// when bounded on both axes.
func (c *WorldCrop) Centered() bool {
	if c == nil {
		return false
	}
	switch c.Type {
	case CropCircle:
		return true
	case CropRect:
		return c.HasMinX && c.HasMaxX && c.HasMinZ && c.HasMaxZ
	}
	return false
}

// BlockBounds returns the effective vertical block range.
func (c *WorldCrop) BlockBounds() (minY, maxY int) {
	minY, maxY = MinY, MaxY
	if c != nil && c.HasMinY {
		minY = c.MinY
	}
	if c != nil && c.HasMaxY {
		maxY = c.MaxY
	}
	return
}

func (c *WorldCrop) rectContains(minX, maxX, minZ, maxZ int) bool {
	if c.HasMinX && maxX < c.MinX {
		return false
	}
	if c.HasMaxX && minX > c.MaxX {
		return false
	}
	if c.HasMinZ && maxZ < c.MinZ {
		return false
	}
	if c.HasMaxZ && minZ > c.MaxZ {
		return false
	}
	return true
}

func (c *WorldCrop) circleIntersects(minX, maxX, minZ, maxZ int) bool {
	// clamp the center onto the box and compare the remaining distance
	x := math.Min(math.Max(float64(c.CenterX), float64(minX)), float64(maxX))
	z := math.Min(math.Max(float64(c.CenterZ), float64(minZ)), float64(maxZ))
	dx := float64(c.CenterX) - x
	dz := float64(c.CenterZ) - z
	return dx*dx+dz*dz <= float64(c.Radius)*float64(c.Radius)
}

func (c *WorldCrop) containsBox(minX, maxX, minZ, maxZ int) bool {
	if c == nil {
		return true
	}
	switch c.Type {
	case CropRect:
		return c.rectContains(minX, maxX, minZ, maxZ)
	case CropCircle:
		return c.circleIntersects(minX, maxX, minZ, maxZ)
	}
	return true
}

// ContainsRegion reports whether any part of the region lies in the crop area.
func (c *WorldCrop) ContainsRegion(pos RegionPos) bool {
	return c.containsBox(pos.X<<9, pos.X<<9+511, pos.Z<<9, pos.Z<<9+511)
}

// ContainsChunk reports whether any part of the chunk lies in the crop area.
func (c *WorldCrop) ContainsChunk(pos ChunkPos) bool {
	return c.containsBox(pos.X<<4, pos.X<<4+15, pos.Z<<4, pos.Z<<4+15)
}

// ContainsBlock tests a single block, including the vertical bounds.
func (c *WorldCrop) ContainsBlock(pos BlockPos) bool {
	if c == nil {
		return true
	}
	if c.HasMinY && pos.Y < c.MinY {
		return false
	}
	if c.HasMaxY && pos.Y > c.MaxY {
		return false
	}
	switch c.Type {
	case CropRect:
		return c.rectContains(pos.X, pos.X, pos.Z, pos.Z)
	case CropCircle:
		dx := pos.X - c.CenterX
		dz := pos.Z - c.CenterZ
		return dx*dx+dz*dz <= c.Radius*c.Radius
	}
	return true
}
