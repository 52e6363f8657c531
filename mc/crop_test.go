package mc

import "testing"

func TestRectCropContains(t *testing.T) {
	crop := &WorldCrop{
		Type: CropRect,
		MinX: -100, HasMinX: true,
		MaxX: 100, HasMaxX: true,
		MinZ: 0, HasMinZ: true,
		MaxZ: 200, HasMaxZ: true,
	}
	tests := []struct {
		pos  BlockPos
		want bool
	}{
		{BlockPos{X: 0, Y: 64, Z: 100}, true},
		{BlockPos{X: -100, Y: 64, Z: 0}, true},
		{BlockPos{X: 100, Y: 64, Z: 200}, true},
		{BlockPos{X: -101, Y: 64, Z: 100}, false},
		{BlockPos{X: 0, Y: 64, Z: -1}, false},
		{BlockPos{X: 101, Y: 64, Z: 0}, false},
	}
	for _, tt := range tests {
		if got := crop.ContainsBlock(tt.pos); got != tt.want {
			t.Errorf("ContainsBlock(%v) = %v, want %v", tt.pos, got, tt.want)
		}
	}

	if !crop.ContainsChunk(ChunkPos{X: 6, Z: 12}) {
		t.Error("chunk partially inside the bounds should be contained")
	}
	if crop.ContainsChunk(ChunkPos{X: 7, Z: 0}) {
		t.Error("chunk starting at x=112 is fully outside max x 100")
	}
	if !crop.ContainsRegion(RegionPos{X: 0, Z: 0}) {
		t.Error("region overlapping the bounds should be contained")
	}
	if crop.ContainsRegion(RegionPos{X: 2, Z: 0}) {
		t.Error("region starting at x=1024 is fully outside max x 100")
	}
}

func TestCircleCropContains(t *testing.T) {
	crop := &WorldCrop{Type: CropCircle, CenterX: 0, CenterZ: 0, Radius: 50}
	if !crop.ContainsBlock(BlockPos{X: 30, Y: 0, Z: 40}) {
		t.Error("block at distance 50 should be contained")
	}
	if crop.ContainsBlock(BlockPos{X: 31, Y: 0, Z: 40}) {
		t.Error("block outside the radius should not be contained")
	}
	// chunk touching the circle only at its corner
	if !crop.ContainsChunk(ChunkPos{X: 2, Z: 2}) {
		t.Error("chunk with corner inside the circle should be contained")
	}
	if crop.ContainsChunk(ChunkPos{X: 4, Z: 4}) {
		t.Error("chunk fully outside the circle should not be contained")
	}
}

func TestCropVerticalBounds(t *testing.T) {
	crop := &WorldCrop{Type: CropRect, MinY: 0, HasMinY: true, MaxY: 100, HasMaxY: true}
	if crop.ContainsBlock(BlockPos{X: 0, Y: -1, Z: 0}) {
		t.Error("block below min y should not be contained")
	}
	if crop.ContainsBlock(BlockPos{X: 0, Y: 101, Z: 0}) {
		t.Error("block above max y should not be contained")
	}
	if !crop.ContainsBlock(BlockPos{X: 0, Y: 100, Z: 0}) {
		t.Error("block at max y should be contained")
	}
	minY, maxY := crop.BlockBounds()
	if minY != 0 || maxY != 100 {
		t.Errorf("BlockBounds() = %d,%d, want 0,100", minY, maxY)
	}
}

func TestCropDefaults(t *testing.T) {
	var crop *WorldCrop
	if !crop.ContainsBlock(BlockPos{X: 1 << 20, Y: 0, Z: -(1 << 20)}) {
		t.Error("nil crop must contain everything")
	}
	minY, maxY := crop.BlockBounds()
	if minY != MinY || maxY != MaxY {
		t.Errorf("BlockBounds() = %d,%d, want world bounds", minY, maxY)
	}
	if crop.Centered() {
		t.Error("nil crop is not centered")
	}
}

func TestCropCentered(t *testing.T) {
	tests := []struct {
		name string
		crop WorldCrop
		want bool
	}{
		{"circle", WorldCrop{Type: CropCircle, Radius: 10}, true},
		{"bounded rect", WorldCrop{
			Type: CropRect,
			MinX: -1, HasMinX: true, MaxX: 1, HasMaxX: true,
			MinZ: -1, HasMinZ: true, MaxZ: 1, HasMaxZ: true,
		}, true},
		{"half open rect", WorldCrop{Type: CropRect, MinX: -1, HasMinX: true}, false},
		{"no crop", WorldCrop{Type: CropNone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.crop.Centered(); got != tt.want {
				t.Errorf("Centered() = %v, want %v", got, tt.want)
			}
		})
	}
}
