package quarry

import (
	"bytes"
	"compress/zlib"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/nbt"
	"github.com/b1naryth1ef/quarry/mc"
)

// Synthetic 1.18+ worlds for renderer and manager tests, assembled through
// the public mc API.

type testPaletteEntry struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties"`
}

type testBlockStates struct {
	Palette []testPaletteEntry `nbt:"palette"`
	Data    []uint64           `nbt:"data"`
}

type testBiomes struct {
	Palette []string `nbt:"palette"`
	Data    []uint64 `nbt:"data"`
}

type testSection struct {
	Y           int8            `nbt:"Y"`
	BlockStates testBlockStates `nbt:"block_states"`
	Biomes      testBiomes      `nbt:"biomes"`
}

type testChunkNBT struct {
	DataVersion int32               `nbt:"DataVersion"`
	XPos        int32               `nbt:"xPos"`
	YPos        int32               `nbt:"yPos"`
	ZPos        int32               `nbt:"zPos"`
	Status      string              `nbt:"Status"`
	Sections    []testSection       `nbt:"sections"`
	Heightmaps  map[string][]uint64 `nbt:"Heightmaps"`
}

type testBlock struct {
	x, y, z int
	state   testPaletteEntry
}

// testChunk assembles one synthetic chunk. Block x/z are chunk-local, y is
// absolute. The default stamp keeps timestamp comparisons predictable.
type testChunk struct {
	pos    mc.ChunkPos
	biome  string
	stamp  uint32
	blocks []testBlock
}

func newTestChunk(x, z int) *testChunk {
	return &testChunk{
		pos:   mc.ChunkPos{X: x, Z: z},
		biome: "minecraft:plains",
		stamp: 1000,
	}
}

func (c *testChunk) withBiome(name string) *testChunk {
	c.biome = name
	return c
}

func (c *testChunk) withStamp(stamp uint32) *testChunk {
	c.stamp = stamp
	return c
}

func (c *testChunk) set(x, y, z int, name string) *testChunk {
	return c.setState(x, y, z, name, nil)
}

func (c *testChunk) setState(x, y, z int, name string, props map[string]string) *testChunk {
	if props == nil {
		props = map[string]string{}
	}
	c.blocks = append(c.blocks, testBlock{x: x, y: y, z: z, state: testPaletteEntry{Name: name, Properties: props}})
	return c
}

// floor covers the whole chunk footprint with one state at the given height.
func (c *testChunk) floor(y int, name string) *testChunk {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			c.set(x, y, z, name)
		}
	}
	return c
}

func (c *testChunk) build(t *testing.T) []byte {
	t.Helper()

	bySection := map[int][]testBlock{}
	for _, blk := range c.blocks {
		bySection[blk.y>>4] = append(bySection[blk.y>>4], blk)
	}
	var ys []int
	for sy := range bySection {
		ys = append(ys, sy)
	}
	sort.Ints(ys)

	chunk := testChunkNBT{
		DataVersion: 3218,
		XPos:        int32(c.pos.X),
		YPos:        -4,
		ZPos:        int32(c.pos.Z),
		Status:      "minecraft:full",
		Heightmaps:  map[string][]uint64{},
	}

	for _, sy := range ys {
		section := testSection{
			Y: int8(sy),
			BlockStates: testBlockStates{
				Palette: []testPaletteEntry{{Name: "minecraft:air", Properties: map[string]string{}}},
			},
			Biomes: testBiomes{Palette: []string{c.biome}},
		}
		index := map[string]int{}
		storage := level.NewBitStorage(4, 16*16*16, nil)
		for _, blk := range bySection[sy] {
			key := blk.state.Name + "|" + mc.NewBlockState(blk.state.Name, blk.state.Properties).Variant()
			idx, ok := index[key]
			if !ok {
				idx = len(section.BlockStates.Palette)
				index[key] = idx
				section.BlockStates.Palette = append(section.BlockStates.Palette, blk.state)
			}
			if idx >= 1<<4 {
				t.Fatalf("test palette overflow in section %d", sy)
			}
			storage.Set(((blk.y&15)*16+blk.z)*16+blk.x, idx)
		}
		section.BlockStates.Data = storage.Raw()
		chunk.Sections = append(chunk.Sections, section)
	}

	surface := level.NewBitStorage(bits.Len(24*16+1), 16*16, nil)
	floor := level.NewBitStorage(bits.Len(24*16+1), 16*16, nil)
	for _, blk := range c.blocks {
		i := blk.z*16 + blk.x
		v := blk.y + 65
		if v > surface.Get(i) {
			surface.Set(i, v)
		}
		if !isWaterBlock(blk.state.Name) && v > floor.Get(i) {
			floor.Set(i, v)
		}
	}
	chunk.Heightmaps[mc.HeightWorldSurface] = surface.Raw()
	chunk.Heightmaps[mc.HeightMotionBlocking] = surface.Raw()
	chunk.Heightmaps[mc.HeightOceanFloor] = floor.Raw()

	raw, err := nbt.Marshal(chunk)
	if err != nil {
		t.Fatalf("failed to marshal test chunk: %s", err)
	}
	return raw
}

// buildTestWorld lays out a world directory holding the given chunks and
// returns its root.
func buildTestWorld(t *testing.T, chunks ...*testChunk) string {
	t.Helper()
	root := t.TempDir()
	writeTestRegions(t, root, chunks...)
	return root
}

func writeTestRegions(t *testing.T, root string, chunks ...*testChunk) {
	t.Helper()
	regionDir := filepath.Join(root, "region")
	if err := os.MkdirAll(regionDir, 0o755); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	byRegion := map[mc.RegionPos][]*testChunk{}
	for _, c := range chunks {
		byRegion[c.pos.Region()] = append(byRegion[c.pos.Region()], c)
	}
	for rpos, group := range byRegion {
		reg := mc.NewEmptyRegion(rpos)
		for _, c := range group {
			var buf bytes.Buffer
			w := zlib.NewWriter(&buf)
			if _, err := w.Write(c.build(t)); err != nil {
				t.Fatalf("zlib write: %s", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("zlib close: %s", err)
			}
			reg.SetChunkData(c.pos, buf.Bytes(), mc.CompressionZlib)
			reg.SetChunkTimestamp(c.pos, c.stamp)
		}
		if err := reg.Write(filepath.Join(regionDir, mc.RegionFilename(rpos))); err != nil {
			t.Fatalf("failed to write test region: %s", err)
		}
	}
}

// renderTestSetup wires a synthetic world to a sprite catalog the way the
// dispatcher does, sharing one registry between chunk decoding and sprites.
func renderTestSetup(t *testing.T, view View, colormaps bool, chunks ...*testChunk) (*BlockImages, *mc.WorldCache) {
	t.Helper()
	world := loadTestWorld(t, buildTestWorld(t, chunks...), 0, nil)
	registry := mc.NewBlockRegistry()
	cache := mc.NewWorldCache(world, registry)
	images := NewBlockImages(testTexturePack(t, colormaps), registry, BlockImageOptions{View: view})
	return images, cache
}

// loadTestWorld opens a built world, optionally rotated and cropped.
func loadTestWorld(t *testing.T, root string, rotation int, crop *mc.WorldCrop) *mc.World {
	t.Helper()
	world, err := mc.NewWorld(root, mc.DimensionOverworld)
	if err != nil {
		t.Fatalf("failed to open test world: %s", err)
	}
	if rotation != 0 {
		world.SetRotation(rotation)
	}
	if crop != nil {
		world.SetWorldCrop(crop)
	}
	if err := world.Load(); err != nil {
		t.Fatalf("failed to load test world: %s", err)
	}
	return world
}
