package mc

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
)

// Schemas mirroring the 1.18+ chunk layout, used to synthesize worlds.

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

type testSignEntity struct {
	ID    string `nbt:"id"`
	X     int32  `nbt:"x"`
	Y     int32  `nbt:"y"`
	Z     int32  `nbt:"z"`
	Text1 string `nbt:"Text1"`
	Text2 string `nbt:"Text2"`
	Text3 string `nbt:"Text3"`
	Text4 string `nbt:"Text4"`
}

type testChunkNBT struct {
	DataVersion   int32               `nbt:"DataVersion"`
	XPos          int32               `nbt:"xPos"`
	YPos          int32               `nbt:"yPos"`
	ZPos          int32               `nbt:"zPos"`
	Status        string              `nbt:"Status"`
	Sections      []testSection       `nbt:"sections"`
	Heightmaps    map[string][]uint64 `nbt:"Heightmaps"`
	BlockEntities []testSignEntity    `nbt:"block_entities"`
}

type testBlock struct {
	x, y, z int // x,z local to the chunk
	state   testPaletteEntry
}

// chunkBuilder assembles one synthetic chunk. Block x/z are chunk-local,
// y absolute.
type chunkBuilder struct {
	pos         ChunkPos
	dataVersion int32
	status      string
	biome       string
	heightmaps  bool
	blocks      []testBlock
	signs       []testSignEntity
}

func newChunkBuilder(pos ChunkPos) *chunkBuilder {
	return &chunkBuilder{
		pos:         pos,
		dataVersion: 3218,
		status:      "minecraft:full",
		biome:       "minecraft:plains",
	}
}

func (b *chunkBuilder) withStatus(status string) *chunkBuilder {
	b.status = status
	return b
}

func (b *chunkBuilder) withDataVersion(v int32) *chunkBuilder {
	b.dataVersion = v
	return b
}

func (b *chunkBuilder) withBiome(name string) *chunkBuilder {
	b.biome = name
	return b
}

func (b *chunkBuilder) withHeightmaps() *chunkBuilder {
	b.heightmaps = true
	return b
}

func (b *chunkBuilder) set(x, y, z int, name string) *chunkBuilder {
	return b.setState(x, y, z, name, nil)
}

func (b *chunkBuilder) setState(x, y, z int, name string, props map[string]string) *chunkBuilder {
	if props == nil {
		props = map[string]string{}
	}
	b.blocks = append(b.blocks, testBlock{x: x, y: y, z: z, state: testPaletteEntry{Name: name, Properties: props}})
	return b
}

// fill covers the inclusive block box with one state.
func (b *chunkBuilder) fill(x0, y0, z0, x1, y1, z1 int, name string) *chunkBuilder {
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				b.set(x, y, z, name)
			}
		}
	}
	return b
}

func (b *chunkBuilder) addSign(x, y, z int, lines [4]string) *chunkBuilder {
	b.signs = append(b.signs, testSignEntity{
		ID: "minecraft:oak_sign",
		X:  int32(b.pos.X*16 + x), Y: int32(y), Z: int32(b.pos.Z*16 + z),
		Text1: lines[0], Text2: lines[1], Text3: lines[2], Text4: lines[3],
	})
	return b
}

// build encodes the chunk as uncompressed NBT.
func (b *chunkBuilder) build(t *testing.T) []byte {
	t.Helper()

	bySection := map[int][]testBlock{}
	for _, blk := range b.blocks {
		bySection[blk.y>>4] = append(bySection[blk.y>>4], blk)
	}
	var ys []int
	for sy := range bySection {
		ys = append(ys, sy)
	}
	sort.Ints(ys)

	chunk := testChunkNBT{
		DataVersion: b.dataVersion,
		XPos:        int32(b.pos.X),
		YPos:        -4,
		ZPos:        int32(b.pos.Z),
		Status:      b.status,
		Heightmaps:  map[string][]uint64{},
	}

	for _, sy := range ys {
		section := testSection{
			Y: int8(sy),
			BlockStates: testBlockStates{
				Palette: []testPaletteEntry{{Name: "minecraft:air", Properties: map[string]string{}}},
			},
			Biomes: testBiomes{Palette: []string{b.biome}},
		}
		index := map[string]int{}
		storage := level.NewBitStorage(4, 16*16*16, nil)
		for _, blk := range bySection[sy] {
			key := blk.state.Name + "|" + NewBlockState(blk.state.Name, blk.state.Properties).Variant()
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

	if b.heightmaps {
		surface := level.NewBitStorage(bits.Len(24*16+1), 16*16, nil)
		for _, blk := range b.blocks {
			i := blk.z*16 + blk.x
			if v := blk.y + 65; v > surface.Get(i) {
				surface.Set(i, v)
			}
		}
		chunk.Heightmaps[HeightWorldSurface] = surface.Raw()
		chunk.Heightmaps[HeightMotionBlocking] = surface.Raw()
	}

	chunk.BlockEntities = b.signs

	raw, err := nbt.Marshal(chunk)
	if err != nil {
		t.Fatalf("failed to marshal test chunk: %s", err)
	}
	return raw
}

func zlibCompress(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		t.Fatalf("zlib write: %s", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %s", err)
	}
	return buf.Bytes()
}

// writeTestRegion assembles the given chunks into a region file under dir
// and returns its path. Chunk builders must belong to the region.
func writeTestRegion(t *testing.T, dir string, rpos RegionPos, builders []*chunkBuilder, timestamps map[ChunkPos]uint32) string {
	t.Helper()
	reg := NewEmptyRegion(rpos)
	for _, b := range builders {
		if b.pos.Region() != rpos {
			t.Fatalf("chunk %v does not belong to region %v", b.pos, rpos)
		}
		reg.SetChunkData(b.pos, zlibCompress(t, b.build(t)), CompressionZlib)
		if ts, ok := timestamps[b.pos]; ok {
			reg.SetChunkTimestamp(b.pos, ts)
		} else {
			reg.SetChunkTimestamp(b.pos, 1000)
		}
	}
	path := filepath.Join(dir, RegionFilename(rpos))
	if err := reg.Write(path); err != nil {
		t.Fatalf("failed to write test region: %s", err)
	}
	return path
}

// buildTestWorld lays out a world directory with a region dir holding the
// given chunks, grouped into region files automatically.
func buildTestWorld(t *testing.T, builders ...*chunkBuilder) string {
	t.Helper()
	root := t.TempDir()
	regionDir := filepath.Join(root, "region")
	if err := os.MkdirAll(regionDir, 0o755); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	byRegion := map[RegionPos][]*chunkBuilder{}
	for _, b := range builders {
		byRegion[b.pos.Region()] = append(byRegion[b.pos.Region()], b)
	}
	for rpos, group := range byRegion {
		writeTestRegion(t, regionDir, rpos, group, nil)
	}
	return root
}

func loadTestChunk(t *testing.T, b *chunkBuilder, registry *BlockRegistry, rotation int, crop *WorldCrop) *Chunk {
	t.Helper()
	chunk, err := DecodeChunk(b.build(t), registry, rotation, crop)
	if err != nil {
		t.Fatalf("failed to decode test chunk: %s", err)
	}
	return chunk
}
