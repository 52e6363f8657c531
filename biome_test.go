package quarry

import (
	"testing"

	"github.com/b1naryth1ef/quarry/rgba"
)

func TestColorMapCoords(t *testing.T) {
	cases := []struct {
		biome string
		x, y  int
	}{
		{"minecraft:plains", 51, 174},
		{"minecraft:desert", 0, 255},
		// temperature below zero clamps to the cold corner
		{"minecraft:snowy_taiga", 255, 255},
	}
	for _, c := range cases {
		x, y := LookupBiome(c.biome).ColorMapCoords()
		if x != c.x || y != c.y {
			t.Errorf("%s: got (%d, %d), want (%d, %d)", c.biome, x, y, c.x, c.y)
		}
	}
}

func TestLookupBiomeUnknown(t *testing.T) {
	got := LookupBiome("minecraft:modded_biome")
	want := LookupBiome("minecraft:plains")
	if got != want {
		t.Fatalf("unknown biome should read as plains, got %+v", got)
	}
}

func TestWaterColor(t *testing.T) {
	if got := WaterColor("minecraft:swamp"); got != rgba.NewPixel(0x61, 0x7B, 0x64, 255) {
		t.Fatalf("swamp water = %08x", uint32(got))
	}
	if got := WaterColor("minecraft:frozen_ocean"); got != rgba.NewPixel(0x39, 0x38, 0xC9, 255) {
		t.Fatalf("frozen ocean water = %08x", uint32(got))
	}
	if got := WaterColor("minecraft:plains"); got != rgba.NewPixel(0x3F, 0x76, 0xE4, 255) {
		t.Fatalf("default water = %08x", uint32(got))
	}
}

func TestBlockClassification(t *testing.T) {
	if !isInvisibleBlock("minecraft:air") || !isInvisibleBlock("minecraft:wall_torch") {
		t.Fatal("air and torches should be invisible")
	}
	if isInvisibleBlock("minecraft:stone") {
		t.Fatal("stone should be visible")
	}
	if !isGrassBlock("minecraft:grass_block") || isGrassBlock("minecraft:stone") {
		t.Fatal("grass classification wrong")
	}
	if !isFoliageBlock("minecraft:oak_leaves") {
		t.Fatal("oak leaves should take the foliage tint")
	}
	// birch and spruce keep their fixed colors instead of the biome tint
	if isFoliageBlock("minecraft:birch_leaves") || isFoliageBlock("minecraft:spruce_leaves") {
		t.Fatal("birch and spruce must not take the biome tint")
	}
	if !isWaterBlock("minecraft:water") || !isWaterBlock("minecraft:bubble_column") {
		t.Fatal("water classification wrong")
	}
	if isWaterBlock("minecraft:lava") {
		t.Fatal("lava is not water")
	}
}
