package quarry

import (
	"math"

	"github.com/b1naryth1ef/quarry/rgba"
)

// Biome carries the two climate values the vanilla colormaps are indexed by.
type Biome struct {
	Temperature float64
	Downfall    float64
}

// ColorMapCoords converts the climate into pixel coordinates of the 256x256
// grass and foliage colormaps.
func (b Biome) ColorMapCoords() (int, int) {
	r := clamp(b.Downfall, 0, 1) * clamp(b.Temperature, 0, 1)
	x := int(math.Ceil(255 - (clamp(b.Temperature, 0, 1) * 255)))
	y := int(math.Ceil(255 - (r * 255)))
	return x, y
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	} else if v > max {
		return max
	} else {
		return v
	}
}

// LookupBiome resolves a namespaced biome name to its climate, defaulting to
// plains for anything unknown so modded worlds still get a plausible tint.
func LookupBiome(name string) Biome {
	if b, ok := biomes[name]; ok {
		return b
	}
	return biomes["minecraft:plains"]
}

// biomes maps the vanilla biomes to their climate values.
var biomes = map[string]Biome{
	"minecraft:plains":                   {0.8, 0.4},
	"minecraft:sunflower_plains":         {0.8, 0.4},
	"minecraft:snowy_plains":             {0.0, 0.5},
	"minecraft:ice_spikes":               {0.0, 0.5},
	"minecraft:desert":                   {2.0, 0.0},
	"minecraft:swamp":                    {0.8, 0.9},
	"minecraft:mangrove_swamp":           {0.8, 0.9},
	"minecraft:forest":                   {0.7, 0.8},
	"minecraft:flower_forest":            {0.7, 0.8},
	"minecraft:birch_forest":             {0.6, 0.6},
	"minecraft:old_growth_birch_forest":  {0.6, 0.6},
	"minecraft:dark_forest":              {0.7, 0.8},
	"minecraft:taiga":                    {0.25, 0.8},
	"minecraft:snowy_taiga":              {-0.5, 0.4},
	"minecraft:old_growth_pine_taiga":    {0.3, 0.8},
	"minecraft:old_growth_spruce_taiga":  {0.25, 0.8},
	"minecraft:savanna":                  {2.0, 0.0},
	"minecraft:savanna_plateau":          {2.0, 0.0},
	"minecraft:windswept_savanna":        {2.0, 0.0},
	"minecraft:jungle":                   {0.95, 0.9},
	"minecraft:sparse_jungle":            {0.95, 0.8},
	"minecraft:bamboo_jungle":            {0.95, 0.9},
	"minecraft:badlands":                 {2.0, 0.0},
	"minecraft:eroded_badlands":          {2.0, 0.0},
	"minecraft:wooded_badlands":          {2.0, 0.0},
	"minecraft:meadow":                   {0.5, 0.8},
	"minecraft:cherry_grove":             {0.5, 0.8},
	"minecraft:grove":                    {-0.2, 0.8},
	"minecraft:snowy_slopes":             {-0.3, 0.9},
	"minecraft:frozen_peaks":             {-0.7, 0.9},
	"minecraft:jagged_peaks":             {-0.7, 0.9},
	"minecraft:stony_peaks":              {1.0, 0.3},
	"minecraft:river":                    {0.5, 0.5},
	"minecraft:frozen_river":             {0.0, 0.5},
	"minecraft:beach":                    {0.8, 0.4},
	"minecraft:snowy_beach":              {0.05, 0.3},
	"minecraft:stony_shore":              {0.2, 0.3},
	"minecraft:ocean":                    {0.5, 0.5},
	"minecraft:deep_ocean":               {0.5, 0.5},
	"minecraft:cold_ocean":               {0.5, 0.5},
	"minecraft:deep_cold_ocean":          {0.5, 0.5},
	"minecraft:lukewarm_ocean":           {0.5, 0.5},
	"minecraft:deep_lukewarm_ocean":      {0.5, 0.5},
	"minecraft:warm_ocean":               {0.5, 0.5},
	"minecraft:frozen_ocean":             {0.0, 0.5},
	"minecraft:deep_frozen_ocean":        {0.5, 0.5},
	"minecraft:mushroom_fields":          {0.9, 1.0},
	"minecraft:dripstone_caves":          {0.8, 0.4},
	"minecraft:lush_caves":               {0.5, 0.5},
	"minecraft:deep_dark":                {0.8, 0.4},
	"minecraft:windswept_hills":          {0.2, 0.3},
	"minecraft:windswept_gravelly_hills": {0.2, 0.3},
	"minecraft:windswept_forest":         {0.2, 0.3},
	"minecraft:nether_wastes":            {2.0, 0.0},
	"minecraft:soul_sand_valley":         {2.0, 0.0},
	"minecraft:crimson_forest":           {2.0, 0.0},
	"minecraft:warped_forest":            {2.0, 0.0},
	"minecraft:basalt_deltas":            {2.0, 0.0},
	"minecraft:the_end":                  {0.5, 0.5},
	"minecraft:end_highlands":            {0.5, 0.5},
	"minecraft:end_midlands":             {0.5, 0.5},
	"minecraft:end_barrens":              {0.5, 0.5},
	"minecraft:small_end_islands":        {0.5, 0.5},
	"minecraft:the_void":                 {0.5, 0.5},
}

// WaterColor returns the still-water tint for a biome, matching the vanilla
// per-biome water colors.
func WaterColor(biome string) rgba.Pixel {
	switch biome {
	case "minecraft:swamp", "minecraft:mangrove_swamp":
		return rgba.NewPixel(0x61, 0x7B, 0x64, 255)
	case "minecraft:lukewarm_ocean", "minecraft:deep_lukewarm_ocean":
		return rgba.NewPixel(0x45, 0xAD, 0xF2, 255)
	case "minecraft:warm_ocean":
		return rgba.NewPixel(0x43, 0xD5, 0xEE, 255)
	case "minecraft:cold_ocean", "minecraft:deep_cold_ocean":
		return rgba.NewPixel(0x3D, 0x57, 0xD6, 255)
	case "minecraft:frozen_river", "minecraft:frozen_ocean", "minecraft:deep_frozen_ocean":
		return rgba.NewPixel(0x39, 0x38, 0xC9, 255)
	default:
		return rgba.NewPixel(0x3F, 0x76, 0xE4, 255)
	}
}

// Fixed leaf tints that ignore the biome climate.
var (
	birchLeafColor  = rgba.NewPixel(0x80, 0xA7, 0x55, 255)
	spruceLeafColor = rgba.NewPixel(0x61, 0x99, 0x61, 255)
)

// invisibleBlocks never produce a sprite: air variants plus decorations too
// small to matter at map scale.
var invisibleBlocks = map[string]struct{}{
	"minecraft:air":         {},
	"minecraft:cave_air":    {},
	"minecraft:void_air":    {},
	"minecraft:dead_bush":   {},
	"minecraft:short_grass": {},
	"minecraft:torch":       {},
	"minecraft:wall_torch":  {},
}

func isInvisibleBlock(block string) bool {
	_, ok := invisibleBlocks[block]
	return ok
}

var grassBlocks = map[string]struct{}{
	"minecraft:grass":       {},
	"minecraft:grass_block": {},
	"minecraft:tall_grass":  {},
	"minecraft:vine":        {},
	"minecraft:fern":        {},
	"minecraft:large_fern":  {},
	"minecraft:lily_pad":    {},
	"minecraft:sugar_cane":  {},
}

func isGrassBlock(block string) bool {
	_, ok := grassBlocks[block]
	return ok
}

var foliageBlocks = map[string]struct{}{
	"minecraft:oak_leaves":      {},
	"minecraft:jungle_leaves":   {},
	"minecraft:acacia_leaves":   {},
	"minecraft:dark_oak_leaves": {},
	"minecraft:mangrove_leaves": {},
	"minecraft:azalea_leaves":   {},
}

func isFoliageBlock(block string) bool {
	_, ok := foliageBlocks[block]
	return ok
}

var waterBlocks = map[string]struct{}{
	"minecraft:water":         {},
	"minecraft:bubble_column": {},
}

func isWaterBlock(block string) bool {
	_, ok := waterBlocks[block]
	return ok
}
