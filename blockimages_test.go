package quarry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
)

var testTextureColors = map[string]rgba.Pixel{
	"stone":            rgba.NewPixel(128, 128, 128, 255),
	"dirt":             rgba.NewPixel(134, 96, 67, 255),
	"grass_block_top":  rgba.NewPixel(220, 220, 220, 255),
	"grass_block_side": rgba.NewPixel(120, 85, 60, 255),
	"water_still":      rgba.NewPixel(60, 80, 220, 255),
	"oak_log":          rgba.NewPixel(100, 80, 50, 255),
	"oak_log_top":      rgba.NewPixel(160, 130, 90, 255),
	"oak_leaves":       rgba.NewPixel(110, 110, 110, 200),
	"glass":            rgba.NewPixel(255, 255, 255, 64),
	"oak_planks":       rgba.NewPixel(180, 150, 100, 255),
}

var (
	testGrassmapColor   = rgba.NewPixel(90, 180, 60, 255)
	testFoliagemapColor = rgba.NewPixel(40, 140, 30, 255)
)

// testTextureDir writes a loose texture directory usable as a texture_dir.
func testTextureDir(t *testing.T, colormaps bool) string {
	t.Helper()
	dir := t.TempDir()
	for name, p := range testTextureColors {
		writeTestTexture(t, dir, name, solidTexture(p, 8))
	}
	// sand gets one marked corner so rotation is observable
	sand := solidTexture(rgba.NewPixel(216, 200, 120, 255), 8)
	sand.SetPixel(0, 0, rgba.NewPixel(255, 0, 0, 255))
	writeTestTexture(t, dir, "sand", sand)

	if colormaps {
		cmDir := filepath.Join(dir, "colormap")
		if err := os.MkdirAll(cmDir, 0o755); err != nil {
			t.Fatalf("mkdir colormap: %s", err)
		}
		writeTestTexture(t, cmDir, "grass", solidTexture(testGrassmapColor, 256))
		writeTestTexture(t, cmDir, "foliage", solidTexture(testFoliagemapColor, 256))
	}
	return dir
}

// testTexturePack loads the synthetic texture directory at size 8.
func testTexturePack(t *testing.T, colormaps bool) *TexturePack {
	t.Helper()
	pack, err := NewTexturePack(testTextureDir(t, colormaps), 8, 0)
	if err != nil {
		t.Fatalf("load texture pack: %s", err)
	}
	return pack
}

func writeTestTexture(t *testing.T, dir, name string, img *rgba.Image) {
	t.Helper()
	if err := img.WritePNG(filepath.Join(dir, name+".png")); err != nil {
		t.Fatalf("write texture %s: %s", name, err)
	}
}

func testBlockID(reg *mc.BlockRegistry, name string) mc.BlockID {
	return reg.ID(mc.NewBlockState(name, nil))
}

func TestBlockImagesIsometricFaces(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})
	stone := testBlockID(reg, "minecraft:stone")

	s := bi.Sprite(stone, FaceAll)
	if s == nil {
		t.Fatal("expected a sprite for stone")
	}
	if s.Transparent || s.Tint != TintNone || s.Overlay != nil {
		t.Fatalf("unexpected stone sprite flags: %+v", s)
	}
	if s.Image.Width != 16 || s.Image.Height != 12 {
		t.Fatalf("expected 16x12 sprite, got %dx%d", s.Image.Width, s.Image.Height)
	}

	// top face keeps the texture, sides are shaded 0.75 and 0.85
	if got := s.Image.Pixel(8, 2); got != rgba.NewPixel(128, 128, 128, 255) {
		t.Fatalf("top face pixel = %08x", uint32(got))
	}
	if got := s.Image.Pixel(2, 6); got != rgba.NewPixel(95, 95, 95, 255) {
		t.Fatalf("left face pixel = %08x", uint32(got))
	}
	if got := s.Image.Pixel(13, 6); got != rgba.NewPixel(108, 108, 108, 255) {
		t.Fatalf("right face pixel = %08x", uint32(got))
	}
	if got := s.Image.Pixel(0, 0); got.Alpha() != 0 {
		t.Fatalf("diamond corner should stay transparent, got %08x", uint32(got))
	}

	if again := bi.Sprite(stone, FaceAll); again != s {
		t.Fatal("sprite should be cached")
	}
}

func TestBlockImagesFaceMask(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})
	stone := testBlockID(reg, "minecraft:stone")

	topOnly := bi.Sprite(stone, FaceTop)
	if topOnly.Image.Pixel(2, 6).Alpha() != 0 {
		t.Fatal("left face should be culled")
	}
	if topOnly.Image.Pixel(8, 2).Alpha() == 0 {
		t.Fatal("top face should be drawn")
	}

	sides := bi.Sprite(stone, FaceLeft|FaceRight)
	if sides.Image.Pixel(8, 2).Alpha() != 0 {
		t.Fatal("top face should be culled")
	}
	if got := sides.Image.Pixel(2, 6); got != rgba.NewPixel(95, 95, 95, 255) {
		t.Fatalf("left face pixel = %08x", uint32(got))
	}
	if topOnly == bi.Sprite(stone, FaceAll) {
		t.Fatal("face variants must cache separately")
	}
}

func TestBlockImagesInvisible(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	if s := bi.Sprite(0, FaceAll); s != nil {
		t.Fatal("air should have no sprite")
	}
	torch := testBlockID(reg, "minecraft:torch")
	if s := bi.Sprite(torch, FaceAll); s != nil {
		t.Fatal("torch should have no sprite")
	}
	if bi.Opaque(0) {
		t.Fatal("air is not opaque")
	}
}

func TestBlockImagesTransparency(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	glass := testBlockID(reg, "minecraft:glass")
	if s := bi.Sprite(glass, FaceAll); !s.Transparent {
		t.Fatal("glass should be transparent")
	}
	if bi.Opaque(glass) {
		t.Fatal("glass is not opaque")
	}

	leaves := testBlockID(reg, "minecraft:oak_leaves")
	s := bi.Sprite(leaves, FaceAll)
	if !s.Transparent || s.Tint != TintFoliage {
		t.Fatalf("unexpected leaf sprite flags: %+v", s)
	}

	stone := testBlockID(reg, "minecraft:stone")
	if !bi.Opaque(stone) {
		t.Fatal("stone should be opaque")
	}
}

func TestBlockImagesWater(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	water := testBlockID(reg, "minecraft:water")

	// default keeps the texture alpha, which is opaque here
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})
	s := bi.Sprite(water, FaceAll)
	if s.Tint != TintWater || !bi.Water(water) {
		t.Fatal("water sprite should carry the water tint")
	}
	if s.Transparent {
		t.Fatal("opaque water texture should classify opaque")
	}

	half := 0.5
	bi = NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric, WaterOpacity: half})
	s = bi.Sprite(water, FaceAll)
	if !s.Transparent {
		t.Fatal("half opacity water should be transparent")
	}
	if got := s.Image.Pixel(8, 2); got != rgba.NewPixel(60, 80, 220, 128) {
		t.Fatalf("water pixel = %08x", uint32(got))
	}

	bi = NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric, WaterOpacity: half, PreblitWater: true})
	s = bi.Sprite(water, FaceAll)
	if s.Transparent || !bi.Opaque(water) {
		t.Fatal("preblit water should be opaque")
	}
	if got := s.Image.Pixel(8, 2).Alpha(); got != 255 {
		t.Fatalf("preblit water alpha = %d", got)
	}
}

func TestBlockImagesGrassOverlay(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})
	grass := testBlockID(reg, "minecraft:grass_block")

	s := bi.Sprite(grass, FaceAll)
	if s.Tint != TintGrass || s.Overlay == nil {
		t.Fatalf("unexpected grass sprite flags: %+v", s)
	}

	tinted := bi.Tinted(grass, FaceAll, rgba.NewPixel(0, 255, 0, 255))
	if got := tinted.Pixel(8, 2); got != rgba.NewPixel(0, 220, 0, 255) {
		t.Fatalf("tinted grass top = %08x", uint32(got))
	}
	// the dirt side must not take the tint
	if got := tinted.Pixel(2, 6); got != rgba.NewPixel(89, 63, 44, 255) {
		t.Fatalf("tinted grass side = %08x", uint32(got))
	}
	if again := bi.Tinted(grass, FaceAll, rgba.NewPixel(0, 255, 0, 255)); again != tinted {
		t.Fatal("tinted variants should be cached")
	}

	side := NewBlockImages(pack, reg, BlockImageOptions{View: ViewSide})
	if s := side.Sprite(grass, FaceAll); s.Tint != TintNone || s.Overlay != nil {
		t.Fatal("side view grass block should not tint")
	}
}

func TestBlockImagesTintColors(t *testing.T) {
	pack := testTexturePack(t, true)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	if got := bi.TintColor(TintGrass, "minecraft:plains"); got != testGrassmapColor {
		t.Fatalf("grass tint = %08x", uint32(got))
	}
	if got := bi.TintColor(TintFoliage, "minecraft:jungle"); got != testFoliagemapColor {
		t.Fatalf("foliage tint = %08x", uint32(got))
	}
	if got := bi.TintColor(TintWater, "minecraft:swamp"); got != rgba.NewPixel(0x61, 0x7B, 0x64, 255) {
		t.Fatalf("swamp water tint = %08x", uint32(got))
	}

	bare := NewBlockImages(testTexturePack(t, false), reg, BlockImageOptions{View: ViewIsometric})
	if got := bare.TintColor(TintGrass, "minecraft:plains"); got != defaultGrassColor {
		t.Fatalf("fallback grass tint = %08x", uint32(got))
	}
	if got := bare.TintColor(TintFoliage, "minecraft:plains"); got != defaultFoliageColor {
		t.Fatalf("fallback foliage tint = %08x", uint32(got))
	}
}

func TestBlockImagesFallbackColor(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	state := mc.NewBlockState("minecraft:mystery_ore", nil)
	id := reg.ID(state)
	s := bi.Sprite(id, FaceAll)
	if s == nil || s.Transparent {
		t.Fatal("unknown blocks should get an opaque fallback sprite")
	}
	want := bi.fallbackColor(state)
	if got := s.Image.Pixel(8, 2); got != want {
		t.Fatalf("fallback pixel = %08x, want %08x", uint32(got), uint32(want))
	}

	other := NewBlockImages(pack, mc.NewBlockRegistry(), BlockImageOptions{View: ViewIsometric})
	if other.fallbackColor(state) != want {
		t.Fatal("fallback colors should be stable across catalogs")
	}
}

func TestBlockImagesMarker(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	m := bi.Marker()
	if m == nil || m.Transparent {
		t.Fatal("marker should be an opaque sprite")
	}
	if got := m.Image.Pixel(8, 2); got != rgba.NewPixel(255, 0, 255, 255) {
		t.Fatalf("marker pixel = %08x", uint32(got))
	}
}

func TestBlockImagesTopdownRotation(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	sand := testBlockID(reg, "minecraft:sand")

	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewTopdown})
	s := bi.Sprite(sand, FaceAll)
	if s.Image.Width != 8 || s.Image.Height != 8 {
		t.Fatalf("expected 8x8 sprite, got %dx%d", s.Image.Width, s.Image.Height)
	}
	if got := s.Image.Pixel(0, 0); got != rgba.NewPixel(255, 0, 0, 255) {
		t.Fatalf("unrotated marker pixel = %08x", uint32(got))
	}

	bi = NewBlockImages(pack, reg, BlockImageOptions{View: ViewTopdown, Rotation: 1})
	s = bi.Sprite(sand, FaceAll)
	// one counter-clockwise turn moves the top-left corner to the bottom-left
	if got := s.Image.Pixel(0, 7); got != rgba.NewPixel(255, 0, 0, 255) {
		t.Fatalf("rotated marker pixel = %08x", uint32(got))
	}
}

func TestBlockImagesTextureResolution(t *testing.T) {
	pack := testTexturePack(t, false)
	reg := mc.NewBlockRegistry()
	bi := NewBlockImages(pack, reg, BlockImageOptions{View: ViewIsometric})

	oakLog := testBlockID(reg, "minecraft:oak_log")
	s := bi.Sprite(oakLog, FaceAll)
	if got := s.Image.Pixel(8, 2); got != testTextureColors["oak_log_top"] {
		t.Fatalf("log top = %08x", uint32(got))
	}
	want := testTextureColors["oak_log"].Multiply(shadeLeft, shadeLeft, shadeLeft, 255)
	if got := s.Image.Pixel(2, 6); got != want {
		t.Fatalf("log side = %08x, want %08x", uint32(got), uint32(want))
	}

	slab := testBlockID(reg, "minecraft:oak_slab")
	s = bi.Sprite(slab, FaceAll)
	if got := s.Image.Pixel(8, 2); got != testTextureColors["oak_planks"] {
		t.Fatalf("slab should borrow the plank texture, got %08x", uint32(got))
	}
}
