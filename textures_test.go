package quarry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/b1naryth1ef/quarry/rgba"
)

func TestTexturePackDir(t *testing.T) {
	pack := testTexturePack(t, true)

	if pack.Size() != 8 {
		t.Fatalf("pack size = %d", pack.Size())
	}
	if pack.Len() != len(testTextureColors)+1 {
		t.Fatalf("loaded %d textures, want %d", pack.Len(), len(testTextureColors)+1)
	}
	stone := pack.Texture("stone")
	if stone == nil || stone.Width != 8 || stone.Height != 8 {
		t.Fatalf("unexpected stone texture: %+v", stone)
	}
	if got := stone.Pixel(3, 3); got != testTextureColors["stone"] {
		t.Fatalf("stone pixel = %08x", uint32(got))
	}
	if pack.Texture("bedrock") != nil {
		t.Fatal("missing textures should return nil")
	}

	grass := pack.GrassColormap()
	if grass == nil || grass.Width != 256 {
		t.Fatalf("unexpected grass colormap: %+v", grass)
	}
	if pack.FoliageColormap() == nil {
		t.Fatal("foliage colormap not loaded")
	}
}

func TestTexturePackJar(t *testing.T) {
	jar := writeTestJar(t, map[string]*rgba.Image{
		"assets/minecraft/textures/block/stone.png":      solidTexture(rgba.NewPixel(128, 128, 128, 255), 8),
		"assets/minecraft/textures/block/sub/nested.png": solidTexture(rgba.NewPixel(1, 2, 3, 255), 8),
		"assets/minecraft/textures/colormap/foliage.png": solidTexture(testFoliagemapColor, 256),
		"assets/minecraft/textures/item/apple.png":       solidTexture(rgba.NewPixel(200, 30, 30, 255), 8),
	})

	pack, err := NewTexturePack(jar, 8, 0)
	if err != nil {
		t.Fatalf("NewTexturePack: %s", err)
	}
	if pack.Len() != 1 {
		t.Fatalf("loaded %d textures, want 1", pack.Len())
	}
	if pack.Texture("stone") == nil || pack.Texture("nested") != nil || pack.Texture("apple") != nil {
		t.Fatal("jar filtering is off")
	}
	if pack.FoliageColormap() == nil || pack.GrassColormap() != nil {
		t.Fatal("colormap loading is off")
	}
}

func TestTexturePackNormalizesSize(t *testing.T) {
	dir := t.TempDir()
	writeTestTexture(t, dir, "stone", solidTexture(rgba.NewPixel(128, 128, 128, 255), 16))

	pack, err := NewTexturePack(dir, 8, 0)
	if err != nil {
		t.Fatalf("NewTexturePack: %s", err)
	}
	stone := pack.Texture("stone")
	if stone.Width != 8 || stone.Height != 8 {
		t.Fatalf("texture not normalized: %dx%d", stone.Width, stone.Height)
	}
	got := stone.Pixel(4, 4)
	if got.Alpha() != 255 {
		t.Fatalf("downscale lost alpha: %08x", uint32(got))
	}
	for _, ch := range []uint8{got.Red(), got.Green(), got.Blue()} {
		if ch < 127 || ch > 129 {
			t.Fatalf("downscale drifted: %08x", uint32(got))
		}
	}
}

func TestTexturePackCropsAnimationStrips(t *testing.T) {
	dir := t.TempDir()
	strip := rgba.New(8, 32)
	strip.Fill(rgba.NewPixel(60, 80, 220, 255), 0, 0, 8, 8)
	strip.Fill(rgba.NewPixel(10, 10, 10, 255), 0, 8, 8, 24)
	writeTestTexture(t, dir, "water_still", strip)

	pack, err := NewTexturePack(dir, 8, 0)
	if err != nil {
		t.Fatalf("NewTexturePack: %s", err)
	}
	water := pack.Texture("water_still")
	if water.Width != 8 || water.Height != 8 {
		t.Fatalf("strip not cropped: %dx%d", water.Width, water.Height)
	}
	// only the first frame survives
	if got := water.Pixel(4, 4); got != rgba.NewPixel(60, 80, 220, 255) {
		t.Fatalf("cropped frame pixel = %08x", uint32(got))
	}
}

func TestTexturePackBlur(t *testing.T) {
	pack, err := NewTexturePack(testTextureDir(t, false), 8, 2)
	if err != nil {
		t.Fatalf("NewTexturePack: %s", err)
	}
	// a uniform texture is unchanged by blurring
	if got := pack.Texture("stone").Pixel(4, 4); got != testTextureColors["stone"] {
		t.Fatalf("blurred stone pixel = %08x", uint32(got))
	}
}

func TestTexturePackBadSources(t *testing.T) {
	if _, err := NewTexturePack(filepath.Join(t.TempDir(), "missing"), 8, 0); err == nil {
		t.Fatal("missing source should fail")
	}
	if _, err := NewTexturePack(t.TempDir(), 8, 0); err == nil || !strings.Contains(err.Error(), "no block textures") {
		t.Fatalf("empty dir should fail, got %v", err)
	}
}
