package quarry

import (
	"hash/fnv"
	"image/color"
	"log"
	"strings"
	"sync"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
	"github.com/muesli/gamut"
)

// Face visibility bits for the isometric view. A sprite composed with a
// subset of faces leaves the hidden ones transparent; the other views only
// ever draw the full sprite.
const (
	FaceTop uint8 = 1 << iota
	FaceLeft
	FaceRight
	FaceAll = FaceTop | FaceLeft | FaceRight
)

// Side faces are darkened against the top so cube edges stay readable
// without a lighting pass.
const (
	shadeLeft  = 191 // 0.75
	shadeRight = 217 // 0.85
)

// TintKind says which biome color, if any, multiplies a sprite at render
// time. The catalog always stores the untinted base.
type TintKind int

const (
	TintNone TintKind = iota
	TintGrass
	TintFoliage
	TintWater
)

// Tint fallbacks for texture packs that ship no colormaps.
var (
	defaultGrassColor   = rgba.NewPixel(0x91, 0xBD, 0x59, 255)
	defaultFoliageColor = rgba.NewPixel(0x77, 0xAB, 0x2F, 255)
	markerColor         = rgba.NewPixel(0xFF, 0x00, 0xFF, 255)
)

const fallbackColorCount = 64

// BlockSprite is one block's projected image plus the flags renderers sort
// and cull by.
type BlockSprite struct {
	// Image is the composed sprite without any biome tint.
	Image *rgba.Image
	// Overlay, when set, is the part of the sprite that takes the biome
	// tint while Image stays as-is (grass block sides are dirt).
	Overlay     *rgba.Image
	Transparent bool
	Tint        TintKind
}

type spriteKey struct {
	id    mc.BlockID
	faces uint8
}

type tintedKey struct {
	id    mc.BlockID
	faces uint8
	tint  rgba.Pixel
}

type BlockImageOptions struct {
	View     View
	Rotation int
	// WaterOpacity scales the water texture alpha; 1 (and the zero value)
	// keeps the texture as shipped.
	WaterOpacity float64
	// PreblitWater renders water fully opaque so stacked columns cost one
	// blit and no blending.
	PreblitWater bool
}

// BlockImages is the sprite catalog for one map rotation. Sprites compose
// lazily because block ids only exist once a chunk palette mentions them;
// after that first composition every lookup is a read-locked map hit, so
// render workers share one catalog.
type BlockImages struct {
	pack         *TexturePack
	registry     *mc.BlockRegistry
	view         View
	rotation     int
	waterOpacity float64
	preblitWater bool

	mu      sync.RWMutex
	sprites map[spriteKey]*BlockSprite
	tinted  map[tintedKey]*rgba.Image
	warned  map[string]struct{}

	marker   *BlockSprite
	fallback []color.Color
}

func NewBlockImages(pack *TexturePack, registry *mc.BlockRegistry, opts BlockImageOptions) *BlockImages {
	if opts.WaterOpacity <= 0 || opts.WaterOpacity > 1 {
		opts.WaterOpacity = 1
	}
	bi := &BlockImages{
		pack:         pack,
		registry:     registry,
		view:         opts.View,
		rotation:     opts.Rotation & 3,
		waterOpacity: opts.WaterOpacity,
		preblitWater: opts.PreblitWater,
		sprites:      map[spriteKey]*BlockSprite{},
		tinted:       map[tintedKey]*rgba.Image{},
		warned:       map[string]struct{}{},
		fallback:     gamut.Blends(gamut.Hex("#ff00ff"), gamut.Hex("#00e5ff"), fallbackColorCount),
	}
	tex := solidTexture(markerColor, pack.Size())
	bi.marker = &BlockSprite{Image: bi.composeFaces(tex, tex, FaceAll)}
	return bi
}

// Marker is the magenta substitute sprite drawn when a block cannot be
// rendered normally.
func (bi *BlockImages) Marker() *BlockSprite { return bi.marker }

// TextureSize is the edge size in pixels every texture was normalized to.
func (bi *BlockImages) TextureSize() int { return bi.pack.Size() }

// Sprite returns the composed sprite for a block id, or nil for blocks that
// draw nothing. faces selects the visible isometric faces; the other views
// ignore it.
func (bi *BlockImages) Sprite(id mc.BlockID, faces uint8) *BlockSprite {
	if bi.view != ViewIsometric {
		faces = FaceAll
	}
	key := spriteKey{id: id, faces: faces & FaceAll}

	bi.mu.RLock()
	s, ok := bi.sprites[key]
	bi.mu.RUnlock()
	if ok {
		return s
	}

	bi.mu.Lock()
	defer bi.mu.Unlock()
	if s, ok := bi.sprites[key]; ok {
		return s
	}
	s = bi.compose(key)
	bi.sprites[key] = s
	return s
}

// Opaque reports whether a block fully hides whatever is drawn behind it.
// Air and invisible blocks are never opaque.
func (bi *BlockImages) Opaque(id mc.BlockID) bool {
	s := bi.Sprite(id, FaceAll)
	return s != nil && !s.Transparent
}

// Water reports whether the block is part of a water column, which the
// top-down renderer darkens by depth.
func (bi *BlockImages) Water(id mc.BlockID) bool {
	s := bi.Sprite(id, FaceAll)
	return s != nil && s.Tint == TintWater
}

// TintColor resolves the render-time multiply color for a tint kind in a
// biome. Grass and foliage sample the climate colormaps; water uses the
// fixed per-biome palette.
func (bi *BlockImages) TintColor(kind TintKind, biome string) rgba.Pixel {
	switch kind {
	case TintGrass:
		return colormapColor(bi.pack.GrassColormap(), biome, defaultGrassColor)
	case TintFoliage:
		return colormapColor(bi.pack.FoliageColormap(), biome, defaultFoliageColor)
	case TintWater:
		return WaterColor(biome)
	}
	return rgba.NewPixel(255, 255, 255, 255)
}

// Tinted returns the sprite image multiplied by the biome color, cached per
// distinct tint. Sprites without a tint kind come back untouched.
func (bi *BlockImages) Tinted(id mc.BlockID, faces uint8, tint rgba.Pixel) *rgba.Image {
	s := bi.Sprite(id, faces)
	if s == nil {
		return nil
	}
	if s.Tint == TintNone {
		return s.Image
	}
	if bi.view != ViewIsometric {
		faces = FaceAll
	}
	key := tintedKey{id: id, faces: faces & FaceAll, tint: tint}

	bi.mu.RLock()
	img, ok := bi.tinted[key]
	bi.mu.RUnlock()
	if ok {
		return img
	}

	bi.mu.Lock()
	defer bi.mu.Unlock()
	if img, ok := bi.tinted[key]; ok {
		return img
	}
	if s.Overlay != nil {
		img = s.Image.Clip(0, 0, s.Image.Width, s.Image.Height)
		img.AlphaBlit(s.Overlay.Colorize(tint.Red(), tint.Green(), tint.Blue(), 255), 0, 0)
	} else {
		img = s.Image.Colorize(tint.Red(), tint.Green(), tint.Blue(), 255)
	}
	bi.tinted[key] = img
	return img
}

// compose builds the sprite for one cache key; bi.mu is held for writing.
func (bi *BlockImages) compose(key spriteKey) *BlockSprite {
	state, ok := bi.registry.State(key.id)
	if !ok {
		return bi.marker
	}
	if isInvisibleBlock(state.Name) {
		return nil
	}

	top, side := bi.resolveTextures(state)
	if top == nil {
		bi.warnMissing(state.Name)
		top = solidTexture(bi.fallbackColor(state), bi.pack.Size())
		side = top
	}

	sprite := &BlockSprite{}
	switch {
	case isWaterBlock(state.Name):
		sprite.Tint = TintWater
		if bi.preblitWater {
			top = opaqueTexture(top)
		} else if bi.waterOpacity < 1 {
			top = top.Colorize(255, 255, 255, uint8(bi.waterOpacity*255+0.5))
		}
		side = top
	case isGrassBlock(state.Name):
		sprite.Tint = TintGrass
	case isFoliageBlock(state.Name):
		sprite.Tint = TintFoliage
	}
	switch state.Name {
	case "minecraft:birch_leaves":
		top = top.Colorize(birchLeafColor.Red(), birchLeafColor.Green(), birchLeafColor.Blue(), 255)
		side = top
	case "minecraft:spruce_leaves":
		top = top.Colorize(spruceLeafColor.Red(), spruceLeafColor.Green(), spruceLeafColor.Blue(), 255)
		side = top
	}

	sprite.Transparent = textureTranslucent(top) || textureTranslucent(side)
	sprite.Image = bi.composeFaces(top, side, key.faces)
	if state.Name == "minecraft:grass_block" {
		// only the top face takes the grass tint; the sides stay dirt
		if bi.view != ViewSide && key.faces&FaceTop != 0 {
			sprite.Overlay = bi.composeFaces(top, side, FaceTop)
		} else {
			sprite.Tint = TintNone
		}
	}
	return sprite
}

// resolveTextures picks the top and side textures for a block. Most names
// map directly; _top/_side suffixes and a few irregular blocks are tried
// first, and shaped blocks (slabs, stairs, walls) borrow their material's
// texture. Returns nil, nil when nothing matches.
func (bi *BlockImages) resolveTextures(state mc.BlockState) (*rgba.Image, *rgba.Image) {
	short := strings.TrimPrefix(state.Name, "minecraft:")

	var top, side *rgba.Image
	if o, ok := textureOverrides[short]; ok {
		top = bi.pack.Texture(o.top)
		side = bi.pack.Texture(o.side)
	} else {
		top = bi.firstTexture(short+"_top", short)
		side = bi.firstTexture(short+"_side", short, short+"_top")
		if top == nil && side == nil {
			for _, mat := range materialCandidates(short) {
				if img := bi.pack.Texture(mat); img != nil {
					top, side = img, img
					break
				}
			}
		}
	}
	if top == nil {
		top = side
	}
	if side == nil {
		side = top
	}
	return top, side
}

func (bi *BlockImages) firstTexture(names ...string) *rgba.Image {
	for _, name := range names {
		if img := bi.pack.Texture(name); img != nil {
			return img
		}
	}
	return nil
}

// warnMissing logs each unmatched block once; bi.mu is held for writing.
func (bi *BlockImages) warnMissing(name string) {
	if _, ok := bi.warned[name]; ok {
		return
	}
	bi.warned[name] = struct{}{}
	log.Printf("[blocks] no texture for %s, using fallback color", name)
}

// fallbackColor picks a stable garish color for a block with no texture so
// distinct unknown blocks stay distinguishable on the map.
func (bi *BlockImages) fallbackColor(state mc.BlockState) rgba.Pixel {
	h := fnv.New32a()
	h.Write([]byte(state.String()))
	return rgba.FromColor(bi.fallback[int(h.Sum32()%uint32(len(bi.fallback)))])
}

// composeFaces projects the textures into one sprite for the catalog view.
func (bi *BlockImages) composeFaces(top, side *rgba.Image, faces uint8) *rgba.Image {
	s := bi.pack.Size()
	switch bi.view {
	case ViewTopdown:
		if faces&FaceTop == 0 {
			return rgba.New(s, s)
		}
		// the world reader rotates coordinates counter-clockwise per
		// quarter turn; the texture has to follow the content
		return top.Rotate((4 - bi.rotation) & 3)
	case ViewSide:
		img := rgba.New(s, s)
		img.AlphaBlit(side, 0, 0)
		return img
	default:
		return bi.composeIsometric(top, side, faces)
	}
}

// composeIsometric rasterizes up to three faces onto the 2s x 3s/2 diamond
// canvas. The top face is the rhombus between (s,0), (2s,s/2), (s,s) and
// (0,s/2); the side faces hang s/2 below its lower edges with their texture
// rows sampled 2:1. Faces are blended in left, right, top order so shared
// edge pixels resolve to the top face.
func (bi *BlockImages) composeIsometric(top, side *rgba.Image, faces uint8) *rgba.Image {
	s := bi.pack.Size()
	img := rgba.New(2*s, s+s/2)

	if faces&FaceLeft != 0 {
		for x := 0; x < s; x++ {
			for y := 0; y < img.Height; y++ {
				v := 2*y - s - x
				if v < 0 || v >= s {
					continue
				}
				img.BlendPixel(x, y, side.Pixel(x, v).Multiply(shadeLeft, shadeLeft, shadeLeft, 255))
			}
		}
	}
	if faces&FaceRight != 0 {
		for x := s; x < 2*s; x++ {
			for y := 0; y < img.Height; y++ {
				v := 2*y - s - (2*s - 1 - x)
				if v < 0 || v >= s {
					continue
				}
				img.BlendPixel(x, y, side.Pixel(x-s, v).Multiply(shadeRight, shadeRight, shadeRight, 255))
			}
		}
	}
	if faces&FaceTop != 0 {
		rotated := top.Rotate((4 - bi.rotation) & 3)
		for y := 0; y < s; y++ {
			for x := 0; x < 2*s; x++ {
				a := x + 2*y - s
				b := x - 2*y + s
				if a < 0 || a >= 2*s || b < 0 || b >= 2*s {
					continue
				}
				img.BlendPixel(x, y, rotated.Pixel(a>>1, b>>1))
			}
		}
	}
	return img
}

func solidTexture(p rgba.Pixel, size int) *rgba.Image {
	img := rgba.New(size, size)
	img.Fill(p, 0, 0, size, size)
	return img
}

// opaqueTexture lifts every visible pixel to full alpha.
func opaqueTexture(img *rgba.Image) *rgba.Image {
	out := rgba.New(img.Width, img.Height)
	for i, p := range img.Pix {
		out.Pix[i] = rgba.NewPixel(p.Red(), p.Green(), p.Blue(), 255)
	}
	return out
}

func textureTranslucent(img *rgba.Image) bool {
	for _, p := range img.Pix {
		if p.Alpha() != 255 {
			return true
		}
	}
	return false
}

// colormapColor samples a 256x256 climate colormap at the biome's
// coordinates. Colormaps leave their lower-left triangle transparent; those
// samples fall back to the vanilla constant.
func colormapColor(cm *rgba.Image, biome string, fallback rgba.Pixel) rgba.Pixel {
	if cm == nil {
		return fallback
	}
	x, y := LookupBiome(biome).ColorMapCoords()
	x = min(max(x, 0), cm.Width-1)
	y = min(max(y, 0), cm.Height-1)
	p := cm.Pixel(x, y)
	if p.Alpha() == 0 {
		return fallback
	}
	return rgba.NewPixel(p.Red(), p.Green(), p.Blue(), 255)
}

type faceNames struct {
	top  string
	side string
}

// textureOverrides handles blocks whose texture names do not follow the
// name/_top/_side pattern.
var textureOverrides = map[string]faceNames{
	"water":          {"water_still", "water_still"},
	"bubble_column":  {"water_still", "water_still"},
	"lava":           {"lava_still", "lava_still"},
	"bookshelf":      {"oak_planks", "bookshelf"},
	"snow_block":     {"snow", "snow"},
	"magma_block":    {"magma", "magma"},
	"carved_pumpkin": {"pumpkin_top", "carved_pumpkin"},
	"jack_o_lantern": {"pumpkin_top", "jack_o_lantern"},
	"frosted_ice":    {"frosted_ice_0", "frosted_ice_0"},
}

// materialCandidates maps shaped-block names onto the full block they are
// cut from, e.g. oak_slab onto oak_planks and stone_brick_wall onto
// stone_bricks. Shapes are drawn as full cubes.
func materialCandidates(name string) []string {
	for _, suffix := range []string{
		"_slab", "_stairs", "_wall", "_fence_gate", "_fence",
		"_pressure_plate", "_button", "_carpet",
	} {
		base, ok := strings.CutSuffix(name, suffix)
		if !ok {
			continue
		}
		return []string{base, base + "_planks", base + "_wool", base + "s"}
	}
	return nil
}
