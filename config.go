package quarry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type Config struct {
	Concurrency int                 `hcl:"concurrency,optional"`
	Output      OutputConfigBlock   `hcl:"output,block"`
	Worlds      []*WorldConfigBlock `hcl:"world,block"`
	Maps        []*MapConfigBlock   `hcl:"map,block"`
}

type OutputConfigBlock struct {
	Path string `hcl:"path"`
}

type WorldConfigBlock struct {
	Name      string           `hcl:"name,label"`
	Path      string           `hcl:"path"`
	Dimension string           `hcl:"dimension,optional"`
	Crop      *CropConfigBlock `hcl:"crop,block"`
}

type CropConfigBlock struct {
	MinX    *int `hcl:"min_x,optional"`
	MaxX    *int `hcl:"max_x,optional"`
	MinZ    *int `hcl:"min_z,optional"`
	MaxZ    *int `hcl:"max_z,optional"`
	MinY    *int `hcl:"min_y,optional"`
	MaxY    *int `hcl:"max_y,optional"`
	CenterX *int `hcl:"center_x,optional"`
	CenterZ *int `hcl:"center_z,optional"`
	Radius  *int `hcl:"radius,optional"`
}

type MapConfigBlock struct {
	Name            string   `hcl:"name,label"`
	World           string   `hcl:"world"`
	View            string   `hcl:"view,optional"`
	Rotations       []string `hcl:"rotations,optional"`
	TextureDir      string   `hcl:"texture_dir,optional"`
	TextureSize     int      `hcl:"texture_size,optional"`
	TextureBlur     int      `hcl:"texture_blur,optional"`
	TileWidth       int      `hcl:"tile_width,optional"`
	ImageFormat     string   `hcl:"image_format,optional"`
	JPEGQuality     int      `hcl:"jpeg_quality,optional"`
	BackgroundColor string   `hcl:"background_color,optional"`
	WaterOpacity    *float64 `hcl:"water_opacity,optional"`
	PreblitWater    bool     `hcl:"preblit_water,optional"`
	RenderSigns     bool     `hcl:"render_signs,optional"`

	view       View
	rotations  []int
	background rgba.Pixel
}

// rotation labels follow the viewer convention: the world's north-west corner
// ends up in the named screen corner.
var rotationNames = map[string]int{"tl": 0, "tr": 1, "br": 2, "bl": 3}
var rotationLabels = [4]string{"tl", "tr", "br", "bl"}

func ParseRotation(name string) (int, error) {
	r, ok := rotationNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown rotation %q (expected tl, tr, br or bl)", name)
	}
	return r, nil
}

func RotationLabel(rotation int) string {
	return rotationLabels[rotation&3]
}

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	if err := hclsimple.DecodeFile(path, evalCtx, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills in defaults and rejects anything that would fail halfway
// into a render.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output path must not be empty")
	}

	worlds := map[string]*WorldConfigBlock{}
	for _, world := range c.Worlds {
		if _, ok := worlds[world.Name]; ok {
			return fmt.Errorf("duplicate world %q", world.Name)
		}
		if world.Path == "" {
			return fmt.Errorf("world %q: path must not be empty", world.Name)
		}
		if world.Dimension == "" {
			world.Dimension = mc.DimensionOverworld
		}
		if world.Crop != nil {
			if _, err := world.Crop.WorldCrop(); err != nil {
				return fmt.Errorf("world %q: %w", world.Name, err)
			}
		}
		worlds[world.Name] = world
	}

	if len(c.Maps) == 0 {
		return fmt.Errorf("config defines no maps")
	}
	seen := map[string]struct{}{}
	for _, m := range c.Maps {
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("duplicate map %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if _, ok := worlds[m.World]; !ok {
			return fmt.Errorf("map %q: unknown world %q", m.Name, m.World)
		}
		if err := m.validate(); err != nil {
			return fmt.Errorf("map %q: %w", m.Name, err)
		}
	}
	return nil
}

func (m *MapConfigBlock) validate() error {
	if m.View == "" {
		m.View = "isometric"
	}
	view, err := ParseView(m.View)
	if err != nil {
		return err
	}
	m.view = view

	if len(m.Rotations) == 0 {
		m.Rotations = []string{"tl"}
	}
	m.rotations = m.rotations[:0]
	for _, name := range m.Rotations {
		r, err := ParseRotation(name)
		if err != nil {
			return err
		}
		for _, prev := range m.rotations {
			if prev == r {
				return fmt.Errorf("duplicate rotation %q", name)
			}
		}
		m.rotations = append(m.rotations, r)
	}

	if m.TextureSize == 0 {
		m.TextureSize = 12
	}
	if m.TextureSize < 2 || m.TextureSize > 64 {
		return fmt.Errorf("texture_size %d out of range (2..64)", m.TextureSize)
	}
	if m.TextureSize%2 != 0 {
		// the isometric pixel grid is built from half-texture steps
		return fmt.Errorf("texture_size %d must be even", m.TextureSize)
	}
	if m.TextureBlur < 0 {
		return fmt.Errorf("texture_blur must not be negative")
	}
	if m.TileWidth == 0 {
		m.TileWidth = 1
	}
	if m.TileWidth < 1 {
		return fmt.Errorf("tile_width must be at least 1")
	}

	switch m.ImageFormat {
	case "":
		m.ImageFormat = "png"
	case "png", "jpg":
	case "jpeg":
		m.ImageFormat = "jpg"
	default:
		return fmt.Errorf("unknown image_format %q (expected png or jpg)", m.ImageFormat)
	}
	if m.JPEGQuality == 0 {
		m.JPEGQuality = 85
	}
	if m.JPEGQuality < 1 || m.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality %d out of range (1..100)", m.JPEGQuality)
	}

	if m.BackgroundColor == "" {
		m.BackgroundColor = "#dddddd"
	}
	background, err := ParseHexColor(m.BackgroundColor)
	if err != nil {
		return err
	}
	m.background = background

	if m.WaterOpacity != nil && (*m.WaterOpacity < 0 || *m.WaterOpacity > 1) {
		return fmt.Errorf("water_opacity %v out of range (0..1)", *m.WaterOpacity)
	}
	return nil
}

func (c *Config) World(name string) *WorldConfigBlock {
	for _, world := range c.Worlds {
		if world.Name == name {
			return world
		}
	}
	return nil
}

func (c *Config) Map(name string) *MapConfigBlock {
	for _, m := range c.Maps {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// WorldCrop translates the block into the reader's crop. Radius selects a
// circular crop and cannot be combined with the rectangle bounds; vertical
// bounds apply to both shapes.
func (b *CropConfigBlock) WorldCrop() (*mc.WorldCrop, error) {
	crop := &mc.WorldCrop{}
	if b.MinY != nil {
		crop.MinY, crop.HasMinY = *b.MinY, true
	}
	if b.MaxY != nil {
		crop.MaxY, crop.HasMaxY = *b.MaxY, true
	}

	rect := b.MinX != nil || b.MaxX != nil || b.MinZ != nil || b.MaxZ != nil
	if b.Radius != nil {
		if rect {
			return nil, fmt.Errorf("crop cannot mix radius with rectangle bounds")
		}
		if *b.Radius <= 0 {
			return nil, fmt.Errorf("crop radius must be positive")
		}
		crop.Type = mc.CropCircle
		crop.Radius = *b.Radius
		if b.CenterX != nil {
			crop.CenterX = *b.CenterX
		}
		if b.CenterZ != nil {
			crop.CenterZ = *b.CenterZ
		}
		return crop, nil
	}
	if b.CenterX != nil || b.CenterZ != nil {
		return nil, fmt.Errorf("crop center requires a radius")
	}
	if !rect {
		// vertical-only crop
		return crop, nil
	}
	crop.Type = mc.CropRect
	if b.MinX != nil {
		crop.MinX, crop.HasMinX = *b.MinX, true
	}
	if b.MaxX != nil {
		crop.MaxX, crop.HasMaxX = *b.MaxX, true
	}
	if b.MinZ != nil {
		crop.MinZ, crop.HasMinZ = *b.MinZ, true
	}
	if b.MaxZ != nil {
		crop.MaxZ, crop.HasMaxZ = *b.MaxZ, true
	}
	if crop.HasMinX && crop.HasMaxX && crop.MinX > crop.MaxX {
		return nil, fmt.Errorf("crop min_x exceeds max_x")
	}
	if crop.HasMinZ && crop.HasMaxZ && crop.MinZ > crop.MaxZ {
		return nil, fmt.Errorf("crop min_z exceeds max_z")
	}
	return crop, nil
}

// RenderView returns the parsed view; valid after Validate.
func (m *MapConfigBlock) RenderView() View { return m.view }

// RotationList returns the parsed rotations; valid after Validate.
func (m *MapConfigBlock) RotationList() []int { return m.rotations }

// Background returns the parsed background color; valid after Validate.
func (m *MapConfigBlock) Background() rgba.Pixel { return m.background }

// WaterOpacityValue defaults to fully opaque water (the texture alpha still
// applies).
func (m *MapConfigBlock) WaterOpacityValue() float64 {
	if m.WaterOpacity == nil {
		return 1
	}
	return *m.WaterOpacity
}

// ParseHexColor reads a #rrggbb color attribute.
func ParseHexColor(repr string) (rgba.Pixel, error) {
	hexPart := strings.TrimPrefix(repr, "#")
	if len(hexPart) != 6 || hexPart == repr {
		return 0, fmt.Errorf("invalid color %q (expected #rrggbb)", repr)
	}
	v, err := strconv.ParseUint(hexPart, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q (expected #rrggbb)", repr)
	}
	return rgba.NewPixel(uint8(v>>16), uint8(v>>8), uint8(v), 255), nil
}
