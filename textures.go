package quarry

import (
	"archive/zip"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/b1naryth1ef/quarry/rgba"
	"github.com/nfnt/resize"
)

const (
	blockTexturePrefix = "assets/minecraft/textures/block/"
	colormapPrefix     = "assets/minecraft/textures/colormap/"
)

// TexturePack holds every block texture of a resource source, normalized to
// one square size, plus the grass and foliage colormaps. Sources are either
// an unpacked resource directory or a client jar.
type TexturePack struct {
	size int
	blur int

	textures map[string]*rgba.Image
	grass    *rgba.Image
	foliage  *rgba.Image
}

// NewTexturePack loads and normalizes a texture source. Every texture is
// resized to size x size; blur > 0 softens them afterwards, which reads
// better at small texture sizes.
func NewTexturePack(path string, size, blur int) (*TexturePack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture source: %w", err)
	}
	pack := &TexturePack{
		size:     size,
		blur:     blur,
		textures: map[string]*rgba.Image{},
	}
	if info.IsDir() {
		err = pack.loadDir(path)
	} else {
		err = pack.loadJar(path)
	}
	if err != nil {
		return nil, err
	}
	if len(pack.textures) == 0 {
		return nil, fmt.Errorf("no block textures found under %s", path)
	}
	return pack, nil
}

func (p *TexturePack) Size() int { return p.size }
func (p *TexturePack) Len() int  { return len(p.textures) }

// Texture returns the normalized texture by its short name ("stone"), or nil
// when the source does not carry it.
func (p *TexturePack) Texture(name string) *rgba.Image {
	return p.textures[name]
}

// GrassColormap returns the 256x256 grass climate colormap, or nil.
func (p *TexturePack) GrassColormap() *rgba.Image { return p.grass }

// FoliageColormap returns the 256x256 foliage climate colormap, or nil.
func (p *TexturePack) FoliageColormap() *rgba.Image { return p.foliage }

func (p *TexturePack) loadDir(root string) error {
	base := filepath.Join(root, "assets", "minecraft", "textures")
	if _, err := os.Stat(base); err != nil {
		base = root
	}
	blockDir := filepath.Join(base, "block")
	entries, err := os.ReadDir(blockDir)
	if err != nil {
		// loose layout, textures sit directly in the source dir
		blockDir = base
		entries, err = os.ReadDir(blockDir)
		if err != nil {
			return fmt.Errorf("failed to list textures: %w", err)
		}
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		img, err := rgba.ReadPNG(filepath.Join(blockDir, name))
		if err != nil {
			log.Printf("[textures] skipping %s: %s", name, err)
			continue
		}
		p.add(strings.TrimSuffix(name, ".png"), img)
	}
	p.grass = readColormap(filepath.Join(base, "colormap", "grass.png"))
	p.foliage = readColormap(filepath.Join(base, "colormap", "foliage.png"))
	return nil
}

func (p *TexturePack) loadJar(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open client jar: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".png") {
			continue
		}
		switch {
		case strings.HasPrefix(f.Name, blockTexturePrefix):
			name := strings.TrimPrefix(f.Name, blockTexturePrefix)
			if strings.Contains(name, "/") {
				continue
			}
			img, err := readZipPNG(f)
			if err != nil {
				log.Printf("[textures] skipping %s: %s", f.Name, err)
				continue
			}
			p.add(strings.TrimSuffix(name, ".png"), img)
		case f.Name == colormapPrefix+"grass.png":
			p.grass, err = readZipPNG(f)
			if err != nil {
				return fmt.Errorf("failed to read grass colormap: %w", err)
			}
		case f.Name == colormapPrefix+"foliage.png":
			p.foliage, err = readZipPNG(f)
			if err != nil {
				return fmt.Errorf("failed to read foliage colormap: %w", err)
			}
		}
	}
	return nil
}

func (p *TexturePack) add(name string, img *rgba.Image) {
	p.textures[name] = p.normalize(img)
}

// normalize crops animation strips down to their first frame and scales the
// texture to the pack size.
func (p *TexturePack) normalize(img *rgba.Image) *rgba.Image {
	if img.Height > img.Width {
		img = img.Clip(0, 0, img.Width, img.Width)
	}
	if img.Width != p.size || img.Height != p.size {
		img = rgba.FromImage(resize.Resize(uint(p.size), uint(p.size), img, resize.Lanczos3))
	}
	if p.blur > 0 {
		img = img.Blur(p.blur)
	}
	return img
}

func readColormap(path string) *rgba.Image {
	img, err := rgba.ReadPNG(path)
	if err != nil {
		return nil
	}
	return img
}

func readZipPNG(f *zip.File) (*rgba.Image, error) {
	fd, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	img, err := png.Decode(fd)
	if err != nil {
		return nil, err
	}
	return rgba.FromImage(img), nil
}
