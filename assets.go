package quarry

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ExtractTextures copies the block textures and climate colormaps out of a
// client jar into dest, laid out the way texture_dir sources are read:
// block/*.png plus colormap/grass.png and colormap/foliage.png. It returns
// the number of block textures written.
func ExtractTextures(jarPath, dest string) (int, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open client jar: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Join(dest, "block"), 0o755); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Join(dest, "colormap"), 0o755); err != nil {
		return 0, err
	}

	blocks := 0
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".png") {
			continue
		}
		var target string
		switch {
		case strings.HasPrefix(f.Name, blockTexturePrefix):
			name := strings.TrimPrefix(f.Name, blockTexturePrefix)
			if strings.Contains(name, "/") {
				continue
			}
			target = filepath.Join(dest, "block", name)
			blocks++
		case f.Name == colormapPrefix+"grass.png", f.Name == colormapPrefix+"foliage.png":
			target = filepath.Join(dest, "colormap", path.Base(f.Name))
		default:
			continue
		}
		if err := extractZipFile(f, target); err != nil {
			return blocks, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	if blocks == 0 {
		return 0, fmt.Errorf("no block textures found in %s", jarPath)
	}
	return blocks, nil
}

func extractZipFile(f *zip.File, target string) error {
	fd, err := f.Open()
	if err != nil {
		return err
	}
	defer fd.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, fd); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
