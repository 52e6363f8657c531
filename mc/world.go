package mc

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/save"
)

// Vanilla dimension names.
const (
	DimensionOverworld = "overworld"
	DimensionNether    = "nether"
	DimensionEnd       = "end"
)

func dimensionRegionDir(dimension string) (string, error) {
	switch dimension {
	case "", DimensionOverworld:
		return "region", nil
	case DimensionNether:
		return filepath.Join("DIM-1", "region"), nil
	case DimensionEnd:
		return filepath.Join("DIM1", "region"), nil
	}
	return "", fmt.Errorf("unknown dimension %q", dimension)
}

// World indexes one dimension of a world save: which regions exist, which
// chunks they contain and when those chunks were last written. Rotation and
// crop must be set before Load; all positions exposed afterwards are in
// query space and filtered down to the crop area.
//
// A loaded world is immutable and safe to share between workers; chunk data
// is read through per-worker WorldCaches.
type World struct {
	Path      string
	Dimension string

	rotation  int
	crop      *WorldCrop
	regionDir string
	level     *save.Level
	regions   map[RegionPos]string
	chunks    map[ChunkPos]uint32
}

func NewWorld(path, dimension string) (*World, error) {
	dir, err := dimensionRegionDir(dimension)
	if err != nil {
		return nil, err
	}
	return &World{
		Path:      path,
		Dimension: dimension,
		regionDir: filepath.Join(path, dir),
	}, nil
}

func (w *World) SetRotation(count int) {
	w.rotation = count & 3
}

func (w *World) SetWorldCrop(crop *WorldCrop) {
	w.crop = crop
}

func (w *World) Rotation() int { return w.rotation }

func (w *World) Crop() *WorldCrop { return w.crop }

// Load lists the region files of the dimension and reads every region's
// headers to build the chunk index. A region with a corrupt header fails the
// whole world; the caller decides whether dependent maps are skipped.
func (w *World) Load() error {
	entries, err := os.ReadDir(w.regionDir)
	if err != nil {
		return fmt.Errorf("failed to list region directory: %w", err)
	}

	w.regions = make(map[RegionPos]string)
	w.chunks = make(map[ChunkPos]uint32)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseRegionFilename(e.Name()); !ok {
			continue
		}
		path := filepath.Join(w.regionDir, e.Name())
		reg, err := NewRegionFile(path)
		if err != nil {
			return err
		}
		if !w.crop.ContainsRegion(reg.Pos()) {
			continue
		}
		reg.SetRotation(w.rotation)
		reg.SetWorldCrop(w.crop)
		if err := reg.ReadHeaders(); err != nil {
			return fmt.Errorf("failed to read region %s: %w", e.Name(), err)
		}
		w.regions[reg.Pos()] = path
		for _, pos := range reg.ContainingChunks() {
			w.chunks[pos] = reg.ChunkTimestamp(pos)
		}
	}

	w.readLevel()
	return nil
}

// readLevel pulls level.dat for naming and spawn metadata. The file is
// optional: plenty of server-side world copies ship without it.
func (w *World) readLevel() {
	f, err := os.Open(filepath.Join(w.Path, "level.dat"))
	if err != nil {
		return
	}
	defer f.Close()
	lv, err := save.ReadLevel(f)
	if err != nil {
		log.Printf("[world] ignoring unreadable level.dat in %s: %s", w.Path, err)
		return
	}
	w.level = &lv
}

// Name returns the level name from level.dat, falling back to the directory
// base name.
func (w *World) Name() string {
	if w.level != nil && w.level.Data.LevelName != "" {
		return w.level.Data.LevelName
	}
	return filepath.Base(w.Path)
}

// Spawn returns the world spawn point, or the origin when level.dat was
// missing.
func (w *World) Spawn() BlockPos {
	if w.level == nil {
		return BlockPos{}
	}
	p := BlockPos{
		X: int(w.level.Data.SpawnX),
		Y: int(w.level.Data.SpawnY),
		Z: int(w.level.Data.SpawnZ),
	}
	return p.Rotate(w.rotation)
}

// Regions returns the query-space positions of all regions in the crop area.
func (w *World) Regions() []RegionPos {
	out := make([]RegionPos, 0, len(w.regions))
	for pos := range w.regions {
		out = append(out, pos)
	}
	return out
}

func (w *World) HasRegion(pos RegionPos) bool {
	_, ok := w.regions[pos]
	return ok
}

// RegionPath returns the on-disk file backing the region at the query-space
// position.
func (w *World) RegionPath(pos RegionPos) (string, bool) {
	path, ok := w.regions[pos]
	return path, ok
}

// Chunks returns the query-space positions of all chunks in the crop area.
func (w *World) Chunks() []ChunkPos {
	out := make([]ChunkPos, 0, len(w.chunks))
	for pos := range w.chunks {
		out = append(out, pos)
	}
	return out
}

func (w *World) HasChunk(pos ChunkPos) bool {
	_, ok := w.chunks[pos]
	return ok
}

// ChunkTimestamp returns the region-header modification time of the chunk,
// or 0 when the chunk does not exist.
func (w *World) ChunkTimestamp(pos ChunkPos) uint32 {
	return w.chunks[pos]
}

// openRegion reads the full region backing the query-space position.
func (w *World) openRegion(pos RegionPos) (*RegionFile, error) {
	path, ok := w.regions[pos]
	if !ok {
		return nil, fmt.Errorf("no region at %d,%d", pos.X, pos.Z)
	}
	reg, err := NewRegionFile(path)
	if err != nil {
		return nil, err
	}
	reg.SetRotation(w.rotation)
	reg.SetWorldCrop(w.crop)
	if err := reg.Read(); err != nil {
		return nil, fmt.Errorf("failed to read region %s: %w", filepath.Base(path), err)
	}
	return reg, nil
}
