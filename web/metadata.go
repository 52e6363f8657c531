// Package web persists the metadata a map viewer reads alongside the tile
// trees: config.js with per-map zoom and tile parameters, and markers.json
// with exported sign markers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// config.js is JSON wrapped in an assignment so a viewer opened from file://
// can pull it in with a plain <script> tag instead of an XHR.
const (
	configName   = "config.js"
	markersName  = "markers.json"
	configPrefix = "var CONFIG = "
	configSuffix = ";"
)

// MapMeta is the viewer-facing description of one rendered map. The render
// manager mutates the fields in place and saves the store afterwards.
type MapMeta struct {
	Name        string `json:"name"`
	World       string `json:"world"`
	View        string `json:"view"`
	ImageFormat string `json:"imageFormat"`
	TileWidth   int    `json:"tileWidth"`
	// TileSize is the rendered tile's width and height in pixels.
	TileSize [2]int `json:"tileSize"`
	// MaxZoom is the depth of the tile tree. Every rotation of a map shares
	// it so viewer pans stay aligned when switching rotations. -1 means the
	// map has never been scanned.
	MaxZoom   int      `json:"maxZoom"`
	Rotations []string `json:"rotations"`
	// LastRendered holds, per rotation label, the unix time the last
	// successful render started.
	LastRendered map[string]int64 `json:"lastRendered"`
	// TileOffsets holds, per rotation label, the offset subtracted from
	// world tile coordinates when a crop recenters the map.
	TileOffsets map[string][2]int `json:"tileOffsets"`
}

// Marker is one exported sign.
type Marker struct {
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Z     int       `json:"z"`
	Lines [4]string `json:"lines"`
	Text  string    `json:"text"`
}

// Store reads and writes the viewer metadata files of one output directory.
// It is not safe for concurrent use; the render manager owns it.
type Store struct {
	dir  string
	maps []*MapMeta
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the location of config.js.
func (s *Store) Path() string { return filepath.Join(s.dir, configName) }

// Load reads config.js if it exists. A missing file leaves the store empty.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", configName, err)
	}
	body := strings.TrimSpace(string(raw))
	body = strings.TrimPrefix(body, configPrefix)
	body = strings.TrimSuffix(body, configSuffix)
	var cfg struct {
		Maps []*MapMeta `json:"maps"`
	}
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", configName, err)
	}
	for _, m := range cfg.Maps {
		if m.LastRendered == nil {
			m.LastRendered = map[string]int64{}
		}
		if m.TileOffsets == nil {
			m.TileOffsets = map[string][2]int{}
		}
	}
	s.maps = cfg.Maps
	return nil
}

// Save writes config.js atomically so the viewer never sees a torn file.
func (s *Store) Save() error {
	cfg := struct {
		Maps []*MapMeta `json:"maps"`
	}{Maps: s.maps}
	if cfg.Maps == nil {
		cfg.Maps = []*MapMeta{}
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.Path(), func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s%s%s\n", configPrefix, raw, configSuffix)
		return err
	})
}

// Lookup returns the record for name, or nil when the store has none.
func (s *Store) Lookup(name string) *MapMeta {
	for _, m := range s.maps {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Map returns the metadata record for name, creating an empty one on first
// use. The pointer stays valid for the life of the store.
func (s *Store) Map(name string) *MapMeta {
	if m := s.Lookup(name); m != nil {
		return m
	}
	m := &MapMeta{
		Name:         name,
		MaxZoom:      -1,
		LastRendered: map[string]int64{},
		TileOffsets:  map[string][2]int{},
	}
	s.maps = append(s.maps, m)
	return m
}

// Maps returns every known record in insertion order.
func (s *Store) Maps() []*MapMeta { return s.maps }

// SetMarkers replaces the marker list of one map and rewrites markers.json,
// preserving the markers of every other map.
func (s *Store) SetMarkers(mapName string, markers []Marker) error {
	path := filepath.Join(s.dir, markersName)
	all := map[string][]Marker{}
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", markersName, err)
	}
	if err == nil {
		if err := json.Unmarshal(raw, &all); err != nil {
			// a corrupt marker file is not worth failing a render over
			all = map[string][]Marker{}
		}
	}
	if markers == nil {
		markers = []Marker{}
	}
	all[mapName] = markers
	raw, err = json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(raw, '\n'))
		return err
	})
}

// writeAtomic writes through <path>.tmp, syncs, and renames into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
