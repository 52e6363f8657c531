package mc

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Tnze/go-mc/nbt"
)

// isJSONLine reports whether a sign line uses the json text format
// (mc >= 1.8): quoted string, json object or the literal null.
func isJSONLine(line string) bool {
	if line == "" {
		return false
	}
	return line == "null" ||
		(line[0] == '"' && line[len(line)-1] == '"') ||
		(line[0] == '{' && line[len(line)-1] == '}')
}

// extractTextFromJSON pulls the display text out of a decoded sign line,
// concatenating the recursive text/extra structure.
func extractTextFromJSON(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]interface{}:
		text, ok := v["text"].(string)
		if !ok {
			return "", errors.New("no string 'text' found")
		}
		var extra strings.Builder
		if raw, present := v["extra"]; present {
			arr, ok := raw.([]interface{})
			if !ok {
				return "", errors.New("'extra' must be an array")
			}
			for _, el := range arr {
				s, err := extractTextFromJSON(el)
				if err != nil {
					return "", err
				}
				extra.WriteString(s)
			}
		}
		return text + extra.String(), nil
	}
	return "", fmt.Errorf("unsupported json value %T", value)
}

func parseJSONLine(line string) string {
	var value interface{}
	if err := json.Unmarshal([]byte(line), &value); err != nil {
		log.Printf("[world] unable to parse sign line json %q: %s", line, err)
		return ""
	}
	text, err := extractTextFromJSON(value)
	if err != nil {
		log.Printf("[world] invalid json sign line (%s): %q", err, line)
		return ""
	}
	return text
}

// SignEntity is one sign with its position and display text.
type SignEntity struct {
	Pos   BlockPos
	Lines [4]string
	Text  string
}

// NewSignEntity decodes the line format (json lines only when all four lines
// use it, matching the game's writer) and joins the trimmed non-empty lines
// into the display text.
func NewSignEntity(pos BlockPos, lines [4]string) SignEntity {
	s := SignEntity{Pos: pos, Lines: lines}
	if isJSONLine(lines[0]) && isJSONLine(lines[1]) && isJSONLine(lines[2]) && isJSONLine(lines[3]) {
		for i, line := range lines {
			s.Lines[i] = parseJSONLine(line)
		}
	}
	var parts []string
	for _, line := range s.Lines {
		if t := strings.TrimSpace(line); t != "" {
			parts = append(parts, t)
		}
	}
	s.Text = strings.Join(parts, " ")
	return s
}

// signEntityNBT covers both the legacy Text1..Text4 sign layout and the
// 1.20 front_text form. Non-sign block entities decode with zero fields.
type signEntityNBT struct {
	ID        string `nbt:"id"`
	X         int32  `nbt:"x"`
	Y         int32  `nbt:"y"`
	Z         int32  `nbt:"z"`
	Text1     string `nbt:"Text1"`
	Text2     string `nbt:"Text2"`
	Text3     string `nbt:"Text3"`
	Text4     string `nbt:"Text4"`
	FrontText struct {
		Messages []string `nbt:"messages"`
	} `nbt:"front_text"`
}

func (e *signEntityNBT) isSign() bool {
	id := strings.TrimPrefix(e.ID, "minecraft:")
	return id == "Sign" || id == "sign" || strings.HasSuffix(id, "_sign")
}

func (e *signEntityNBT) lines() [4]string {
	if len(e.FrontText.Messages) > 0 {
		var lines [4]string
		copy(lines[:], e.FrontText.Messages)
		return lines
	}
	return [4]string{e.Text1, e.Text2, e.Text3, e.Text4}
}

type entitiesCacheChunk struct {
	X        int32            `nbt:"x"`
	Z        int32            `nbt:"z"`
	Entities []nbt.RawMessage `nbt:"entities"`
}

type entitiesCacheRegion struct {
	X      int32                `nbt:"x"`
	Z      int32                `nbt:"z"`
	Chunks []entitiesCacheChunk `nbt:"chunks"`
}

type entitiesCacheFile struct {
	Regions []entitiesCacheRegion `nbt:"regions"`
}

// WorldEntitiesCache extracts block entities from a world and keeps them in
// a gzipped NBT sidecar next to the region files, so incremental renders do
// not have to re-read every region for marker data. Build it over an
// unrotated world; sign positions stay in world coordinates and the viewer
// projects them per rotation.
type WorldEntitiesCache struct {
	world     *World
	cacheFile string
	entities  map[RegionPos]map[ChunkPos][]nbt.RawMessage
}

func NewWorldEntitiesCache(world *World) *WorldEntitiesCache {
	return &WorldEntitiesCache{
		world:     world,
		cacheFile: filepath.Join(world.regionDir, "entities.nbt.gz"),
		entities:  make(map[RegionPos]map[ChunkPos][]nbt.RawMessage),
	}
}

// readCacheFile loads the sidecar and returns its modification time, or 0
// when it is missing or unreadable (everything rescans).
func (c *WorldEntitiesCache) readCacheFile() int64 {
	st, err := os.Stat(c.cacheFile)
	if err != nil {
		return 0
	}
	f, err := os.Open(c.cacheFile)
	if err != nil {
		return 0
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		log.Printf("[world] ignoring corrupt entities cache %s: %s", c.cacheFile, err)
		return 0
	}
	var file entitiesCacheFile
	if _, err := nbt.NewDecoder(gz).Decode(&file); err != nil {
		log.Printf("[world] ignoring corrupt entities cache %s: %s", c.cacheFile, err)
		return 0
	}
	for _, region := range file.Regions {
		rpos := RegionPos{X: int(region.X), Z: int(region.Z)}
		chunks := make(map[ChunkPos][]nbt.RawMessage, len(region.Chunks))
		for _, chunk := range region.Chunks {
			chunks[ChunkPos{X: int(chunk.X), Z: int(chunk.Z)}] = chunk.Entities
		}
		c.entities[rpos] = chunks
	}
	return st.ModTime().Unix()
}

func (c *WorldEntitiesCache) writeCacheFile() error {
	file := entitiesCacheFile{Regions: make([]entitiesCacheRegion, 0, len(c.entities))}
	for rpos, chunks := range c.entities {
		region := entitiesCacheRegion{
			X:      int32(rpos.X),
			Z:      int32(rpos.Z),
			Chunks: make([]entitiesCacheChunk, 0, len(chunks)),
		}
		for cpos, entities := range chunks {
			region.Chunks = append(region.Chunks, entitiesCacheChunk{
				X:        int32(cpos.X),
				Z:        int32(cpos.Z),
				Entities: entities,
			})
		}
		sort.Slice(region.Chunks, func(i, j int) bool {
			if region.Chunks[i].Z != region.Chunks[j].Z {
				return region.Chunks[i].Z < region.Chunks[j].Z
			}
			return region.Chunks[i].X < region.Chunks[j].X
		})
		file.Regions = append(file.Regions, region)
	}
	sort.Slice(file.Regions, func(i, j int) bool {
		if file.Regions[i].Z != file.Regions[j].Z {
			return file.Regions[i].Z < file.Regions[j].Z
		}
		return file.Regions[i].X < file.Regions[j].X
	})

	f, err := os.Create(c.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create entities cache: %w", err)
	}
	gz := gzip.NewWriter(f)
	if err := nbt.NewEncoder(gz).Encode(file, ""); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode entities cache: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush entities cache: %w", err)
	}
	return f.Close()
}

// Update re-extracts block entities from every region whose file is newer
// than the cache, gating individual chunks on their header timestamps, and
// rewrites the sidecar. Broken regions and chunks are logged and skipped.
func (c *WorldEntitiesCache) Update() error {
	cacheTime := c.readCacheFile()

	for _, rpos := range c.world.Regions() {
		path, ok := c.world.RegionPath(rpos)
		if !ok {
			continue
		}
		if st, err := os.Stat(path); err == nil && st.ModTime().Unix() < cacheTime {
			continue
		}
		reg, err := c.world.openRegion(rpos)
		if err != nil {
			log.Printf("[world] skipping entities of region %d,%d: %s", rpos.X, rpos.Z, err)
			continue
		}
		for _, cpos := range reg.ContainingChunks() {
			if int64(reg.ChunkTimestamp(cpos)) < cacheTime {
				continue
			}
			c.updateChunk(reg, rpos, cpos)
		}
	}

	return c.writeCacheFile()
}

func (c *WorldEntitiesCache) updateChunk(reg *RegionFile, rpos RegionPos, cpos ChunkPos) {
	data, compression := reg.ChunkData(cpos)
	if len(data) == 0 {
		return
	}
	raw, err := decompressChunk(compression, data)
	if err != nil {
		log.Printf("[world] skipping entities of chunk %d,%d: %s", cpos.X, cpos.Z, err)
		return
	}
	var payload struct {
		BlockEntities []nbt.RawMessage `nbt:"block_entities"`
	}
	if err := nbt.Unmarshal(raw, &payload); err != nil {
		log.Printf("[world] skipping entities of chunk %d,%d: %s", cpos.X, cpos.Z, err)
		return
	}
	if c.entities[rpos] == nil {
		c.entities[rpos] = make(map[ChunkPos][]nbt.RawMessage)
	}
	c.entities[rpos][cpos] = payload.BlockEntities
}

// Signs returns the cached sign entities inside the crop area, ordered by
// position so output built from them is stable across runs.
func (c *WorldEntitiesCache) Signs(crop *WorldCrop) []SignEntity {
	var signs []SignEntity
	for rpos, chunks := range c.entities {
		if !crop.ContainsRegion(rpos) {
			continue
		}
		for cpos, entities := range chunks {
			if !crop.ContainsChunk(cpos) {
				continue
			}
			for _, raw := range entities {
				var entity signEntityNBT
				if err := raw.Unmarshal(&entity); err != nil {
					continue
				}
				if !entity.isSign() {
					continue
				}
				pos := BlockPos{X: int(entity.X), Y: int(entity.Y), Z: int(entity.Z)}
				if crop != nil && !crop.ContainsBlock(pos) {
					continue
				}
				signs = append(signs, NewSignEntity(pos, entity.lines()))
			}
		}
	}
	sort.Slice(signs, func(i, j int) bool {
		a, b := signs[i].Pos, signs[j].Pos
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return signs
}
