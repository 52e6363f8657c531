package quarry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/b1naryth1ef/quarry/mc"
)

// TilePos addresses one base tile of a map. Coordinates are signed and, once a
// tile set has been centered, roughly symmetric around the origin.
type TilePos struct {
	X int
	Y int
}

func (t TilePos) Add(o TilePos) TilePos {
	return TilePos{X: t.X + o.X, Y: t.Y + o.Y}
}

func (t TilePos) Sub(o TilePos) TilePos {
	return TilePos{X: t.X - o.X, Y: t.Y - o.Y}
}

func (t TilePos) String() string {
	return fmt.Sprintf("%d,%d", t.X, t.Y)
}

// Path returns the quadrant digits addressing this tile in a tree of the given
// depth. The root covers [-2^(depth-1), 2^(depth-1)) on both axes and the
// digits are 1=top-left, 2=top-right, 3=bottom-left, 4=bottom-right.
func (t TilePos) Path(depth int) TilePath {
	size := 1 << depth
	minX := -(size / 2)
	minY := -(size / 2)
	path := make(TilePath, 0, depth)
	for size > 1 {
		size /= 2
		digit := uint8(1)
		if t.X >= minX+size {
			digit++
			minX += size
		}
		if t.Y >= minY+size {
			digit += 2
			minY += size
		}
		path = append(path, digit)
	}
	return path
}

// TilePath is a walk from the pyramid root down to a tile, one quadrant digit
// per zoom level. The empty path is the root tile.
type TilePath []uint8

func (p TilePath) Level() int {
	return len(p)
}

func (p TilePath) Parent() TilePath {
	return p[:len(p)-1]
}

func (p TilePath) Child(digit uint8) TilePath {
	child := make(TilePath, len(p)+1)
	copy(child, p)
	child[len(p)] = digit
	return child
}

// Tile returns the base tile position this path addresses when the path is as
// long as the tree is deep.
func (p TilePath) Tile() TilePos {
	size := 1 << len(p)
	pos := TilePos{X: -(size / 2), Y: -(size / 2)}
	for _, digit := range p {
		size /= 2
		if digit == 2 || digit == 4 {
			pos.X += size
		}
		if digit == 3 || digit == 4 {
			pos.Y += size
		}
	}
	return pos
}

func (p TilePath) String() string {
	if len(p) == 0 {
		return "base"
	}
	var b strings.Builder
	for i, digit := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(strconv.Itoa(int(digit)))
	}
	return b.String()
}

// FilePath returns the tile's location relative to the map directory, using
// one directory level per quadrant digit. The root tile is base.<ext>.
func (p TilePath) FilePath(ext string) string {
	if len(p) == 0 {
		return "base." + ext
	}
	parts := make([]string, len(p))
	for i, digit := range p {
		parts[i] = strconv.Itoa(int(digit))
	}
	parts[len(parts)-1] += "." + ext
	return filepath.Join(parts...)
}

// ParseTilePath parses the string form produced by String.
func ParseTilePath(s string) (TilePath, error) {
	if s == "base" {
		return TilePath{}, nil
	}
	parts := strings.Split(s, "/")
	path := make(TilePath, len(parts))
	for i, part := range parts {
		digit, err := strconv.Atoi(part)
		if err != nil || digit < 1 || digit > 4 {
			return nil, fmt.Errorf("invalid tile path %q", s)
		}
		path[i] = uint8(digit)
	}
	return path, nil
}

// oppositeQuadrant mirrors a quadrant digit through the tile center. When the
// tree grows one level, the old quadrant q subtree becomes the opposite child
// of the new level-1 tile q.
func oppositeQuadrant(digit uint8) uint8 {
	return 5 - digit
}

// TileSet is the result of scanning a world with a view: the base tiles the
// world draws into, the newest chunk timestamp behind each tile, the centering
// offset and the tree depth. Required flags are computed afterwards from one
// of the render behaviors.
type TileSet struct {
	view      View
	tileWidth int
	depth     int
	offset    TilePos

	// tiles maps centered render tile positions to the newest timestamp of
	// any chunk that can draw into them.
	tiles map[TilePos]uint32

	// nodes holds every tile path in the tree spanned by the render tiles,
	// composite levels included, keyed by TilePath.String.
	nodes map[string]bool

	requiredRender    map[TilePos]bool
	requiredComposite map[string]bool
}

// NewTileSet scans the world's chunk index and projects every chunk onto the
// tile grid of the view. Chunk data is never read; the projection uses the
// world's vertical bounds, so the set errs on the side of extra tiles.
func NewTileSet(world *mc.World, view View, tileWidth int) *TileSet {
	t := &TileSet{
		view:              view,
		tileWidth:         tileWidth,
		tiles:             map[TilePos]uint32{},
		nodes:             map[string]bool{},
		requiredRender:    map[TilePos]bool{},
		requiredComposite: map[string]bool{},
	}

	minY, maxY := world.Crop().BlockBounds()
	for _, pos := range world.Chunks() {
		stamp := world.ChunkTimestamp(pos)
		view.chunkTiles(pos, tileWidth, minY, maxY, func(tile TilePos) {
			if stamp > t.tiles[tile] {
				t.tiles[tile] = stamp
			}
		})
	}

	if world.Crop().Centered() {
		t.center()
	}
	t.computeDepth()
	t.rebuildNodes()
	return t
}

func (t *TileSet) rebuildNodes() {
	t.nodes = map[string]bool{}
	for pos := range t.tiles {
		path := pos.Path(t.depth)
		for {
			key := path.String()
			if t.nodes[key] {
				break
			}
			t.nodes[key] = true
			if len(path) == 0 {
				break
			}
			path = path.Parent()
		}
	}
}

// center translates the tile set so its bounding box straddles the root's
// split point, which keeps the tree depth minimal for cropped worlds far from
// 0,0. Only worlds with a centered crop are translated; everything else keeps
// world tile coordinates.
func (t *TileSet) center() {
	if len(t.tiles) == 0 {
		return
	}
	first := true
	var minX, maxX, minY, maxY int
	for pos := range t.tiles {
		if first {
			minX, maxX, minY, maxY = pos.X, pos.X, pos.Y, pos.Y
			first = false
			continue
		}
		if pos.X < minX {
			minX = pos.X
		}
		if pos.X > maxX {
			maxX = pos.X
		}
		if pos.Y < minY {
			minY = pos.Y
		}
		if pos.Y > maxY {
			maxY = pos.Y
		}
	}
	t.offset = TilePos{X: floorDiv(minX+maxX+1, 2), Y: floorDiv(minY+maxY+1, 2)}
	if t.offset == (TilePos{}) {
		return
	}
	centered := make(map[TilePos]uint32, len(t.tiles))
	for pos, stamp := range t.tiles {
		centered[pos.Sub(t.offset)] = stamp
	}
	t.tiles = centered
}

func (t *TileSet) computeDepth() {
	t.depth = 0
	for pos := range t.tiles {
		for !fitsDepth(pos, t.depth) {
			t.depth++
		}
	}
}

// fitsDepth reports whether a tile is addressable by a tree of the given
// depth. Depth zero is the degenerate single-tile tree.
func fitsDepth(pos TilePos, depth int) bool {
	if depth == 0 {
		return pos == TilePos{}
	}
	half := 1 << (depth - 1)
	return pos.X >= -half && pos.X < half && pos.Y >= -half && pos.Y < half
}

func (t *TileSet) View() View      { return t.view }
func (t *TileSet) TileWidth() int  { return t.tileWidth }
func (t *TileSet) Depth() int      { return t.depth }
func (t *TileSet) Offset() TilePos { return t.offset }
func (t *TileSet) Len() int        { return len(t.tiles) }

// WorldTile maps a centered tile position back to world tile coordinates for
// rendering.
func (t *TileSet) WorldTile(pos TilePos) TilePos {
	return pos.Add(t.offset)
}

// SetDepth grows the tree to a shared depth. Shrinking is never done; maps
// that share a tile grid keep the largest depth any of them needs. Tile
// positions are unaffected, only their paths from the root get longer.
func (t *TileSet) SetDepth(depth int) {
	if depth <= t.depth {
		return
	}
	t.depth = depth
	t.rebuildNodes()
}

// RenderTiles returns every base tile of the set in deterministic order.
func (t *TileSet) RenderTiles() []TilePos {
	tiles := make([]TilePos, 0, len(t.tiles))
	for pos := range t.tiles {
		tiles = append(tiles, pos)
	}
	sortTiles(tiles)
	return tiles
}

func (t *TileSet) HasTile(pos TilePos) bool {
	_, ok := t.tiles[pos]
	return ok
}

// TileStamp returns the newest chunk timestamp behind a render tile.
func (t *TileSet) TileStamp(pos TilePos) uint32 {
	return t.tiles[pos]
}

func (t *TileSet) RenderRequired(pos TilePos) bool {
	return t.requiredRender[pos]
}

func (t *TileSet) CompositeRequired(path TilePath) bool {
	return t.requiredComposite[path.String()]
}

// HasNode reports whether the tree spans a tile at this path, composite
// levels included.
func (t *TileSet) HasNode(path TilePath) bool {
	return t.nodes[path.String()]
}

// RequiredComposites returns the composite tiles marked for rebuilding,
// deepest levels first.
func (t *TileSet) RequiredComposites() []TilePath {
	paths := make([]TilePath, 0, len(t.requiredComposite))
	for key := range t.requiredComposite {
		path, _ := ParseTilePath(key)
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) > len(paths[j])
		}
		return paths[i].String() < paths[j].String()
	})
	return paths
}

// RequiredRenderTiles returns the base tiles marked for rendering, sorted.
func (t *TileSet) RequiredRenderTiles() []TilePos {
	tiles := make([]TilePos, 0, len(t.requiredRender))
	for pos := range t.requiredRender {
		tiles = append(tiles, pos)
	}
	sortTiles(tiles)
	return tiles
}

// RequiredCounts returns how many render and composite tiles are marked.
func (t *TileSet) RequiredCounts() (render, composite int) {
	return len(t.requiredRender), len(t.requiredComposite)
}

// MarkAll flags every render tile and every composite. Used by forced runs.
func (t *TileSet) MarkAll() {
	for pos := range t.tiles {
		t.requiredRender[pos] = true
	}
	for key := range t.nodes {
		path, _ := ParseTilePath(key)
		if len(path) < t.depth {
			t.requiredComposite[key] = true
		}
	}
}

// MarkSince flags render tiles whose newest chunk timestamp is after the
// given epoch second, then closes the set over ancestors.
func (t *TileSet) MarkSince(lastRender int64) {
	for pos, stamp := range t.tiles {
		if int64(stamp) > lastRender {
			t.requiredRender[pos] = true
		}
	}
	t.closeAncestors()
}

// MarkByFiletimes flags render tiles whose file under dir is missing or older
// than their newest chunk, then walks the composite tree marking parents of
// required children and composites whose own file is gone.
func (t *TileSet) MarkByFiletimes(dir, ext string) {
	for pos, stamp := range t.tiles {
		name := filepath.Join(dir, pos.Path(t.depth).FilePath(ext))
		info, err := os.Stat(name)
		if err != nil || info.ModTime().Before(time.Unix(int64(stamp), 0)) {
			t.requiredRender[pos] = true
		}
	}
	if t.depth == 0 {
		return
	}
	var walk func(path TilePath) bool
	walk = func(path TilePath) bool {
		if len(path) == t.depth {
			return t.requiredRender[path.Tile()]
		}
		required := false
		for digit := uint8(1); digit <= 4; digit++ {
			child := path.Child(digit)
			if !t.nodes[child.String()] {
				continue
			}
			if walk(child) {
				required = true
			}
		}
		if !required {
			if _, err := os.Stat(filepath.Join(dir, path.FilePath(ext))); err != nil {
				required = true
			}
		}
		if required {
			t.requiredComposite[path.String()] = true
		}
		return required
	}
	walk(TilePath{})
}

// MarkComposite flags a single composite tile, used after the tree grows and
// the tiles above the moved subtrees have to be rebuilt.
func (t *TileSet) MarkComposite(path TilePath) {
	if len(path) < t.depth {
		t.requiredComposite[path.String()] = true
	}
}

// ResetRequired clears all required flags.
func (t *TileSet) ResetRequired() {
	t.requiredRender = map[TilePos]bool{}
	t.requiredComposite = map[string]bool{}
}

func (t *TileSet) closeAncestors() {
	if t.depth == 0 {
		return
	}
	for pos := range t.requiredRender {
		path := pos.Path(t.depth)
		for len(path) > 0 {
			path = path.Parent()
			key := path.String()
			if t.requiredComposite[key] {
				break
			}
			t.requiredComposite[key] = true
		}
	}
}

func sortTiles(tiles []TilePos) {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Y != tiles[j].Y {
			return tiles[i].Y < tiles[j].Y
		}
		return tiles[i].X < tiles[j].X
	})
}
