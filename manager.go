package quarry

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/web"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

// RenderBehavior picks how the required tile set of a map rotation is found.
type RenderBehavior int

const (
	// RenderAuto re-renders tiles whose chunks changed since the last run,
	// or everything that is missing when no run is recorded.
	RenderAuto RenderBehavior = iota
	// RenderSkip renders nothing and leaves the stored metadata untouched.
	RenderSkip
	// RenderForce re-renders every tile.
	RenderForce
)

func (b RenderBehavior) String() string {
	switch b {
	case RenderSkip:
		return "skip"
	case RenderForce:
		return "force"
	default:
		return "auto"
	}
}

// RenderBehaviors assigns a behavior per map or per single rotation. The nil
// value treats everything as auto.
type RenderBehaviors struct {
	fallback  RenderBehavior
	maps      map[string]RenderBehavior
	rotations map[string]RenderBehavior
}

func NewRenderBehaviors() *RenderBehaviors {
	return &RenderBehaviors{
		maps:      map[string]RenderBehavior{},
		rotations: map[string]RenderBehavior{},
	}
}

// Set assigns a behavior to "map", "map:rotation" or "@all". Unknown map or
// rotation names are rejected so a typo cannot silently skip work.
func (b *RenderBehaviors) Set(cfg *Config, spec string, behavior RenderBehavior) error {
	if spec == "@all" {
		b.fallback = behavior
		return nil
	}
	name, rotation, hasRotation := strings.Cut(spec, ":")
	mapCfg := cfg.Map(name)
	if mapCfg == nil {
		return fmt.Errorf("unknown map %q", name)
	}
	if !hasRotation {
		b.maps[name] = behavior
		return nil
	}
	r, err := ParseRotation(rotation)
	if err != nil {
		return err
	}
	for _, known := range mapCfg.RotationList() {
		if known == r {
			b.rotations[name+":"+RotationLabel(r)] = behavior
			return nil
		}
	}
	return fmt.Errorf("map %q does not render rotation %q", name, rotation)
}

// For returns the behavior of one map rotation. A rotation entry wins over a
// map entry, which wins over the default.
func (b *RenderBehaviors) For(mapName string, rotation int) RenderBehavior {
	if b == nil {
		return RenderAuto
	}
	if v, ok := b.rotations[mapName+":"+RotationLabel(rotation)]; ok {
		return v
	}
	if v, ok := b.maps[mapName]; ok {
		return v
	}
	return b.fallback
}

// Environment carries the cross-cutting dependencies of a render run. Zero
// fields fall back to process defaults, so tests can capture logs and
// metadata without touching globals.
type Environment struct {
	Logger   *log.Logger
	Store    *web.Store
	Progress ProgressFunc
}

// Manager runs the render plan of a config: load every referenced world,
// share zoom depths, then render each map rotation with its behavior.
// Failures disable the smallest scope they can. A broken world skips its
// maps, a broken texture pack skips one map, a failed tile costs one tile,
// and everything else still runs; the returned error aggregates all of it.
type Manager struct {
	Config    *Config
	Env       *Environment
	Behaviors *RenderBehaviors
	// Threads caps the render workers per map rotation. Zero falls back to
	// the config's concurrency, then to GOMAXPROCS.
	Threads int
}

func (m *Manager) logf(format string, args ...any) {
	logger := log.Default()
	if m.Env != nil && m.Env.Logger != nil {
		logger = m.Env.Logger
	}
	logger.Printf(format, args...)
}

func (m *Manager) progress() ProgressFunc {
	if m.Env != nil {
		return m.Env.Progress
	}
	return nil
}

func (m *Manager) threads() int {
	if m.Threads > 0 {
		return m.Threads
	}
	if m.Config.Concurrency > 0 {
		return m.Config.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (m *Manager) metadataStore() *web.Store {
	if m.Env != nil && m.Env.Store != nil {
		return m.Env.Store
	}
	return web.NewStore(m.Config.Output.Path)
}

func (m *Manager) tileOutput(mapCfg *MapConfigBlock, rotation int) *TileOutput {
	return &TileOutput{
		Dir:        filepath.Join(m.Config.Output.Path, mapCfg.Name, RotationLabel(rotation)),
		Format:     mapCfg.ImageFormat,
		Quality:    mapCfg.JPEGQuality,
		Background: mapCfg.Background(),
	}
}

// skipEntirely reports whether every rotation of the map is set to skip.
// Such maps are not even scanned, so their stored metadata stays untouched.
func (m *Manager) skipEntirely(mapCfg *MapConfigBlock) bool {
	for _, rotation := range mapCfg.RotationList() {
		if m.Behaviors.For(mapCfg.Name, rotation) != RenderSkip {
			return false
		}
	}
	return true
}

// managerRun is the state threaded through one Run call.
type managerRun struct {
	store    *web.Store
	registry *mc.BlockRegistry
	scan     *worldScan
	// start is the unix time the run began; successful rotations record it
	// so the next auto render re-checks anything modified mid-run.
	start int64
}

// Run executes the render plan. The context cancels between tiles; whatever
// is on disk stays either the old version or a complete new one.
func (m *Manager) Run(ctx context.Context) error {
	start := time.Now().Unix()
	if err := os.MkdirAll(m.Config.Output.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	store := m.metadataStore()
	if err := store.Load(); err != nil {
		m.logf("[quarry] ignoring unreadable viewer metadata: %s", err)
	}

	scan, errs := m.scanWorlds(store)
	run := &managerRun{
		store:    store,
		registry: mc.NewBlockRegistry(),
		scan:     scan,
		start:    start,
	}

	for _, mapCfg := range m.Config.Maps {
		if ctx.Err() != nil {
			break
		}
		if m.skipEntirely(mapCfg) {
			m.logf("[quarry] skipping map %q", mapCfg.Name)
			continue
		}
		if _, broken := scan.failed[mapCfg.World]; broken {
			m.logf("[quarry] skipping map %q: world %q failed to load", mapCfg.Name, mapCfg.World)
			continue
		}
		if err := m.processMap(ctx, run, mapCfg); err != nil {
			m.logf("[quarry] map %q: %s", mapCfg.Name, err)
			errs = multierror.Append(errs, fmt.Errorf("map %q: %w", mapCfg.Name, err))
		}
		// persist after every map so an aborted run keeps what it finished
		if err := store.Save(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if ctx.Err() != nil {
		errs = multierror.Append(errs, ctx.Err())
	}
	return errs.ErrorOrNil()
}

type scanKey struct {
	world    string
	rotation int
}

type tileSetKey struct {
	world     string
	view      View
	tileWidth int
	rotation  int
}

// tileSetGroup keys the maps that must agree on a zoom depth: same world,
// same view, same tile width.
type tileSetGroup struct {
	world     string
	view      View
	tileWidth int
}

// worldScan holds every world and tile set the render plan needs, plus the
// shared depth chosen per map.
type worldScan struct {
	worlds   map[scanKey]*mc.World
	tileSets map[tileSetKey]*TileSet
	depths   map[string]int
	failed   map[string]error
}

// scanWorlds loads each referenced world once per rotation and projects its
// tile grid. Maps sharing a world, view and tile width share tile sets, and
// every rotation of a map gets the same depth so the viewer can switch
// rotations without re-anchoring. A depth stored by an earlier run never
// shrinks; the tiles on disk are already that deep.
func (m *Manager) scanWorlds(store *web.Store) (*worldScan, *multierror.Error) {
	scan := &worldScan{
		worlds:   map[scanKey]*mc.World{},
		tileSets: map[tileSetKey]*TileSet{},
		depths:   map[string]int{},
		failed:   map[string]error{},
	}
	var errs *multierror.Error
	groupDepth := map[tileSetGroup]int{}

	for _, mapCfg := range m.Config.Maps {
		if m.skipEntirely(mapCfg) {
			continue
		}
		worldCfg := m.Config.World(mapCfg.World)
		if _, broken := scan.failed[worldCfg.Name]; broken {
			continue
		}
		group := tileSetGroup{worldCfg.Name, mapCfg.RenderView(), mapCfg.TileWidth}
		for _, rotation := range mapCfg.RotationList() {
			key := scanKey{worldCfg.Name, rotation}
			world, ok := scan.worlds[key]
			if !ok {
				loaded, err := m.loadWorld(worldCfg, rotation)
				if err != nil {
					scan.failed[worldCfg.Name] = err
					m.logf("[quarry] failed to load world %q: %s", worldCfg.Name, err)
					errs = multierror.Append(errs, fmt.Errorf("world %q: %w", worldCfg.Name, err))
					break
				}
				world = loaded
				scan.worlds[key] = world
			}
			tsKey := tileSetKey{worldCfg.Name, mapCfg.RenderView(), mapCfg.TileWidth, rotation}
			tiles, ok := scan.tileSets[tsKey]
			if !ok {
				tiles = NewTileSet(world, mapCfg.RenderView(), mapCfg.TileWidth)
				scan.tileSets[tsKey] = tiles
				m.logf("[quarry] scanned %s/%s %s: %s tiles, depth %d",
					worldCfg.Name, RotationLabel(rotation), mapCfg.RenderView(),
					humanize.Comma(int64(tiles.Len())), tiles.Depth())
			}
			if tiles.Depth() > groupDepth[group] {
				groupDepth[group] = tiles.Depth()
			}
		}
	}

	for _, mapCfg := range m.Config.Maps {
		if m.skipEntirely(mapCfg) {
			continue
		}
		if _, broken := scan.failed[mapCfg.World]; broken {
			continue
		}
		group := tileSetGroup{mapCfg.World, mapCfg.RenderView(), mapCfg.TileWidth}
		if meta := store.Lookup(mapCfg.Name); meta != nil && meta.MaxZoom > groupDepth[group] {
			groupDepth[group] = meta.MaxZoom
		}
	}

	for _, mapCfg := range m.Config.Maps {
		if m.skipEntirely(mapCfg) {
			continue
		}
		if _, broken := scan.failed[mapCfg.World]; broken {
			continue
		}
		group := tileSetGroup{mapCfg.World, mapCfg.RenderView(), mapCfg.TileWidth}
		depth := groupDepth[group]
		scan.depths[mapCfg.Name] = depth
		for _, rotation := range mapCfg.RotationList() {
			key := tileSetKey{mapCfg.World, mapCfg.RenderView(), mapCfg.TileWidth, rotation}
			if tiles := scan.tileSets[key]; tiles != nil {
				tiles.SetDepth(depth)
			}
		}
	}
	return scan, errs
}

func (m *Manager) loadWorld(cfg *WorldConfigBlock, rotation int) (*mc.World, error) {
	world, err := mc.NewWorld(cfg.Path, cfg.Dimension)
	if err != nil {
		return nil, err
	}
	if rotation != 0 {
		world.SetRotation(rotation)
	}
	if cfg.Crop != nil {
		crop, err := cfg.Crop.WorldCrop()
		if err != nil {
			return nil, err
		}
		world.SetWorldCrop(crop)
	}
	if err := world.Load(); err != nil {
		return nil, err
	}
	m.logf("[quarry] loaded world %q (%s) rotation %s: %s chunks",
		cfg.Name, world.Name(), RotationLabel(rotation), humanize.Comma(int64(len(world.Chunks()))))
	return world, nil
}

// processMap renders every rotation of one map. The texture pack loads once;
// when it cannot, the whole map is skipped and its metadata stays untouched.
func (m *Manager) processMap(ctx context.Context, run *managerRun, mapCfg *MapConfigBlock) error {
	pack, err := NewTexturePack(mapCfg.TextureDir, mapCfg.TextureSize, mapCfg.TextureBlur)
	if err != nil {
		return err
	}

	view := mapCfg.RenderView()
	depth := run.scan.depths[mapCfg.Name]
	width, height := view.TileSize(mapCfg.TextureSize, mapCfg.TileWidth)

	// grow every rotation directory before anything renders, skipped ones
	// included, so all rotations stay at the shared depth
	meta := run.store.Map(mapCfg.Name)
	if meta.MaxZoom >= 0 && depth > meta.MaxZoom {
		m.logf("[quarry] growing %q tile trees from depth %d to %d", mapCfg.Name, meta.MaxZoom, depth)
		for _, rotation := range mapCfg.RotationList() {
			out := m.tileOutput(mapCfg, rotation)
			for level := meta.MaxZoom; level < depth; level++ {
				if err := m.growTree(out, level, width, height); err != nil {
					return fmt.Errorf("failed to grow tile tree: %w", err)
				}
			}
		}
	}

	meta.World = mapCfg.World
	meta.View = view.String()
	meta.ImageFormat = mapCfg.ImageFormat
	meta.TileWidth = mapCfg.TileWidth
	meta.TileSize = [2]int{width, height}
	meta.MaxZoom = depth
	meta.Rotations = meta.Rotations[:0]
	for _, rotation := range mapCfg.RotationList() {
		meta.Rotations = append(meta.Rotations, RotationLabel(rotation))
	}

	var errs *multierror.Error
	for _, rotation := range mapCfg.RotationList() {
		if ctx.Err() != nil {
			break
		}
		label := RotationLabel(rotation)
		tiles := run.scan.tileSets[tileSetKey{mapCfg.World, view, mapCfg.TileWidth, rotation}]
		offset := tiles.Offset()
		meta.TileOffsets[label] = [2]int{offset.X, offset.Y}

		behavior := m.Behaviors.For(mapCfg.Name, rotation)
		if behavior == RenderSkip {
			m.logf("[quarry] skipping %s/%s", mapCfg.Name, label)
			continue
		}
		if err := m.renderRotation(ctx, run, mapCfg, pack, tiles, rotation, behavior, meta); err != nil {
			m.logf("[quarry] %s", err)
			errs = multierror.Append(errs, err)
		}
	}

	if mapCfg.RenderSigns && ctx.Err() == nil {
		if err := m.exportSigns(run, mapCfg); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to export markers: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// renderRotation computes the required tile set per the behavior and runs the
// dispatcher over it. The last-render stamp only advances when everything
// succeeded, so failed tiles are retried by the next auto run.
func (m *Manager) renderRotation(ctx context.Context, run *managerRun, mapCfg *MapConfigBlock, pack *TexturePack, tiles *TileSet, rotation int, behavior RenderBehavior, meta *web.MapMeta) error {
	label := RotationLabel(rotation)
	out := m.tileOutput(mapCfg, rotation)
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return err
	}

	tiles.ResetRequired()
	switch behavior {
	case RenderForce:
		tiles.MarkAll()
	default:
		if last := meta.LastRendered[label]; last > 0 {
			tiles.MarkSince(last)
		} else {
			tiles.MarkByFiletimes(out.Dir, mapCfg.ImageFormat)
		}
	}

	render, composite := tiles.RequiredCounts()
	if render+composite == 0 {
		m.logf("[quarry] %s/%s is up to date", mapCfg.Name, label)
		meta.LastRendered[label] = run.start
		return nil
	}
	m.logf("[quarry] rendering %s/%s: %s tiles, %s composites (%s)",
		mapCfg.Name, label, humanize.Comma(int64(render)), humanize.Comma(int64(composite)), behavior)

	images := NewBlockImages(pack, run.registry, BlockImageOptions{
		View:         mapCfg.RenderView(),
		Rotation:     rotation,
		WaterOpacity: mapCfg.WaterOpacityValue(),
		PreblitWater: mapCfg.PreblitWater,
	})
	dispatcher := &Dispatcher{
		Tiles:    tiles,
		Images:   images,
		World:    run.scan.worlds[scanKey{mapCfg.World, rotation}],
		Registry: run.registry,
		Output:   out,
		Threads:  m.threads(),
		Progress: m.progress(),
		Logger:   managerLogger(m.Env),
	}
	start := time.Now()
	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("failed to render %s/%s: %w", mapCfg.Name, label, err)
	}
	meta.LastRendered[label] = run.start
	m.logf("[quarry] finished rendering %s/%s in %dms (%d tiles)",
		mapCfg.Name, label, time.Since(start).Milliseconds(), render+composite)
	return nil
}

func managerLogger(env *Environment) *log.Logger {
	if env != nil {
		return env.Logger
	}
	return nil
}

// growTree deepens the tile tree under out by one level. Each root quadrant
// subtree becomes the opposite-quadrant child below its old digit, which is
// exactly where the tile grid re-addresses that content, and the tiles above
// the moved subtrees are rebuilt immediately by downscaling. Rotations that
// are skipped afterwards therefore stay complete.
func (m *Manager) growTree(out *TileOutput, oldDepth, width, height int) error {
	if oldDepth == 0 {
		// the single base tile is the world tile (0,0), which sits in the
		// bottom-right quadrant once the grid spans [-1,1)
		old := out.Path(TilePath{})
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, out.Path(TilePath{4})); err != nil {
				return err
			}
		}
		return m.writeComposite(out, TilePath{}, width, height)
	}
	for digit := uint8(1); digit <= 4; digit++ {
		opp := oppositeQuadrant(digit)
		dir := filepath.Join(out.Dir, strconv.Itoa(int(digit)))
		if _, err := os.Stat(dir); err == nil {
			moving := dir + ".moving"
			if err := os.Rename(dir, moving); err != nil {
				return err
			}
			if err := os.Mkdir(dir, 0o755); err != nil {
				return err
			}
			if err := os.Rename(moving, filepath.Join(dir, strconv.Itoa(int(opp)))); err != nil {
				return err
			}
		}
		oldFile := out.Path(TilePath{digit})
		if _, err := os.Stat(oldFile); err == nil {
			target := out.Path(TilePath{digit, opp})
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Rename(oldFile, target); err != nil {
				return err
			}
		}
		if err := m.writeComposite(out, TilePath{digit}, width, height); err != nil {
			return err
		}
	}
	return m.writeComposite(out, TilePath{}, width, height)
}

// writeComposite rebuilds one composite from whichever children exist on
// disk. No children leaves the tile absent rather than writing a blank.
func (m *Manager) writeComposite(out *TileOutput, path TilePath, width, height int) error {
	img, found := composeChildren(out, path, width, height, nil, func(child TilePath, err error) {
		m.logf("[quarry] failed to read tile %s: %s", child, err)
	})
	if !found {
		return nil
	}
	return out.Write(path, img)
}

// exportSigns extracts the sign entities of the map's world and stores them
// as viewer markers. The cache is built over an unrotated world so marker
// coordinates stay world coordinates no matter which rotations render.
func (m *Manager) exportSigns(run *managerRun, mapCfg *MapConfigBlock) error {
	worldCfg := m.Config.World(mapCfg.World)
	key := scanKey{worldCfg.Name, 0}
	world, ok := run.scan.worlds[key]
	if !ok {
		loaded, err := m.loadWorld(worldCfg, 0)
		if err != nil {
			return err
		}
		world = loaded
		run.scan.worlds[key] = world
	}

	cache := mc.NewWorldEntitiesCache(world)
	if err := cache.Update(); err != nil {
		m.logf("[quarry] markers for %q may be stale: %s", mapCfg.Name, err)
	}
	signs := cache.Signs(world.Crop())
	markers := make([]web.Marker, 0, len(signs))
	for _, sign := range signs {
		markers = append(markers, web.Marker{
			X:     sign.Pos.X,
			Y:     sign.Pos.Y,
			Z:     sign.Pos.Z,
			Lines: sign.Lines,
			Text:  sign.Text,
		})
	}
	m.logf("[quarry] exporting %s markers for %q", humanize.Comma(int64(len(markers))), mapCfg.Name)
	return run.store.SetMarkers(mapCfg.Name, markers)
}
