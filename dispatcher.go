package quarry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/b1naryth1ef/quarry/mc"
	"github.com/b1naryth1ef/quarry/rgba"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

// TileOutput writes and reads the tiles of one map rotation below a single
// directory, using the path layout the viewer expects.
type TileOutput struct {
	Dir        string
	Format     string
	Quality    int
	Background rgba.Pixel
}

func (o *TileOutput) Path(path TilePath) string {
	return filepath.Join(o.Dir, path.FilePath(o.Format))
}

func (o *TileOutput) Write(path TilePath, img *rgba.Image) error {
	name := o.Path(path)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	if o.Format == "jpg" {
		return img.WriteJPEG(name, o.Quality, o.Background)
	}
	return img.WritePNG(name)
}

func (o *TileOutput) Read(path TilePath) (*rgba.Image, error) {
	if o.Format == "jpg" {
		return rgba.ReadJPEG(o.Path(path))
	}
	return rgba.ReadPNG(o.Path(path))
}

// ProgressFunc is notified with the number of finished work units. done equals
// total exactly once.
type ProgressFunc func(done, total int)

// Dispatcher renders the required tiles of one map rotation. Base tiles fan
// out across Threads workers, each preferring its own root quadrant and
// stealing from the others once that drains; composite tiles become eligible
// as soon as every required child has been written, so the workers meet at
// most three times near the root.
type Dispatcher struct {
	Tiles    *TileSet
	Images   *BlockImages
	World    *mc.World
	Registry *mc.BlockRegistry
	Output   *TileOutput
	Threads  int
	Progress ProgressFunc
	Logger   *log.Logger
}

func (d *Dispatcher) logf(format string, args ...any) {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

// Run renders and composites every tile marked required, bottom-up. A
// cancelled context lets each worker finish its current tile, so every file
// on disk is either the old version or a complete new one. Failed tiles are
// logged and collected; composites above them still run against whatever
// file is on disk.
func (d *Dispatcher) Run(ctx context.Context) error {
	leaves := d.Tiles.RequiredRenderTiles()
	composites := d.Tiles.RequiredComposites()
	if len(leaves)+len(composites) == 0 {
		return nil
	}

	queue := newDispatchQueue(d.Tiles, leaves, composites)
	progress := &progressThrottle{fn: d.Progress}
	if progress.fn == nil {
		progress.fn = func(done, total int) {
			d.logf("[render] %s of %s tiles (%d%%)",
				humanize.Comma(int64(done)), humanize.Comma(int64(total)), done*100/total)
		}
	}

	workers := d.Threads
	if workers < 1 || len(leaves)+len(composites) <= 1 {
		workers = 1
	}

	// wake any worker stuck waiting for composite children when the context
	// dies while its siblings exit
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			queue.stop()
		case <-watcherDone:
		}
	}()

	if workers == 1 {
		d.work(ctx, 1, queue, progress)
	} else {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(quadrant uint8) {
				defer wg.Done()
				d.work(ctx, quadrant, queue, progress)
			}(uint8(i%4) + 1)
		}
		wg.Wait()
	}

	err := queue.err()
	if ctx.Err() != nil {
		err = multierror.Append(err, ctx.Err()).ErrorOrNil()
	}
	return err
}

// work pulls units until the queue drains or the context dies. Each worker
// owns a renderer and chunk cache; nothing below the queue is shared.
func (d *Dispatcher) work(ctx context.Context, quadrant uint8, queue *dispatchQueue, progress *progressThrottle) {
	cache := mc.NewWorldCache(d.World, d.Registry)
	renderer := d.Tiles.View().NewRenderer(d.Images, cache, d.Tiles.TileWidth())
	for ctx.Err() == nil {
		unit, ok := queue.take(quadrant)
		if !ok {
			return
		}
		var err error
		if unit.composite {
			err = d.compositeTile(unit.path)
		} else {
			err = d.renderTile(renderer, unit.pos, unit.path)
		}
		if err != nil {
			d.logf("[render] %s", err)
		}
		done, total := queue.complete(unit, err)
		progress.tick(done, total)
	}
}

func (d *Dispatcher) renderTile(renderer TileRenderer, pos TilePos, path TilePath) error {
	img, err := renderer.RenderTile(d.Tiles.WorldTile(pos))
	if err != nil {
		return fmt.Errorf("failed to render tile %s: %w", path, err)
	}
	if err := d.Output.Write(path, img); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", path, err)
	}
	return nil
}

// compositeTile shrinks the four children onto one canvas. Children outside
// the tree stay transparent; children whose file is missing, typically after
// a failed render on a fresh map, are skipped the same way.
func (d *Dispatcher) compositeTile(path TilePath) error {
	width, height := d.Tiles.View().TileSize(d.Images.TextureSize(), d.Tiles.TileWidth())
	img, _ := composeChildren(d.Output, path, width, height, d.Tiles.HasNode, func(child TilePath, err error) {
		d.logf("[render] failed to read child tile %s: %s", child, err)
	})
	if err := d.Output.Write(path, img); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", path, err)
	}
	return nil
}

// composeChildren shrinks whichever children can be read onto a fresh canvas,
// reporting whether any were. Children rejected by hasChild stay transparent.
// An unreadable file other than a missing one goes through onError and costs
// a quarter tile, not the whole branch.
func composeChildren(out *TileOutput, path TilePath, width, height int, hasChild func(TilePath) bool, onError func(TilePath, error)) (*rgba.Image, bool) {
	img := rgba.New(width, height)
	found := false
	for digit := uint8(1); digit <= 4; digit++ {
		child := path.Child(digit)
		if hasChild != nil && !hasChild(child) {
			continue
		}
		childImg, err := out.Read(child)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				onError(child, err)
			}
			continue
		}
		x, y := 0, 0
		if digit == 2 || digit == 4 {
			x = width / 2
		}
		if digit >= 3 {
			y = height / 2
		}
		img.SimpleBlit(childImg.ResizeHalf(), x, y)
		found = true
	}
	return img, found
}

type workUnit struct {
	pos       TilePos
	path      TilePath
	composite bool
}

// compositeState counts the children of one composite that are themselves
// work units this run. Children already on disk from earlier runs never
// block a composite.
type compositeState struct {
	path    TilePath
	pending int
}

// dispatchQueue hands out work units. Base tiles are bucketed by root
// quadrant digit so workers render disjoint subtrees; composites queue up in
// ready once their last required child completes.
type dispatchQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	leaves      [5][]workUnit
	ready       []workUnit
	pending     map[string]*compositeState
	outstanding int
	done        int
	total       int
	stopped     bool
	errs        []error
}

func newDispatchQueue(tiles *TileSet, leaves []TilePos, composites []TilePath) *dispatchQueue {
	q := &dispatchQueue{
		pending: map[string]*compositeState{},
		total:   len(leaves) + len(composites),
	}
	q.cond = sync.NewCond(&q.mu)
	q.outstanding = q.total

	depth := tiles.Depth()
	for _, pos := range leaves {
		path := pos.Path(depth)
		quadrant := uint8(0)
		if len(path) > 0 {
			quadrant = path[0]
		}
		q.leaves[quadrant] = append(q.leaves[quadrant], workUnit{pos: pos, path: path})
	}
	for _, path := range composites {
		state := &compositeState{path: path}
		for digit := uint8(1); digit <= 4; digit++ {
			child := path.Child(digit)
			if !tiles.HasNode(child) {
				continue
			}
			if len(child) == depth && tiles.RenderRequired(child.Tile()) {
				state.pending++
			} else if tiles.CompositeRequired(child) {
				state.pending++
			}
		}
		if state.pending == 0 {
			q.ready = append(q.ready, workUnit{path: path, composite: true})
		} else {
			q.pending[path.String()] = state
		}
	}
	return q
}

func (q *dispatchQueue) take(quadrant uint8) (workUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if unit, ok := q.next(quadrant); ok {
			return unit, true
		}
		if q.outstanding == 0 || q.stopped {
			return workUnit{}, false
		}
		q.cond.Wait()
	}
}

func (q *dispatchQueue) next(quadrant uint8) (workUnit, bool) {
	// composites first so finished subtrees fold up while their files are
	// still hot, own quadrant preferred
	if len(q.ready) > 0 {
		pick := len(q.ready) - 1
		for i, unit := range q.ready {
			if len(unit.path) > 0 && unit.path[0] == quadrant {
				pick = i
				break
			}
		}
		unit := q.ready[pick]
		q.ready = append(q.ready[:pick], q.ready[pick+1:]...)
		return unit, true
	}
	if unit, ok := q.popLeaf(quadrant); ok {
		return unit, true
	}
	for other := uint8(0); other < 5; other++ {
		if other == quadrant {
			continue
		}
		if unit, ok := q.popLeaf(other); ok {
			return unit, true
		}
	}
	return workUnit{}, false
}

func (q *dispatchQueue) popLeaf(quadrant uint8) (workUnit, bool) {
	n := len(q.leaves[quadrant])
	if n == 0 {
		return workUnit{}, false
	}
	unit := q.leaves[quadrant][n-1]
	q.leaves[quadrant] = q.leaves[quadrant][:n-1]
	return unit, true
}

// complete marks a unit finished, failed or not, and releases the parent
// composite once its last required child lands.
func (q *dispatchQueue) complete(unit workUnit, err error) (done, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstanding--
	q.done++
	if err != nil {
		q.errs = append(q.errs, err)
	}
	if len(unit.path) > 0 {
		if state, ok := q.pending[unit.path.Parent().String()]; ok {
			state.pending--
			if state.pending == 0 {
				delete(q.pending, state.path.String())
				q.ready = append(q.ready, workUnit{path: state.path, composite: true})
			}
		}
	}
	q.cond.Broadcast()
	return q.done, q.total
}

func (q *dispatchQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *dispatchQueue) err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var merr *multierror.Error
	for _, err := range q.errs {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// progressThrottle drops notifications closer than 100ms and a full percent
// apart. The final notification always fires.
type progressThrottle struct {
	mu       sync.Mutex
	fn       ProgressFunc
	lastTime time.Time
	lastPct  int
}

func (p *progressThrottle) tick(done, total int) {
	p.mu.Lock()
	pct := done * 100 / total
	now := time.Now()
	if done != total && pct < p.lastPct+1 && now.Sub(p.lastTime) < 100*time.Millisecond {
		p.mu.Unlock()
		return
	}
	p.lastPct, p.lastTime = pct, now
	p.mu.Unlock()
	p.fn(done, total)
}
