package mc

import "container/list"

// Cache sizes per worker. A tile only ever touches a handful of regions, but
// block queries revisit the same chunks thousands of times while walking
// rows, so chunks get the bigger budget.
const (
	regionCacheSize = 4
	chunkCacheSize  = 64
)

type lruEntry[K comparable, V any] struct {
	key K
	val V
	err error
}

// lruCache keeps the last cap values, including error results so a corrupt
// file is not re-read for every neighbouring lookup.
type lruCache[K comparable, V any] struct {
	cap   int
	order *list.List
	items map[K]*list.Element
}

func newLRUCache[K comparable, V any](cap int) *lruCache[K, V] {
	return &lruCache[K, V]{
		cap:   cap,
		order: list.New(),
		items: make(map[K]*list.Element, cap),
	}
}

func (c *lruCache[K, V]) get(key K) (V, error, bool) {
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, nil, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*lruEntry[K, V])
	return entry.val, entry.err, true
}

func (c *lruCache[K, V]) put(key K, val V, err error) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		entry := el.Value.(*lruEntry[K, V])
		entry.val, entry.err = val, err
		return
	}
	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, val: val, err: err})
	if c.order.Len() > c.cap {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*lruEntry[K, V]).key)
	}
}

// WorldCache gives one render worker cached access to a world's chunks. It
// is not safe for concurrent use; every worker owns its own cache over the
// shared read-only World.
type WorldCache struct {
	world    *World
	registry *BlockRegistry
	regions  *lruCache[RegionPos, *RegionFile]
	chunks   *lruCache[ChunkPos, *Chunk]
}

func NewWorldCache(world *World, registry *BlockRegistry) *WorldCache {
	return &WorldCache{
		world:    world,
		registry: registry,
		regions:  newLRUCache[RegionPos, *RegionFile](regionCacheSize),
		chunks:   newLRUCache[ChunkPos, *Chunk](chunkCacheSize),
	}
}

func (c *WorldCache) World() *World { return c.world }

// Region returns the fully read region at the query-space position, reading
// it from disk on first use.
func (c *WorldCache) Region(pos RegionPos) (*RegionFile, error) {
	if reg, err, ok := c.regions.get(pos); ok {
		return reg, err
	}
	reg, err := c.world.openRegion(pos)
	c.regions.put(pos, reg, err)
	return reg, err
}

// Chunk returns the decoded chunk at the query-space position. Chunks the
// world does not contain report ErrChunkNotFound without touching disk;
// decode failures are cached and repeat cheaply.
func (c *WorldCache) Chunk(pos ChunkPos) (*Chunk, error) {
	if !c.world.HasChunk(pos) {
		return nil, ErrChunkNotFound
	}
	if chunk, err, ok := c.chunks.get(pos); ok {
		return chunk, err
	}
	chunk, err := c.loadChunk(pos)
	c.chunks.put(pos, chunk, err)
	return chunk, err
}

func (c *WorldCache) loadChunk(pos ChunkPos) (*Chunk, error) {
	reg, err := c.Region(pos.Region())
	if err != nil {
		return nil, err
	}
	return reg.LoadChunk(pos, c.registry)
}

// BlockID resolves a single block, returning air for missing or broken
// chunks. Renderers use this for neighbour checks across chunk borders.
func (c *WorldCache) BlockID(pos BlockPos) BlockID {
	chunk, err := c.Chunk(pos.Chunk())
	if err != nil {
		return 0
	}
	return chunk.BlockID(pos)
}
