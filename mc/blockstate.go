package mc

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// BlockState is one observed block identity: a namespaced name plus its
// properties as decoded from the chunk palette.
type BlockState struct {
	Name       string
	Properties map[string]string
}

func NewBlockState(name string, properties map[string]string) BlockState {
	return BlockState{Name: name, Properties: properties}
}

// Property returns a property value or the fallback when unset.
func (s BlockState) Property(key, fallback string) string {
	if v, ok := s.Properties[key]; ok {
		return v
	}
	return fallback
}

// Variant is the canonical property form: sorted "key=value" pairs joined
// with commas. Two states are the same block iff name and variant match.
func (s BlockState) Variant() string {
	if len(s.Properties) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(s.Properties))
	for k, v := range s.Properties {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (s BlockState) String() string {
	variant := s.Variant()
	if variant == "" {
		return s.Name
	}
	return s.Name + "[" + variant + "]"
}

// ParseBlockState parses the String form back into a state.
func ParseBlockState(repr string) BlockState {
	open := strings.IndexByte(repr, '[')
	if open < 0 {
		return BlockState{Name: repr}
	}
	props := map[string]string{}
	body := strings.TrimSuffix(repr[open+1:], "]")
	for _, pair := range strings.Split(body, ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			props[k] = v
		}
	}
	return BlockState{Name: repr[:open], Properties: props}
}

// BlockID is a dense per-process handle for an interned block state. Id 0 is
// always minecraft:air, so zeroed buffers read as empty space.
type BlockID uint16

// BlockRegistry interns block states and hands out dense 16-bit ids. Many
// render workers intern concurrently, so lookups take a read lock and only
// first-time inserts pay for the write lock.
type BlockRegistry struct {
	mu     sync.RWMutex
	lookup map[string]map[string]BlockID
	states []BlockState
}

func NewBlockRegistry() *BlockRegistry {
	r := &BlockRegistry{lookup: map[string]map[string]BlockID{}}
	r.ID(BlockState{Name: "minecraft:air"})
	return r
}

// ID returns the id for the state, interning it on first sight.
func (r *BlockRegistry) ID(state BlockState) BlockID {
	variant := state.Variant()

	r.mu.RLock()
	if id, ok := r.lookup[state.Name][variant]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// another worker may have interned it between the locks
	variants, ok := r.lookup[state.Name]
	if !ok {
		variants = map[string]BlockID{}
		r.lookup[state.Name] = variants
	}
	if id, ok := variants[variant]; ok {
		return id
	}
	if len(r.states) > math.MaxUint16 {
		return 0
	}
	id := BlockID(len(r.states))
	variants[variant] = id
	r.states = append(r.states, state)
	return id
}

// State returns the interned state for an id.
func (r *BlockRegistry) State(id BlockID) (BlockState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.states) {
		return BlockState{}, false
	}
	return r.states[id], true
}

// Len is the number of interned states.
func (r *BlockRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
