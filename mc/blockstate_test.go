package mc

import (
	"fmt"
	"sync"
	"testing"
)

func TestBlockStateVariant(t *testing.T) {
	tests := []struct {
		name  string
		state BlockState
		want  string
	}{
		{"no properties", NewBlockState("minecraft:stone", nil), ""},
		{"single", NewBlockState("minecraft:grass_block", map[string]string{"snowy": "false"}), "snowy=false"},
		{"sorted keys", NewBlockState("minecraft:oak_stairs", map[string]string{
			"waterlogged": "false",
			"facing":      "north",
			"half":        "bottom",
		}), "facing=north,half=bottom,waterlogged=false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Variant(); got != tt.want {
				t.Errorf("Variant() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBlockState(t *testing.T) {
	state := ParseBlockState("minecraft:oak_log[axis=y]")
	if state.Name != "minecraft:oak_log" {
		t.Errorf("Name = %q", state.Name)
	}
	if got := state.Property("axis", ""); got != "y" {
		t.Errorf("axis = %q, want y", got)
	}
	if got := state.Property("missing", "fallback"); got != "fallback" {
		t.Errorf("missing = %q, want fallback", got)
	}
	round := ParseBlockState(state.String())
	if round.String() != state.String() {
		t.Errorf("round trip %q != %q", round.String(), state.String())
	}
}

func TestRegistryInterning(t *testing.T) {
	reg := NewBlockRegistry()

	air := reg.ID(NewBlockState("minecraft:air", nil))
	if air != 0 {
		t.Fatalf("air id = %d, want 0", air)
	}

	stone := reg.ID(NewBlockState("minecraft:stone", nil))
	if stone == 0 {
		t.Fatal("stone interned as air")
	}
	if again := reg.ID(NewBlockState("minecraft:stone", nil)); again != stone {
		t.Errorf("second intern = %d, want %d", again, stone)
	}

	// property order must not matter: equality is canonical-form equality
	a := reg.ID(NewBlockState("minecraft:lever", map[string]string{"face": "wall", "powered": "true"}))
	b := reg.ID(NewBlockState("minecraft:lever", map[string]string{"powered": "true", "face": "wall"}))
	if a != b {
		t.Errorf("same canonical state got two ids: %d and %d", a, b)
	}

	state, ok := reg.State(a)
	if !ok {
		t.Fatalf("State(%d) missing", a)
	}
	if got, want := state.String(), "minecraft:lever[face=wall,powered=true]"; got != want {
		t.Errorf("State(%d) = %q, want %q", a, got, want)
	}

	if _, ok := reg.State(BlockID(9999)); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestRegistryConcurrentIntern(t *testing.T) {
	reg := NewBlockRegistry()
	const workers = 8
	const states = 200

	ids := make([][]BlockID, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids[w] = make([]BlockID, states)
			for i := 0; i < states; i++ {
				state := NewBlockState(fmt.Sprintf("minecraft:block_%d", i), map[string]string{"v": "1"})
				ids[w][i] = reg.ID(state)
			}
		}(w)
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		for i := 0; i < states; i++ {
			if ids[w][i] != ids[0][i] {
				t.Fatalf("worker %d got id %d for state %d, worker 0 got %d", w, ids[w][i], i, ids[0][i])
			}
		}
	}
	if got, want := reg.Len(), states+1; got != want {
		t.Errorf("registry has %d states, want %d (including air)", got, want)
	}
}
