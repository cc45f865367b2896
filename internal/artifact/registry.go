package artifact

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknown is returned when an id is not in the registry.
var ErrUnknown = errors.New("unknown artifact")

// Registry stores artifacts densely by id. It does no locking of its own:
// the owning engine serializes access.
type Registry struct {
	items []Artifact // items[i].ID == i+1
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// TotalSupply is the number of artifacts ever created.
func (r *Registry) TotalSupply() uint64 {
	return uint64(len(r.items))
}

// NextID is the id the next inserted artifact must carry.
func (r *Registry) NextID() uint64 {
	return r.TotalSupply() + 1
}

// Exists reports whether id names an artifact.
func (r *Registry) Exists(id uint64) bool {
	return id >= 1 && id <= r.TotalSupply()
}

// Get returns a copy of the artifact with the given id.
func (r *Registry) Get(id uint64) (Artifact, bool) {
	if !r.Exists(id) {
		return Artifact{}, false
	}
	return r.items[id-1], true
}

// Insert appends a. The id must be NextID; bred artifacts must name two
// existing parents and genesis artifacts none.
func (r *Registry) Insert(a Artifact) error {
	if a.ID != r.NextID() {
		return fmt.Errorf("artifact id %d out of sequence, expected %d", a.ID, r.NextID())
	}
	if a.IsGenesis {
		if a.ParentA != 0 || a.ParentB != 0 {
			return fmt.Errorf("genesis artifact %d cannot have parents", a.ID)
		}
		if a.Generation != 0 {
			return fmt.Errorf("genesis artifact %d must be generation 0, got %d", a.ID, a.Generation)
		}
	} else {
		if !r.Exists(a.ParentA) || !r.Exists(a.ParentB) {
			return fmt.Errorf("artifact %d: parents %d and %d must exist: %w", a.ID, a.ParentA, a.ParentB, ErrUnknown)
		}
		if a.Generation == 0 {
			return fmt.Errorf("bred artifact %d cannot be generation 0", a.ID)
		}
	}
	r.items = append(r.items, a)
	return nil
}

// Touch increments the interaction counter of id and returns the new count.
func (r *Registry) Touch(id uint64) (uint64, error) {
	if !r.Exists(id) {
		return 0, fmt.Errorf("artifact %d: %w", id, ErrUnknown)
	}
	r.items[id-1].InteractionCount++
	return r.items[id-1].InteractionCount, nil
}

// All returns a copy of every artifact in id order.
func (r *Registry) All() []Artifact {
	out := make([]Artifact, len(r.items))
	copy(out, r.items)
	return out
}

// InGeneration returns the ids born in generation gen, ascending.
func (r *Registry) InGeneration(gen uint64) []uint64 {
	var ids []uint64
	for _, a := range r.items {
		if a.Generation == gen {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// GenesisCount returns how many artifacts were seeded at genesis.
func (r *Registry) GenesisCount() int {
	n := 0
	for _, a := range r.items {
		if a.IsGenesis {
			n++
		}
	}
	return n
}

// Ancestors returns every ancestor of id once, sorted by generation then id.
func (r *Registry) Ancestors(id uint64) ([]Artifact, error) {
	start, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("artifact %d: %w", id, ErrUnknown)
	}

	seen := map[uint64]bool{}
	queue := []Artifact{start}
	var out []Artifact
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !cur.HasParents() {
			continue
		}
		for _, pid := range [2]uint64{cur.ParentA, cur.ParentB} {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			p, _ := r.Get(pid)
			out = append(out, p)
			queue = append(queue, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
