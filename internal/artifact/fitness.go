package artifact

// MostPopular returns the artifact with the highest interaction count.
// Ties go to the lowest id. ok is false only for an empty registry.
func (r *Registry) MostPopular() (id uint64, ok bool) {
	return r.scan(0)
}

// SecondMostPopular is MostPopular with exclude taken out of the running.
func (r *Registry) SecondMostPopular(exclude uint64) (id uint64, ok bool) {
	return r.scan(exclude)
}

// scan walks ids in increasing order. The first candidate seeds the running
// best and only a strictly greater count replaces it, so the earliest id
// wins any tie. The walk is O(TotalSupply) per call.
func (r *Registry) scan(exclude uint64) (uint64, bool) {
	var (
		best    uint64
		highest uint64
		found   bool
	)
	for _, a := range r.items {
		if a.ID == exclude {
			continue
		}
		if !found || a.InteractionCount > highest {
			best, highest, found = a.ID, a.InteractionCount, true
		}
	}
	return best, found
}

// Parents selects the breeding pair: the most popular artifact and the most
// popular of the rest. ok is false when fewer than two artifacts exist.
func (r *Registry) Parents() (a, b uint64, ok bool) {
	a, ok = r.MostPopular()
	if !ok {
		return 0, 0, false
	}
	b, ok = r.SecondMostPopular(a)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}
