package extract

// Strategy is one attempt at resolving a field. Fn must be pure with respect
// to the page: identical input always yields the identical candidate.
type Strategy[T any] struct {
	Name string
	Fn   func(p *Page) (T, bool)
}

// resolve runs a chain in order and keeps the first candidate the accept
// function admits. The winning strategy is recorded on the page trace.
func resolve[T any](p *Page, field string, chain []Strategy[T], accept func(T) bool) (T, bool) {
	for rank, s := range chain {
		v, ok := s.Fn(p)
		if !ok {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		p.record(field, s.Name, rank, v)
		return v, true
	}
	var zero T
	return zero, false
}

// chainOf assembles a strategy chain from the declarative per-site table.
// Unknown ids are skipped so a table typo degrades to a shorter chain rather
// than a panic.
func chainOf[T any](registry map[string]Strategy[T], ids []string) []Strategy[T] {
	out := make([]Strategy[T], 0, len(ids))
	for _, id := range ids {
		if s, ok := registry[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
