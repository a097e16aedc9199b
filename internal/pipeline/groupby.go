package pipeline

// OrderedGroups is a keyed accumulator that preserves first-seen key order.
// The deduplicator and the batch partitioner both need a stable group-by:
// iteration must follow the order keys first appeared in the input, not map
// order.
type OrderedGroups[K comparable, V any] struct {
	order  []K
	groups map[K][]V
}

// NewOrderedGroups creates an empty accumulator.
func NewOrderedGroups[K comparable, V any]() *OrderedGroups[K, V] {
	return &OrderedGroups[K, V]{groups: make(map[K][]V)}
}

// Add appends a value under the given key, registering the key on first use.
func (g *OrderedGroups[K, V]) Add(key K, value V) {
	if _, seen := g.groups[key]; !seen {
		g.order = append(g.order, key)
	}
	g.groups[key] = append(g.groups[key], value)
}

// Keys returns the keys in first-seen order.
func (g *OrderedGroups[K, V]) Keys() []K {
	return g.order
}

// Group returns the values accumulated under a key, in insertion order.
func (g *OrderedGroups[K, V]) Group(key K) []V {
	return g.groups[key]
}

// Len returns the number of distinct keys.
func (g *OrderedGroups[K, V]) Len() int {
	return len(g.order)
}
