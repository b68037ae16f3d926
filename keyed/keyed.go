// Package keyed implements a sorted container whose key set is fixed at
// construction time, used to hold the per-channel accumulator state
// (correlators, DTOFs, counters) addressed by channel number.
package keyed

import "sort"

// Pair is one key/value slot. Keys are channel numbers; values are
// whatever per-channel state the caller constructs for them.
type Pair struct {
	Key   int32
	Value interface{}
}

// Container is a sorted-unique, fixed-key-set map. Unlike a Go map, keys
// are immutable after construction and iteration order is always
// ascending by key.
type Container struct {
	pairs []Pair
}

// New builds a Container over the deduplicated, sorted keys, constructing
// each value by calling newValue once per unique key.
func New(keys []int32, newValue func(key int32) interface{}) *Container {
	sorted := append([]int32(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	unique := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != unique[len(unique)-1] {
			unique = append(unique, k)
		}
	}

	c := &Container{pairs: make([]Pair, len(unique))}
	for i, k := range unique {
		c.pairs[i] = Pair{Key: k, Value: newValue(k)}
	}
	return c
}

// Len returns the number of keys.
func (c *Container) Len() int { return len(c.pairs) }

// At returns the i'th key/value pair in ascending key order.
func (c *Container) At(i int) (int32, interface{}) {
	p := c.pairs[i]
	return p.Key, p.Value
}

// Get returns the value for key, or (nil, false) if key is not present.
func (c *Container) Get(key int32) (interface{}, bool) {
	i := sort.Search(len(c.pairs), func(i int) bool { return c.pairs[i].Key >= key })
	if i < len(c.pairs) && c.pairs[i].Key == key {
		return c.pairs[i].Value, true
	}
	return nil, false
}

// Keys returns the sorted, deduplicated key set.
func (c *Container) Keys() []int32 {
	keys := make([]int32, len(c.pairs))
	for i, p := range c.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Each calls fn for every key/value pair in ascending key order.
func (c *Container) Each(fn func(key int32, value interface{})) {
	for _, p := range c.pairs {
		fn(p.Key, p.Value)
	}
}
