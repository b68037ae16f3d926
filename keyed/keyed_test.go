package keyed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSortsDedupsAndConstructsInPlace(t *testing.T) {
	var constructed []int32
	c := New([]int32{5, 1, 3, 1, 5}, func(key int32) interface{} {
		constructed = append(constructed, key)
		return key * 10
	})

	assert.Equal(t, []int32{1, 3, 5}, constructed)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int32{1, 3, 5}, c.Keys())

	k, v := c.At(1)
	assert.EqualValues(t, 3, k)
	assert.Equal(t, int32(30), v)
}

func TestGetFindsAndMisses(t *testing.T) {
	c := New([]int32{2, 4, 6}, func(key int32) interface{} { return key })

	v, ok := c.Get(4)
	assert.True(t, ok)
	assert.Equal(t, int32(4), v)

	_, ok = c.Get(5)
	assert.False(t, ok)
}

func TestEachVisitsInAscendingOrder(t *testing.T) {
	c := New([]int32{9, 1, 5}, func(key int32) interface{} { return nil })
	var seen []int32
	c.Each(func(key int32, _ interface{}) { seen = append(seen, key) })
	assert.Equal(t, []int32{1, 5, 9}, seen)
}

func TestNewWithEmptyKeys(t *testing.T) {
	c := New(nil, func(key int32) interface{} { return nil })
	assert.Equal(t, 0, c.Len())
}
