package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncRunsTasksInFifoOrder(t *testing.T) {
	w := New("test")
	defer w.Stop()

	var mu sync.Mutex
	var order []int
	var futures []*Future
	for i := 0; i < 5; i++ {
		i := i
		f, err := w.Async(func() (interface{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	for i, f := range futures {
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestAsyncPropagatesError(t *testing.T) {
	w := New("test")
	defer w.Stop()

	f, err := w.Async(func() (interface{}, error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)

	_, err = f.Wait()
	assert.Equal(t, assert.AnError, err)
}

func TestStopDrainsQueuedTasksThenRejectsFurtherSubmits(t *testing.T) {
	w := New("test")

	ran := make(chan struct{}, 1)
	f, err := w.Async(func() (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		ran <- struct{}{}
		return nil, nil
	})
	require.NoError(t, err)

	w.Stop()
	_, err = f.Wait()
	require.NoError(t, err)

	select {
	case <-ran:
	default:
		t.Fatal("queued task did not run before Stop returned")
	}

	_, err = w.Async(func() (interface{}, error) { return nil, nil })
	assert.Error(t, err)
}
