package index

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamper(t *testing.T) {
	stamper := NewStamper(10)
	assert.Equal(t, Opstamp(10), stamper.Last())

	assert.Equal(t, Opstamp(11), stamper.Stamp())
	assert.Equal(t, Opstamp(12), stamper.Stamp())

	assert.Equal(t, Opstamp(13), stamper.StampRange(3))
	assert.Equal(t, Opstamp(15), stamper.Last())
	assert.Equal(t, Opstamp(16), stamper.Stamp())
}

func TestStamperConcurrent(t *testing.T) {
	const (
		goroutines = 8
		perRoutine = 1000
	)

	stamper := NewStamper(0)

	results := make([][]Opstamp, goroutines)

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perRoutine {
				results[g] = append(results[g], stamper.Stamp())
			}
		}()
	}
	wg.Wait()

	var all []Opstamp
	for _, opstamps := range results {
		// Each goroutine sees increasing opstamps.
		assert.True(t, slices.IsSorted(opstamps))
		all = append(all, opstamps...)
	}

	slices.Sort(all)
	require.Len(t, all, goroutines*perRoutine)
	for i, opstamp := range all {
		assert.Equal(t, Opstamp(i+1), opstamp)
	}
}
