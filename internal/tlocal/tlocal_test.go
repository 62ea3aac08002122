package tlocal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSetRoundTrip(t *testing.T) {
	assert.Nil(t, Get())

	Set("hello")
	assert.Equal(t, "hello", Get())

	Set(nil)
	assert.Nil(t, Get())
}

func TestWithRestoresPrevious(t *testing.T) {
	Set("outer")
	With("inner", func() {
		assert.Equal(t, "inner", Get())
	})
	assert.Equal(t, "outer", Get())
	Set(nil)
}

func TestPerGoroutineIsolation(t *testing.T) {
	var wg sync.WaitGroup
	results := make(chan any, 2)

	for _, v := range []string{"a", "b"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			Set(v)
			results <- Get()
			Set(nil)
		}(v)
	}
	wg.Wait()
	close(results)

	seen := map[any]bool{}
	for r := range results {
		seen[r] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}
