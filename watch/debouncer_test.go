package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var calls [][]string

	d := NewDebouncer(30 * time.Millisecond)
	d.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, f)
	})

	d.Add("b.wasm")
	d.Add("a.wasm")
	d.Add("b.wasm")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.wasm", "b.wasm"}, calls[0])
}

func TestDebouncer_Stop(t *testing.T) {
	var mu sync.Mutex
	called := 0

	d := NewDebouncer(20 * time.Millisecond)
	d.SetCallback(func([]string) {
		mu.Lock()
		called++
		mu.Unlock()
	})

	d.Add("a.wasm")
	d.Stop()
	d.Stop()
	d.Add("b.wasm")
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, called)
}
