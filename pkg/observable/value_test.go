package observable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	t.Parallel()

	v := New(1)
	assert.Equal(t, 1, v.Get())

	var got []int
	cancel := v.Subscribe(func(n int) { got = append(got, n) })
	var second []int
	v.Subscribe(func(n int) { second = append(second, n*10) })

	v.Set(2)
	v.Update(func(n int) int { return n + 1 })
	cancel()
	cancel()
	v.Set(4)

	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, []int{20, 30, 40}, second)
	assert.Equal(t, 4, v.Get())
}

func TestValueZero(t *testing.T) {
	t.Parallel()

	var v Value[string]
	assert.Equal(t, "", v.Get())
	v.Set("x")
	assert.Equal(t, "x", v.Get())
}

func TestValueConcurrent(t *testing.T) {
	t.Parallel()

	v := New(0)
	var mu sync.Mutex
	calls := 0
	v.Subscribe(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, v.Get())
	assert.Equal(t, 50, calls)
}
