package workload

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionResolvesOnce(t *testing.T) {
	c := NewCompletion()

	outcome, err := c.Result()
	assert.Equal(t, OutcomePending, outcome)
	assert.NoError(t, err)

	first := errors.New("send failed")
	require.True(t, c.Resolve(OutcomeFailure, first))
	assert.False(t, c.Resolve(OutcomeSuccess, nil))
	assert.False(t, c.Resolve(OutcomeFailure, errors.New("later")))

	outcome, err = c.Result()
	assert.Equal(t, OutcomeFailure, outcome)
	assert.Same(t, first, err)
}

func TestCompletionConcurrentResolve(t *testing.T) {
	c := NewCompletion()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := OutcomeSuccess
			if i%2 == 0 {
				outcome = OutcomeFailure
			}
			if c.Resolve(outcome, nil) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCompletionAwait(t *testing.T) {
	c := NewCompletion()
	assert.False(t, c.Await(20*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Resolve(OutcomeSuccess, nil)
	}()
	assert.True(t, c.Await(time.Second))

	outcome, _ := c.Result()
	assert.Equal(t, OutcomeSuccess, outcome)
}
