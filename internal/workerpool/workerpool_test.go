package workerpool_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/workerpool"
)

func TestPool_SubmitReturnsResult(t *testing.T) {
	p := workerpool.New(2)
	defer p.Close()

	v, err := p.Submit(context.Background(), func() (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestPool_SubmitPropagatesError(t *testing.T) {
	p := workerpool.New(2)
	defer p.Close()

	_, err := p.Submit(context.Background(), func() (any, error) {
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)
}

func TestPool_ConcurrentTasksAllComplete(t *testing.T) {
	p := workerpool.New(4)
	defer p.Close()

	var counter int64
	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := p.Submit(context.Background(), func() (any, error) {
				atomic.AddInt64(&counter, 1)
				return nil, nil
			})
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}
	require.Equal(t, int64(20), counter)
}

func TestPool_SubmitRespectsContextCancel(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	// Saturate the single worker with a slow task first.
	go p.Submit(context.Background(), func() (any, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	})
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	_, err := p.Submit(ctx, func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultSize_AtLeastTwo(t *testing.T) {
	require.GreaterOrEqual(t, workerpool.DefaultSize(), 2)
}
