package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoGetReturnsResult(t *testing.T) {
	future := Go(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})

	data, err := future.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, data)
}

func TestGoGetPropagatesError(t *testing.T) {
	wantErr := errors.New("offer failed")
	future := Go(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})

	data, err := future.Get()
	assert.Nil(t, data)
	assert.Equal(t, wantErr, err)
}

func TestGoWithTimeoutCancelsLongCall(t *testing.T) {
	future := Go(context.Background(), func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithTimeout(20*time.Millisecond))

	_, err := future.Get()
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestGroupWaitsForAllFanOutCalls(t *testing.T) {
	var done atomic.Int64
	group := GoGroup(context.Background())
	for i := 0; i < 5; i++ {
		group.Go(func(context.Context) error {
			done.Add(1)
			return nil
		})
	}

	require.NoError(t, group.Wait())
	assert.Equal(t, int64(5), done.Load())
}

func TestGroupFirstErrorCancelsSiblings(t *testing.T) {
	group := GoGroup(context.Background())
	group.Go(func(context.Context) error {
		return errors.New("queue gone")
	})
	group.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
			return errors.New("sibling was not cancelled")
		}
	})

	err := group.Wait()
	require.Error(t, err)
	assert.Equal(t, "queue gone", err.Error())
}
