// Package ipc provides depth-1, drop-if-full delivery queues for
// out-of-process display consumers, modeling the source's
// multiprocessing queues as non-blocking offers rather than blocking puts.
package ipc

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/arcade-daq/waveflow/internal/daq/registry"
)

// LocalQueue is an in-memory depth-1, drop-if-full queue, used by
// in-process test doubles and by display consumers running in the same
// binary as the Buffer Manager.
type LocalQueue struct {
	ch chan registry.Response
}

// NewLocalQueue returns an empty depth-1 queue.
func NewLocalQueue() *LocalQueue {
	return &LocalQueue{ch: make(chan registry.Response, 1)}
}

// Offer implements registry.IPCQueue: it drops the oldest pending item, if
// any, and stores resp, returning false only if it could not make room
// (which cannot happen for a depth-1 channel owned solely by this method).
func (q *LocalQueue) Offer(resp registry.Response) bool {
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- resp:
		return true
	default:
		return false
	}
}

// Take blocks for the next delivered response, or returns false if ctx is
// done first.
func (q *LocalQueue) Take(ctx context.Context) (registry.Response, bool) {
	select {
	case resp := <-q.ch:
		return resp, true
	case <-ctx.Done():
		return registry.Response{}, false
	}
}

// RedisQueue offers blocks to a Redis capped stream (XADD ... MAXLEN ~ 1),
// for display consumers running as separate processes. A capped stream
// gives the same depth-1/drop-oldest semantics as the in-process LocalQueue
// without a shared-memory dependency.
type RedisQueue struct {
	client *redis.Client
	stream string
}

// NewRedisQueue returns a queue backed by the named stream key.
func NewRedisQueue(client *redis.Client, stream string) *RedisQueue {
	return &RedisQueue{client: client, stream: stream}
}

// Offer XADDs the event, capping the stream to its single most recent
// entry. Errors (e.g. connection loss) are treated the same as backpressure:
// the event is dropped and the dispatcher is never blocked.
func (q *RedisQueue) Offer(resp registry.Response) bool {
	values := map[string]interface{}{
		"sequence":    resp.Sequence,
		"triggerTime": resp.TriggerTime,
	}
	if resp.Block != nil {
		values["nChannels"] = resp.Block.NChannels
		values["nSamples"] = resp.Block.NSamples
		if samples, err := json.Marshal(resp.Block.Data); err == nil {
			values["samples"] = samples
		}
	}
	err := q.client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 1,
		Approx: true,
		Values: values,
	}).Err()
	return err == nil
}
