// Package registry is the Buffer Manager's client table: who is allowed to
// read from the ring, how they want their data delivered, and the channel
// pairs the dispatcher uses to talk to each of them.
package registry

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/pkg/id"
	"github.com/arcade-daq/waveflow/pkg/orderly"
)

// Request is sent by an in-process client to ask for its next event.
type Request struct{}

// Response carries a served event back to an in-process client. SlotIndex
// is only meaningful for PointerOblig deliveries; Block is always populated
// (a clone for COPY_* modes, a live reference for POINTER_OBLIG).
type Response struct {
	Block       *ringbuf.SampleBlock
	TriggerTime float64
	Sequence    int64
	SlotIndex   int
}

// Client is one registered in-process consumer. CorrelationID is a
// process-unique handle surfaced in logs, since the registry index alone is
// ambiguous once a run is restarted.
type Client struct {
	Index         int
	CorrelationID string
	Mode          ringbuf.ClientMode
	Requests      chan Request
	Replies       chan Response
}

// IPCQueue is the minimal contract the dispatcher needs from an
// out-of-process delivery channel; internal/daq/ipc provides implementations.
type IPCQueue interface {
	Offer(resp Response) bool
}

// maxIPCQueues bounds the registry's IPC table; five external display
// consumers exist today, so this leaves ample headroom without letting a
// runaway registration loop grow the table unboundedly.
const maxIPCQueues = 64

// Registry tracks every registered client, in-process and IPC, append-only
// for the lifetime of a run (clients never unregister mid-run).
type Registry struct {
	mu sync.Mutex

	clients []*Client

	ipc *orderly.Map // key: strconv.Itoa(index) -> IPCQueue
	n   int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ipc: orderly.New(maxIPCQueues)}
}

// RegisterInProcess adds a new in-process client and returns its handle.
// bufSize sizes the request/reply channels; normal clients use capacity 1.
func (r *Registry) RegisterInProcess(mode ringbuf.ClientMode, bufSize int) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Client{
		Index:         len(r.clients),
		CorrelationID: id.GetUUID(),
		Mode:          mode,
		Requests:      make(chan Request, bufSize),
		Replies:       make(chan Response, bufSize),
	}
	r.clients = append(r.clients, c)
	return c
}

// RegisterInterProcess adds an IPC delivery target (e.g. a Redis capped
// stream writer) and returns the handle it was registered under.
func (r *Registry) RegisterInterProcess(queue IPCQueue) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strconv.Itoa(r.n)
	r.n++
	r.ipc.Set(key, queue)
	return key
}

// InProcessClients returns a snapshot of all registered in-process clients,
// in registration order.
func (r *Registry) InProcessClients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// ForEachIPC calls fn for every registered IPC queue, in registration order.
func (r *Registry) ForEachIPC(fn func(key string, queue IPCQueue)) {
	r.ipc.ForEach(func(k string, v any) {
		fn(k, v.(IPCQueue))
	})
}

// ClientByIndex looks a client up by its registry index, for protocol
// handlers that address clients numerically).
func (r *Registry) ClientByIndex(index int) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.clients) {
		return nil, fmt.Errorf("registry: no client registered at index %d", index)
	}
	return r.clients[index], nil
}

// NumInProcess returns the count of registered in-process clients.
func (r *Registry) NumInProcess() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
