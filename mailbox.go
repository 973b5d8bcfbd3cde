package gocork

import "sync"

import "github.com/eapache/queue"
import "github.com/pkg/errors"

// mailbox is an unbounded FIFO of commands for a single worker. Posting
// never blocks, wakech holds at most one pending wakeup.
type mailbox struct {
	mu     sync.Mutex
	cmds   *queue.Queue
	wakech chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{cmds: queue.New(), wakech: make(chan struct{}, 1)}
}

func (mb *mailbox) post(cmd interface{}, wake bool) {
	mb.mu.Lock()
	mb.cmds.Add(cmd)
	mb.mu.Unlock()
	if wake {
		mb.wakeup()
	}
}

func (mb *mailbox) wakeup() {
	select {
	case mb.wakech <- struct{}{}:
	default:
	}
}

// drain hands every queued command to fn, oldest first. fn runs without
// the lock held.
func (mb *mailbox) drain(fn func(cmd interface{})) int {
	mb.mu.Lock()
	cmds := make([]interface{}, 0, mb.cmds.Length())
	for mb.cmds.Length() > 0 {
		cmds = append(cmds, mb.cmds.Remove())
	}
	mb.mu.Unlock()

	for _, cmd := range cmds {
		fn(cmd)
	}
	return len(cmds)
}

func (mb *mailbox) length() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.cmds.Length()
}

// faultbox keeps the concrete type stored in an atomic.Value stable.
type faultbox struct {
	err error
}

// splitChunks cuts blob into consecutive slices of at most size bytes.
func splitChunks(blob []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(blob)+size-1)/size)
	for len(blob) > size {
		chunks = append(chunks, blob[:size])
		blob = blob[size:]
	}
	if len(blob) > 0 {
		chunks = append(chunks, blob)
	}
	return chunks
}

// panicerr converts a recovered value into the fault reported by Err().
func panicerr(r interface{}) error {
	if err, ok := r.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Errorf("%v", r)
}
