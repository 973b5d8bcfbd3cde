package gocork

import "fmt"
import "sync/atomic"

import "github.com/bnclabs/golog"
import "github.com/pkg/errors"

// TickCoordinator delivers reassembled frames to the host's Dispatcher
// at a deterministic point, the end of each host tick.
type TickCoordinator struct {
	// statistics, keep this 8-byte aligned.
	nTicks      uint64 // number of TickEnd calls
	nDelivered  uint64 // number of frames delivered
	nDispatchfs uint64 // number of frames whose delivery failed

	decomp     *Decompressor
	dispatcher Dispatcher
	logprefix  string
}

// NewTickCoordinator drains frames from decomp into dispatcher.
func NewTickCoordinator(
	name string, decomp *Decompressor, dispatcher Dispatcher) *TickCoordinator {

	return &TickCoordinator{
		decomp:     decomp,
		dispatcher: dispatcher,
		logprefix:  fmt.Sprintf("CORK[%v:tick]", name),
	}
}

// TickEnd shall be called exactly once per host tick, from the host's
// tick goroutine. Drains the dispatch queue completely, in FIFO order,
// delivering each frame synchronously. A failed delivery is logged and
// does not stop the drain. Returns the number of frames drained.
func (tc *TickCoordinator) TickEnd() int {
	atomic.AddUint64(&tc.nTicks, 1)
	n := 0
	for {
		item, ok := tc.decomp.popFrame()
		if !ok {
			break
		}
		n++
		if err := tc.dispatcher.OnFrame(item.session, item.frame); err != nil {
			err = errors.Wrapf(ErrorDispatchFault, "%v", err)
			atomic.AddUint64(&tc.nDispatchfs, 1)
			fmsg := "%v session %v frame of %v bytes: %v\n"
			log.Errorf(fmsg, tc.logprefix, item.session, len(item.frame), err)
			continue
		}
		atomic.AddUint64(&tc.nDelivered, 1)
	}
	return n
}

// Stat shall return the stat counts for this coordinator.
func (tc *TickCoordinator) Stat() map[string]uint64 {
	return map[string]uint64{
		"n_ticks":         atomic.LoadUint64(&tc.nTicks),
		"n_delivered":     atomic.LoadUint64(&tc.nDelivered),
		"n_dispatchfails": atomic.LoadUint64(&tc.nDispatchfs),
	}
}
