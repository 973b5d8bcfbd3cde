package gocork

import "fmt"
import "sync"
import "sync/atomic"
import "unsafe"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/golog"

var pipelines = unsafe.Pointer(&map[string]*Pipeline{})

// Pipeline is the server side buffering layer between many sessions and
// a transport. Outbound messages go through a Compressor, inbound chunks
// through a Decompressor, and frames reach the Dispatcher from TickEnd.
type Pipeline struct {
	name      string
	comp      *Compressor
	decomp    *Decompressor
	tick      *TickCoordinator
	killch    chan struct{}
	closeonce sync.Once
	logprefix string
}

// NewPipeline starts the compression and decompression workers for
// a pipeline. Names must be unique among live pipelines.
func NewPipeline(
	name string, transport Transporter, dispatcher Dispatcher,
	setts s.Settings) (*Pipeline, error) {

	if setts == nil {
		setts = DefaultSettings()
	}
	comp, err := newCompressor(name, transport, setts)
	if err != nil {
		return nil, err
	}
	decomp, err := newDecompressor(name, setts)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		name:      name,
		comp:      comp,
		decomp:    decomp,
		tick:      NewTickCoordinator(name, decomp, dispatcher),
		killch:    make(chan struct{}),
		logprefix: fmt.Sprintf("CORK[%v]", name),
	}
	if err := addpipeline(name, p); err != nil {
		return nil, err
	}
	go comp.doCompress()
	go decomp.doDecompress()
	log.Infof("%v started ...\n", p.logprefix)
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Enqueue an outbound message for session.
func (p *Pipeline) Enqueue(session SessionID, msg Message) error {
	return p.comp.Enqueue(session, msg)
}

// SetPause corks or uncorks outbound compression.
func (p *Pipeline) SetPause(flag bool) {
	p.comp.SetPause(flag)
}

// Receive an inbound raw chunk for session.
func (p *Pipeline) Receive(session SessionID, chunk []byte) error {
	return p.decomp.Receive(session, chunk)
}

// TickEnd delivers every frame reassembled so far, refer
// TickCoordinator.TickEnd.
func (p *Pipeline) TickEnd() int {
	return p.tick.TickEnd()
}

// Clear forgets session on both directions. Pending messages and chunks
// are dropped and buffered bytes are purged at the start of each
// worker's next cycle, a pass already in progress may still emit one
// chunk or frame of the old state. Clear never blocks on the workers.
func (p *Pipeline) Clear(session SessionID) {
	p.comp.Clear(session)
	p.decomp.Clear(session)
	log.Verbosef("%v session %v scheduled for clear\n", p.logprefix, session)
}

// Err return the first fault that stopped either worker.
func (p *Pipeline) Err() error {
	if err := p.comp.Err(); err != nil {
		return err
	}
	return p.decomp.Err()
}

// Close both workers and remove the pipeline from the registry.
func (p *Pipeline) Close() error {
	p.closeonce.Do(func() {
		close(p.killch)
		p.comp.Close()
		p.decomp.Close()
		delpipeline(p.name)
		log.Infof("%v ... closed\n", p.logprefix)
	})
	return nil
}

// Stat shall return the stat counts for this pipeline.
func (p *Pipeline) Stat() map[string]uint64 {
	stats := p.comp.Stat()
	for k, v := range p.decomp.Stat() {
		stats[k] = v
	}
	for k, v := range p.tick.Stat() {
		stats[k] = v
	}
	return stats
}

// Stats return consolidated counts of all live pipelines.
func Stats() map[string]uint64 {
	stats := map[string]uint64{}

	op := atomic.LoadPointer(&pipelines)
	pipem := (*map[string]*Pipeline)(op)
	for _, p := range *pipem {
		for k, v := range p.Stat() {
			stats[k] += v
		}
	}
	return stats
}

// Stat count for the named pipeline, nil if there is none.
//
// Available statistics:
//
// "n_enqueued", "n_messages"
//		messages enqueued, and serialized.
//
// "n_blobs", "n_chunks", "n_txbyte"
//		compressed blobs, chunks and bytes handed to the transport.
//
// "n_txfails"
//		failed sends, the rest of that blob was dropped.
//
// "n_rxchunks", "n_rxbyte", "n_inflated"
//		raw chunks and bytes received, and bytes after decompression.
//
// "n_unzips", "n_rxresets"
//		decompression calls, and sessions whose inbound stream was reset
//		after a truncated unit or on exceeding "zipped.limit".
//
// "n_frames", "n_dispatchq"
//		frames extracted, and frames waiting for the next tick.
//
// "n_ticks", "n_delivered", "n_dispatchfails"
//		ticks, frames delivered and frames whose delivery failed.
//
// "n_txcycles", "n_rxcycles", "n_txclears", "n_rxclears"
//		worker passes and processed clear commands.
func Stat(name string) map[string]uint64 {
	op := atomic.LoadPointer(&pipelines)
	pipem := (*map[string]*Pipeline)(op)
	if p, ok := (*pipem)[name]; ok {
		return p.Stat()
	}
	return nil
}

// add a new pipeline.
func addpipeline(name string, p *Pipeline) error {
	for {
		op := atomic.LoadPointer(&pipelines)
		oldm := (*map[string]*Pipeline)(op)
		newm := map[string]*Pipeline{}
		for k, pipe := range *oldm {
			if k == name {
				return fmt.Errorf("pipeline %v already created", name)
			}
			newm[k] = pipe
		}
		newm[name] = p
		if atomic.CompareAndSwapPointer(&pipelines, op, unsafe.Pointer(&newm)) {
			return nil
		}
	}
}

// delete a pipeline.
func delpipeline(name string) {
	for {
		op := atomic.LoadPointer(&pipelines)
		oldm := (*map[string]*Pipeline)(op)
		if _, ok := (*oldm)[name]; !ok {
			return
		}
		newm := map[string]*Pipeline{}
		for k, pipe := range *oldm {
			newm[k] = pipe
		}
		delete(newm, name)
		if atomic.CompareAndSwapPointer(&pipelines, op, unsafe.Pointer(&newm)) {
			return
		}
	}
}
