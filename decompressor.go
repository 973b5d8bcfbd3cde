package gocork

import "fmt"
import "runtime/debug"
import "sync"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/golog"
import "github.com/eapache/queue"
import "github.com/pkg/errors"

// Decompressor inflates inbound chunks, reassembles a continuous byte
// stream per session and extracts length prefixed frames into a dispatch
// queue, drained by TickCoordinator.
type Decompressor struct {
	// statistics, keep this 8-byte aligned.
	nRxchunks uint64 // number of raw chunks received
	nRxbyte   uint64 // number of compressed bytes received
	nCycles   uint64 // number of decompression cycles
	nInflated uint64 // number of decompressed bytes
	nUnzips   uint64 // number of Unzip calls
	nResets   uint64 // number of sessions reset on truncated input
	nFrames   uint64 // number of frames extracted
	nClears   uint64 // number of cleared sessions

	// fields.
	name      string
	zipper    Zipper
	maxzipped int
	mbox      *mailbox
	killch    chan struct{}
	closeonce sync.Once
	fault     atomic.Value
	logprefix string

	dispatchmu sync.Mutex
	dispatchq  *queue.Queue // of rxFrame

	// owned by doDecompress().
	sessions map[SessionID]*inSession
}

// per-session state of the decompressor.
type inSession struct {
	raw    *queue.Queue // InboundRawQueue, of []byte
	zipped []byte       // trailing partial compression unit
	buffer []byte       // InboundByteBuffer, may hold a partial frame
}

type rxChunk struct {
	session SessionID
	chunk   []byte
}

type rxClear struct {
	session SessionID
}

type rxFrame struct {
	session SessionID
	frame   []byte
}

// NewDecompressor creates a decompressor and starts its worker.
func NewDecompressor(name string, setts s.Settings) (*Decompressor, error) {
	d, err := newDecompressor(name, setts)
	if err != nil {
		return nil, err
	}
	go d.doDecompress()
	return d, nil
}

func newDecompressor(name string, setts s.Settings) (*Decompressor, error) {
	if setts == nil {
		setts = DefaultSettings()
	}
	zipper, err := NewZipper(setts)
	if err != nil {
		return nil, err
	}
	d := &Decompressor{
		name:      name,
		zipper:    zipper,
		maxzipped: int(setts.Uint64("zipped.limit")),
		mbox:      newMailbox(),
		killch:    make(chan struct{}),
		dispatchq: queue.New(),
		sessions:  make(map[SessionID]*inSession),
		logprefix: fmt.Sprintf("CORK[%v:rx]", name),
	}
	return d, nil
}

// Receive a raw chunk for session, decompressor owns the chunk from here
// on. Does not block.
func (d *Decompressor) Receive(session SessionID, chunk []byte) error {
	if d.IsClosed() {
		return ErrorClosed
	}
	atomic.AddUint64(&d.nRxchunks, 1)
	atomic.AddUint64(&d.nRxbyte, uint64(len(chunk)))
	d.mbox.post(rxChunk{session: session, chunk: chunk}, true /*wake*/)
	return nil
}

// Clear drops chunks queued for session and purges its reassembly
// buffer at the start of the next cycle.
func (d *Decompressor) Clear(session SessionID) {
	d.mbox.post(rxClear{session: session}, true /*wake*/)
}

// Close the decompressor, queued chunks are dropped. Frames already in
// the dispatch queue can still be drained.
func (d *Decompressor) Close() error {
	d.closeonce.Do(func() {
		close(d.killch)
		log.Infof("%v ... closed\n", d.logprefix)
	})
	return nil
}

// IsClosed return whether this decompressor is closed or not.
func (d *Decompressor) IsClosed() bool {
	select {
	case <-d.killch:
		return true
	default:
	}
	return false
}

// Err return the fault that stopped the worker, if any.
func (d *Decompressor) Err() error {
	if box, ok := d.fault.Load().(faultbox); ok {
		return box.err
	}
	return nil
}

// Stat shall return the stat counts for this decompressor.
func (d *Decompressor) Stat() map[string]uint64 {
	return map[string]uint64{
		"n_rxchunks":  atomic.LoadUint64(&d.nRxchunks),
		"n_rxbyte":    atomic.LoadUint64(&d.nRxbyte),
		"n_rxcycles":  atomic.LoadUint64(&d.nCycles),
		"n_inflated":  atomic.LoadUint64(&d.nInflated),
		"n_unzips":    atomic.LoadUint64(&d.nUnzips),
		"n_rxresets":  atomic.LoadUint64(&d.nResets),
		"n_frames":    atomic.LoadUint64(&d.nFrames),
		"n_rxclears":  atomic.LoadUint64(&d.nClears),
		"n_dispatchq": uint64(d.pending()),
	}
}

func (d *Decompressor) doDecompress() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%v doDecompress() panic: %v\n", d.logprefix, r)
			log.Errorf("\n%s", debug.Stack())
			d.fault.Store(faultbox{panicerr(r)})
			d.Close()
		}
	}()

	log.Infof("%v doDecompress() started ...\n", d.logprefix)
loop:
	for {
		if err := d.cycle(); err != nil {
			log.Errorf("%v %+v\n", d.logprefix, err)
			d.fault.Store(faultbox{err})
			d.Close()
			break loop
		}
		select {
		case <-d.mbox.wakech:
		case <-d.killch:
			break loop
		}
	}
	log.Infof("%v doDecompress() ... stopped\n", d.logprefix)
}

// cycle is one pass of the worker, returns a CompressionFault on corrupt
// input.
func (d *Decompressor) cycle() error {
	d.mbox.drain(d.handlecmd)
	atomic.AddUint64(&d.nCycles, 1)

	// inflate all chunks queued for a session in one go.
	for session, sess := range d.sessions {
		if sess.raw.Length() == 0 {
			continue
		}
		if err := d.inflate(session, sess); err != nil {
			return errors.Wrapf(err, "session %v", session)
		}
	}

	// extract frames.
	for session, sess := range d.sessions {
		frames := 0
		for {
			frame, remainder, ok := ExtractFrame(sess.buffer)
			if !ok {
				break
			}
			d.pushFrame(session, frame)
			sess.buffer, frames = remainder, frames+1
		}
		if frames > 0 {
			sess.buffer = compact(sess.buffer)
			fmsg := "%v session %v extracted %v frames\n"
			log.Debugf(fmsg, d.logprefix, session, frames)
		}
		if len(sess.buffer) == 0 && len(sess.zipped) == 0 {
			delete(d.sessions, session)
		}
	}
	return nil
}

func (d *Decompressor) handlecmd(cmd interface{}) {
	switch val := cmd.(type) {
	case rxChunk:
		sess, ok := d.sessions[val.session]
		if !ok {
			sess = &inSession{raw: queue.New()}
			d.sessions[val.session] = sess
		}
		sess.raw.Add(val.chunk)

	case rxClear:
		delete(d.sessions, val.session)
		atomic.AddUint64(&d.nClears, 1)
		log.Verbosef("%v session %v cleared\n", d.logprefix, val.session)

	default:
		log.Errorf("%v unexpected command %T\n", d.logprefix, cmd)
	}
}

func (d *Decompressor) inflate(session SessionID, sess *inSession) error {
	for sess.raw.Length() > 0 {
		chunk := sess.raw.Remove().([]byte)
		if len(sess.zipped) > 0 && d.zipper.Starts(chunk) {
			// whatever the old unit still misses was never sent.
			if err := d.unzip(sess); err != nil {
				return err
			} else if len(sess.zipped) > 0 {
				d.reset(session, sess, "truncated unit")
			}
		}
		sess.zipped = append(sess.zipped, chunk...)
	}
	if err := d.unzip(sess); err != nil {
		return err
	}
	if len(sess.zipped) > d.maxzipped {
		d.reset(session, sess, "zipped.limit exceeded")
	}
	return nil
}

// unzip inflates the complete units held by session, the trailing
// partial unit stays in zipped.
func (d *Decompressor) unzip(sess *inSession) error {
	n := len(sess.buffer)
	buffer, consumed, err := d.zipper.Unzip(sess.zipped, sess.buffer)
	atomic.AddUint64(&d.nUnzips, 1)
	if err != nil {
		return err
	}
	atomic.AddUint64(&d.nInflated, uint64(len(buffer)-n))
	sess.buffer = buffer
	if consumed > 0 {
		sess.zipped = compact(sess.zipped[consumed:])
	}
	return nil
}

// reset drops the inbound state of a session whose stream can no longer
// be decoded, traffic after this point is decoded afresh.
func (d *Decompressor) reset(session SessionID, sess *inSession, reason string) {
	err := errors.Wrap(ErrorTransportFault, reason)
	fmsg := "%v session %v dropped %v compressed and %v buffered bytes: %v\n"
	log.Errorf(fmsg, d.logprefix, session, len(sess.zipped), len(sess.buffer), err)
	sess.zipped, sess.buffer = nil, nil
	atomic.AddUint64(&d.nResets, 1)
}

func (d *Decompressor) pushFrame(session SessionID, frame []byte) {
	data := make([]byte, len(frame))
	copy(data, frame)
	d.dispatchmu.Lock()
	d.dispatchq.Add(rxFrame{session: session, frame: data})
	d.dispatchmu.Unlock()
	atomic.AddUint64(&d.nFrames, 1)
}

// popFrame removes the oldest frame from the dispatch queue.
func (d *Decompressor) popFrame() (rxFrame, bool) {
	d.dispatchmu.Lock()
	defer d.dispatchmu.Unlock()
	if d.dispatchq.Length() == 0 {
		return rxFrame{}, false
	}
	return d.dispatchq.Remove().(rxFrame), true
}

func (d *Decompressor) pending() int {
	d.dispatchmu.Lock()
	defer d.dispatchmu.Unlock()
	return d.dispatchq.Length()
}

// compact copies the live tail of a buffer so the consumed head can be
// collected.
func compact(buf []byte) []byte {
	if len(buf) == 0 {
		return nil
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}
