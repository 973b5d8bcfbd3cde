package gocork

import "fmt"
import "runtime/debug"
import "sync"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/golog"
import "github.com/pkg/errors"

// Compressor batches outbound messages per session, serializes and
// compresses them together, and sends the result in chunks of at most
// "chunksize" bytes.
type Compressor struct {
	// statistics, keep this 8-byte aligned.
	nEnqueued uint64 // number of messages enqueued
	nCycles   uint64 // number of compression cycles
	nMessages uint64 // number of messages serialized
	nBlobs    uint64 // number of compressed blobs
	nChunks   uint64 // number of chunks sent
	nTxbyte   uint64 // number of compressed bytes sent
	nTxfails  uint64 // number of failed sends
	nClears   uint64 // number of cleared sessions
	paused    int32

	// fields.
	name      string
	transport Transporter
	zipper    Zipper
	chunksize int
	mbox      *mailbox
	killch    chan struct{}
	closeonce sync.Once
	fault     atomic.Value
	logprefix string

	// owned by doCompress().
	sessions map[SessionID]*outSession
}

// per-session state of the compressor.
type outSession struct {
	pending []Message // PendingOutbound
	buffer  []byte    // OutboundByteBuffer, serialized records
}

type txEnqueue struct {
	session SessionID
	msg     Message
}

type txClear struct {
	session SessionID
}

// NewCompressor creates a compressor sending over transport and starts
// its worker.
func NewCompressor(
	name string, transport Transporter, setts s.Settings) (*Compressor, error) {

	c, err := newCompressor(name, transport, setts)
	if err != nil {
		return nil, err
	}
	go c.doCompress()
	return c, nil
}

func newCompressor(
	name string, transport Transporter, setts s.Settings) (*Compressor, error) {

	if setts == nil {
		setts = DefaultSettings()
	}
	size, err := chunksize(setts)
	if err != nil {
		return nil, err
	}
	zipper, err := NewZipper(setts)
	if err != nil {
		return nil, err
	}
	c := &Compressor{
		name:      name,
		transport: transport,
		zipper:    zipper,
		chunksize: size,
		mbox:      newMailbox(),
		killch:    make(chan struct{}),
		sessions:  make(map[SessionID]*outSession),
		logprefix: fmt.Sprintf("CORK[%v:tx]", name),
	}
	return c, nil
}

// Enqueue msg for session. Messages are sent in enqueue order. Does not
// block, and wakes the worker unless the compressor is paused.
func (c *Compressor) Enqueue(session SessionID, msg Message) error {
	if c.IsClosed() {
		return ErrorClosed
	}
	atomic.AddUint64(&c.nEnqueued, 1)
	c.mbox.post(txEnqueue{session: session, msg: msg}, false /*wake*/)
	// check after posting, an unpause racing with the post either sees
	// the message in the mailbox or leaves the flag clear for us.
	if !c.IsPaused() {
		c.mbox.wakeup()
	}
	return nil
}

// SetPause corks the compressor. While paused messages are queued but
// neither compressed nor sent, clearing the flag flushes everything
// queued meanwhile.
func (c *Compressor) SetPause(flag bool) {
	if flag {
		atomic.StoreInt32(&c.paused, 1)
		return
	}
	atomic.StoreInt32(&c.paused, 0)
	c.mbox.wakeup()
}

// IsPaused return whether compressor is corked.
func (c *Compressor) IsPaused() bool {
	return atomic.LoadInt32(&c.paused) == 1
}

// Clear drops messages queued for session and purges its buffered
// bytes at the start of the next cycle.
func (c *Compressor) Clear(session SessionID) {
	c.mbox.post(txClear{session: session}, false /*wake*/)
}

// Close the compressor, queued messages are dropped.
func (c *Compressor) Close() error {
	c.closeonce.Do(func() {
		close(c.killch)
		log.Infof("%v ... closed\n", c.logprefix)
	})
	return nil
}

// IsClosed return whether this compressor is closed or not.
func (c *Compressor) IsClosed() bool {
	select {
	case <-c.killch:
		return true
	default:
	}
	return false
}

// Err return the fault that stopped the worker, if any.
func (c *Compressor) Err() error {
	if box, ok := c.fault.Load().(faultbox); ok {
		return box.err
	}
	return nil
}

// Stat shall return the stat counts for this compressor.
func (c *Compressor) Stat() map[string]uint64 {
	return map[string]uint64{
		"n_enqueued": atomic.LoadUint64(&c.nEnqueued),
		"n_txcycles": atomic.LoadUint64(&c.nCycles),
		"n_messages": atomic.LoadUint64(&c.nMessages),
		"n_blobs":    atomic.LoadUint64(&c.nBlobs),
		"n_chunks":   atomic.LoadUint64(&c.nChunks),
		"n_txbyte":   atomic.LoadUint64(&c.nTxbyte),
		"n_txfails":  atomic.LoadUint64(&c.nTxfails),
		"n_txclears": atomic.LoadUint64(&c.nClears),
	}
}

func (c *Compressor) doCompress() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%v doCompress() panic: %v\n", c.logprefix, r)
			log.Errorf("\n%s", debug.Stack())
			c.fault.Store(faultbox{panicerr(r)})
			c.Close()
		}
	}()

	log.Infof("%v doCompress(chunksize:%v) started ...\n", c.logprefix, c.chunksize)
loop:
	for {
		if err := c.cycle(); err != nil {
			log.Errorf("%v %+v\n", c.logprefix, err)
			c.fault.Store(faultbox{err})
			c.Close()
			break loop
		}
		select {
		case <-c.mbox.wakech:
		case <-c.killch:
			break loop
		}
	}
	log.Infof("%v doCompress() ... stopped\n", c.logprefix)
}

// cycle is one pass of the worker. Only a SerializationFault is returned,
// transport failures are logged and swallowed.
func (c *Compressor) cycle() error {
	c.mbox.drain(c.handlecmd)
	if c.IsPaused() {
		return nil
	}
	atomic.AddUint64(&c.nCycles, 1)

	for session, sess := range c.sessions {
		for i, msg := range sess.pending {
			buffer, err := SerializeMessage(msg, sess.buffer)
			if err != nil {
				return errors.Wrapf(err, "session %v message %v", session, i)
			}
			sess.buffer = buffer
		}
		atomic.AddUint64(&c.nMessages, uint64(len(sess.pending)))
		sess.pending = nil
	}

	for session, sess := range c.sessions {
		if len(sess.buffer) > 0 {
			c.flush(session, sess.buffer)
		}
		// bytes that failed to go out are dropped with the rest.
		delete(c.sessions, session)
	}
	return nil
}

func (c *Compressor) handlecmd(cmd interface{}) {
	switch val := cmd.(type) {
	case txEnqueue:
		sess, ok := c.sessions[val.session]
		if !ok {
			sess = &outSession{}
			c.sessions[val.session] = sess
		}
		sess.pending = append(sess.pending, val.msg)

	case txClear:
		delete(c.sessions, val.session)
		atomic.AddUint64(&c.nClears, 1)
		log.Verbosef("%v session %v cleared\n", c.logprefix, val.session)

	default:
		log.Errorf("%v unexpected command %T\n", c.logprefix, cmd)
	}
}

// flush frames records, compresses the frame as one blob and sends it,
// oldest bytes first.
func (c *Compressor) flush(session SessionID, records []byte) {
	frame := AppendFrame(make([]byte, 0, framePrefixSize+len(records)), records)
	blob, err := c.zipper.Zip(frame)
	if err != nil {
		// in-memory compression does not fail for valid levels.
		panic(errors.Wrapf(ErrorCompressionFault, "session %v zip: %v", session, err))
	}
	atomic.AddUint64(&c.nBlobs, 1)

	chunks := splitChunks(blob, c.chunksize)
	for i, chunk := range chunks {
		if err := c.transport.Send(session, chunk); err != nil {
			err = errors.Wrapf(ErrorTransportFault, "%v", err)
			atomic.AddUint64(&c.nTxfails, 1)
			fmsg := "%v session %v send chunk %v/%v: %v\n"
			log.Errorf(fmsg, c.logprefix, session, i+1, len(chunks), err)
			// rest of the unit is useless without this chunk, the peer
			// drops the truncated unit when the next one starts.
			return
		}
		atomic.AddUint64(&c.nChunks, 1)
		atomic.AddUint64(&c.nTxbyte, uint64(len(chunk)))
	}
	fmsg := "%v session %v sent %v bytes in %v chunks\n"
	log.Debugf(fmsg, c.logprefix, session, len(blob), len(chunks))
}
