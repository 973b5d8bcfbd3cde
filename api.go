package gocork

// Transporter interface to hand compressed chunks to the underlying
// transport. Send is best-effort, chunks are at most MaxChunksize bytes
// and must not be retained after Send returns.
type Transporter interface {
	Send(session SessionID, chunk []byte) error
}

// Dispatcher interface to deliver reassembled frames to the host. OnFrame
// is only called from TickEnd, in FIFO order.
type Dispatcher interface {
	OnFrame(session SessionID, frame []byte) error
}

// SendFunc adapts a function to the Transporter interface.
type SendFunc func(session SessionID, chunk []byte) error

// Send implements Transporter{} interface.
func (fn SendFunc) Send(session SessionID, chunk []byte) error {
	return fn(session, chunk)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(session SessionID, frame []byte) error

// OnFrame implements Dispatcher{} interface.
func (fn DispatchFunc) OnFrame(session SessionID, frame []byte) error {
	return fn(session, frame)
}
