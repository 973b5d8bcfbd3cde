package gocork

import "fmt"
import "sync"

import "github.com/bnclabs/golog"
import "github.com/gorilla/websocket"
import "github.com/pkg/errors"

// WebsocketTransport maps sessions to websocket connections, every chunk
// travels as one binary message.
type WebsocketTransport struct {
	mu        sync.RWMutex
	conns     map[SessionID]*wsconn
	logprefix string
}

type wsconn struct {
	mu   sync.Mutex // gorilla allows one concurrent writer
	conn *websocket.Conn
}

// NewWebsocketTransport returns an empty transport, sessions are added
// by Serve.
func NewWebsocketTransport(name string) *WebsocketTransport {
	return &WebsocketTransport{
		conns:     make(map[SessionID]*wsconn),
		logprefix: fmt.Sprintf("CORK[%v:ws]", name),
	}
}

// Send implements Transporter{} interface.
func (wt *WebsocketTransport) Send(session SessionID, chunk []byte) error {
	wt.mu.RLock()
	wc, ok := wt.conns[session]
	wt.mu.RUnlock()
	if !ok {
		return errors.Errorf("session %v not connected", session)
	}
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Serve reads binary messages from conn as raw chunks for session, and
// feeds them to p until the connection fails. On return the session is
// cleared from p and conn is closed.
func (wt *WebsocketTransport) Serve(
	p *Pipeline, session SessionID, conn *websocket.Conn) error {

	wt.mu.Lock()
	if _, ok := wt.conns[session]; ok {
		wt.mu.Unlock()
		return errors.Errorf("session %v already connected", session)
	}
	wt.conns[session] = &wsconn{conn: conn}
	wt.mu.Unlock()
	log.Verbosef("%v session %v connected\n", wt.logprefix, session)

	defer func() {
		wt.mu.Lock()
		delete(wt.conns, session)
		wt.mu.Unlock()
		p.Clear(session)
		conn.Close()
		log.Verbosef("%v session %v disconnected\n", wt.logprefix, session)
	}()

	for {
		mtype, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrapf(ErrorTransportFault, "%v", err)
		} else if mtype != websocket.BinaryMessage {
			log.Warnf("%v session %v ignored message type %v\n", wt.logprefix, session, mtype)
			continue
		}
		if err := p.Receive(session, data); err != nil {
			return err
		}
	}
}

// Sessions return the number of connected sessions.
func (wt *WebsocketTransport) Sessions() int {
	wt.mu.RLock()
	defer wt.mu.RUnlock()
	return len(wt.conns)
}
