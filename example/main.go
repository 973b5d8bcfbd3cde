// Command example runs a websocket echo server on top of a gocork
// pipeline. Every frame received from a session is parsed as records and
// echoed back, replies produced within a tick are corked into a single
// compressed blob per session.
package main

import "flag"
import "fmt"
import "net/http"
import "strconv"
import "sync/atomic"
import "time"

import "github.com/bnclabs/gocork"
import _ "github.com/bnclabs/gocork/http"
import golog "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import "github.com/gorilla/websocket"

var options struct {
	addr      string
	log       string
	zipper    string
	chunksize int
	tick      time.Duration
}

func argParse() {
	var tick int

	flag.StringVar(&options.addr, "addr", "127.0.0.1:9998",
		"server address")
	flag.StringVar(&options.log, "log", "info",
		"log level")
	flag.StringVar(&options.zipper, "zipper", "gzip",
		"gzip / zlib compression")
	flag.IntVar(&options.chunksize, "chunksize", gocork.MaxChunksize,
		"maximum bytes per websocket message")
	flag.IntVar(&tick, "tick", 50,
		"tick period in milliseconds")
	flag.Parse()

	options.tick = time.Duration(tick) * time.Millisecond
}

func main() {
	argParse()

	setts := gocork.DefaultSettings().Mixin(s.Settings{
		"log.level": options.log,
		"zipper":    options.zipper,
		"chunksize": uint64(options.chunksize),
	})
	golog.SetLogger(nil, s.Settings{
		"log.level": setts.String("log.level"),
		"log.file":  setts.String("log.file"),
	})

	wt := gocork.NewWebsocketTransport("echo")
	echo := &echoer{}
	p, err := gocork.NewPipeline("echo", wt, echo, setts)
	if err != nil {
		golog.Fatalf("%v\n", err)
		return
	}
	echo.pipeline = p
	p.TickPeriod(options.tick, true /*cork*/)

	var nsessions int64
	upgrader := websocket.Upgrader{}
	http.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			golog.Errorf("upgrade %v: %v\n", r.RemoteAddr, err)
			return
		}
		n := atomic.AddInt64(&nsessions, 1)
		session := gocork.SessionID(r.RemoteAddr + "#" + strconv.Itoa(int(n)))
		if err := wt.Serve(p, session, conn); err != nil {
			golog.Warnf("session %v: %v\n", session, err)
		}
	})

	fmt.Printf("listening on %v, stats at /gocork/statistics\n", options.addr)
	golog.Fatalf("%v\n", http.ListenAndServe(options.addr, nil))
}

type echoer struct {
	pipeline *gocork.Pipeline
}

// OnFrame implements gocork.Dispatcher{} interface.
func (e *echoer) OnFrame(session gocork.SessionID, frame []byte) error {
	id, debugid, payload, ok := gocork.ParseRecord(frame)
	if !ok {
		return fmt.Errorf("short frame of %v bytes", len(frame))
	}
	return e.pipeline.Enqueue(session, &echoMsg{id, debugid, payload})
}

// echoMsg carries the body of a received frame back, records following
// the first header travel as opaque payload.
type echoMsg struct {
	id      uint16
	debugid uint32
	payload []byte
}

func (m *echoMsg) ID() uint16 {
	return m.id
}

func (m *echoMsg) DebugID() uint32 {
	return m.debugid
}

func (m *echoMsg) Encode(out []byte) []byte {
	return append(out, m.payload...)
}

func (m *echoMsg) String() string {
	return fmt.Sprintf("echoMsg{%v,%v,%v}", m.id, m.debugid, len(m.payload))
}
