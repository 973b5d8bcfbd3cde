package gocork

import "bytes"
import "math/rand"
import "net/http"
import "net/http/httptest"
import "reflect"
import "strings"
import "testing"
import "time"

import "github.com/fortytw2/leaktest"

// loopback pipes a server pipeline's outbound chunks into a client
// pipeline's inbound side.
func loopback(t *testing.T, name string) (server, client *Pipeline, disp *frameRecorder) {
	var err error
	disp = &frameRecorder{}
	client, err = NewPipeline(name+"-client", &sendRecorder{}, disp, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr := SendFunc(func(session SessionID, chunk []byte) error {
		data := make([]byte, len(chunk))
		copy(data, chunk)
		return client.Receive(session, data)
	})
	server, err = NewPipeline(name+"-server", tr, &frameRecorder{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return server, client, disp
}

func TestPipelineScenario(t *testing.T) {
	defer leaktest.Check(t)()

	server, client, disp := loopback(t, "scenario")
	defer server.Close()
	defer client.Close()

	msgs := []Message{newTestMsg(1, 1, 10), newTestMsg(2, 2, 20), newTestMsg(3, 3, 5)}
	server.SetPause(true)
	for _, msg := range msgs {
		if err := server.Enqueue("S", msg); err != nil {
			t.Fatal(err)
		}
	}
	server.SetPause(false)

	waitfor(t, "frame", func() bool {
		client.TickEnd()
		return disp.count() > 0
	})
	if n := disp.count(); n != 1 {
		t.Fatalf("expected %v, got %v", 1, n)
	} else if disp.frames[0].session != "S" {
		t.Errorf("expected %v, got %v", "S", disp.frames[0].session)
	} else if ref := records(t, msgs...); !bytes.Equal(disp.frames[0].frame, ref) {
		t.Errorf("expected %v, got %v", ref, disp.frames[0].frame)
	}

	id, debugid, _, ok := ParseRecord(disp.frames[0].frame)
	if !ok {
		t.Errorf("expected a record")
	} else if id != 1 || debugid != 1 {
		t.Errorf("expected %v/%v, got %v/%v", 1, 1, id, debugid)
	}

	if n := server.Stat()["n_chunks"]; n != 1 {
		t.Errorf("expected %v, got %v", 1, n)
	} else if n := client.Stat()["n_delivered"]; n != 1 {
		t.Errorf("expected %v, got %v", 1, n)
	} else if err := server.Err(); err != nil {
		t.Errorf("unexpected %v", err)
	} else if err := client.Err(); err != nil {
		t.Errorf("unexpected %v", err)
	}
}

func TestPipelineLarge(t *testing.T) {
	defer leaktest.Check(t)()

	server, client, disp := loopback(t, "large")
	defer server.Close()
	defer client.Close()

	rnd := rand.New(rand.NewSource(5))
	msgs := []Message{}
	for i := 0; i < 2000; i++ {
		payload := make([]byte, 100)
		rnd.Read(payload)
		msgs = append(msgs, &testMsg{id: uint16(i), debugid: uint32(i), payload: payload})
	}
	server.SetPause(true)
	for _, msg := range msgs {
		server.Enqueue("S", msg)
	}
	server.SetPause(false)

	waitfor(t, "frame", func() bool {
		client.TickEnd()
		return disp.count() > 0
	})
	if n := server.Stat()["n_chunks"]; n < 2 {
		t.Errorf("expected more than one chunk, got %v", n)
	} else if n := disp.count(); n != 1 {
		t.Errorf("expected %v, got %v", 1, n)
	} else if !bytes.Equal(records(t, msgs...), disp.frames[0].frame) {
		t.Errorf("unexpected frame of %v bytes", len(disp.frames[0].frame))
	}
}

func TestPipelineClear(t *testing.T) {
	defer leaktest.Check(t)()

	server, client, disp := loopback(t, "clear")
	defer server.Close()
	defer client.Close()

	server.SetPause(true)
	server.Enqueue("S", newTestMsg(1, 1, 10))
	server.Clear("S")
	fresh := newTestMsg(2, 2, 10)
	server.Enqueue("S", fresh)
	server.SetPause(false)

	waitfor(t, "frame", func() bool {
		client.TickEnd()
		return disp.count() > 0
	})
	if ref := records(t, fresh); !bytes.Equal(disp.frames[0].frame, ref) {
		t.Errorf("expected %v, got %v", ref, disp.frames[0].frame)
	}
}

func TestPipelineName(t *testing.T) {
	defer leaktest.Check(t)()

	p, err := NewPipeline("dup", &sendRecorder{}, &frameRecorder{}, nil)
	if err != nil {
		t.Fatal(err)
	} else if name := p.Name(); name != "dup" {
		t.Errorf("expected %v, got %v", "dup", name)
	}
	if _, err = NewPipeline("dup", &sendRecorder{}, &frameRecorder{}, nil); err == nil {
		t.Errorf("expected error for duplicate name")
	}

	if Stat("dup") == nil {
		t.Errorf("expected stats for %v", "dup")
	}
	p.Close()
	if stats := Stat("dup"); stats != nil {
		t.Errorf("expected nil, got %v", stats)
	}

	// name can be reused once closed.
	p, err = NewPipeline("dup", &sendRecorder{}, &frameRecorder{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
}

func TestStatshandler(t *testing.T) {
	defer leaktest.Check(t)()

	p, err := NewPipeline("stats", &sendRecorder{}, &frameRecorder{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	p.TickEnd()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/gocork/statistics?name=stats&keys=n_ticks", nil)
	Statshandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected %v, got %v", http.StatusOK, rec.Code)
	} else if ctype := rec.Header().Get("Content-Type"); ctype != "application/json" {
		t.Errorf("expected %v, got %v", "application/json", ctype)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"n_ticks"`) {
		t.Errorf("expected n_ticks in %v", body)
	} else if strings.Contains(body, `"n_chunks"`) {
		t.Errorf("unexpected n_chunks in %v", body)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/gocork/statistics?name=missing", nil)
	Statshandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected %v, got %v", http.StatusNotFound, rec.Code)
	}

	if n := Stats()["n_ticks"]; n < 1 {
		t.Errorf("expected at least %v, got %v", 1, n)
	}
}

func TestFilterstats(t *testing.T) {
	stats := map[string]uint64{"a": 1, "b": 2, "c": 3}
	if out := filterstats(stats, nil); !reflect.DeepEqual(out, stats) {
		t.Errorf("expected %v, got %v", stats, out)
	}
	ref := map[string]uint64{"a": 1, "c": 3}
	if out := filterstats(stats, []string{"a", "c"}); !reflect.DeepEqual(out, ref) {
		t.Errorf("expected %v, got %v", ref, out)
	}
	refs := []string{"a", "b", "c"}
	if out := csv2strings("a ,, b,c", nil); !reflect.DeepEqual(out, refs) {
		t.Errorf("expected %v, got %v", refs, out)
	}
}

func TestPipelineTickPeriod(t *testing.T) {
	defer leaktest.Check(t)()

	server, client, disp := loopback(t, "period")
	defer server.Close()
	client.TickPeriod(time.Millisecond, false /*cork*/)

	msg := newTestMsg(1, 1, 10)
	if err := server.Enqueue("S", msg); err != nil {
		t.Fatal(err)
	}
	waitfor(t, "frame", func() bool {
		disp.mu.Lock()
		defer disp.mu.Unlock()
		return len(disp.frames) > 0
	})
	client.Close()

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if ref := records(t, msg); !bytes.Equal(disp.frames[0].frame, ref) {
		t.Errorf("expected %v, got %v", ref, disp.frames[0].frame)
	}
}
