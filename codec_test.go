package gocork

import "bytes"
import "strings"
import "testing"

import "github.com/pkg/errors"

func TestSerializeMessage(t *testing.T) {
	msg := &testMsg{id: 0x0102, debugid: 0x03040506, payload: []byte("hello")}
	ref := append([]byte{1, 2, 3, 4, 5, 6}, "hello"...)
	out, err := SerializeMessage(msg, nil)
	if err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(out, ref) {
		t.Errorf("expected %v, got %v", ref, out)
	}
	// appends to existing records.
	out, err = SerializeMessage(msg, out)
	if err != nil {
		t.Fatal(err)
	} else if ref = append(ref, ref...); !bytes.Equal(out, ref) {
		t.Errorf("expected %v, got %v", ref, out)
	}
}

func TestSerializeModified(t *testing.T) {
	prefix := []byte("previous")
	msg := newTestMsg(7, 1, 10)
	msg.mutate = true
	out, err := SerializeMessage(msg, prefix)
	if errors.Cause(err) != ErrorSerializationFault {
		t.Fatalf("expected %v, got %v", ErrorSerializationFault, err)
	} else if !strings.Contains(err.Error(), "*gocork.testMsg") {
		t.Errorf("expected message type in %q", err.Error())
	} else if !bytes.Equal(out, prefix) {
		t.Errorf("expected %q, got %q", prefix, out)
	}
}

func TestSerializePanic(t *testing.T) {
	msg := newTestMsg(7, 1, 10)
	msg.crash = true
	out, err := SerializeMessage(msg, nil)
	if errors.Cause(err) != ErrorSerializationFault {
		t.Fatalf("expected %v, got %v", ErrorSerializationFault, err)
	} else if !strings.Contains(err.Error(), "concurrent map") {
		t.Errorf("expected panic value in %q", err.Error())
	} else if len(out) != 0 {
		t.Errorf("expected empty, got %v", out)
	}
}

func TestParseRecord(t *testing.T) {
	msg := &testMsg{id: 0xfffe, debugid: 42, payload: []byte{9, 8, 7}}
	record, _ := SerializeMessage(msg, nil)
	id, debugid, payload, ok := ParseRecord(record)
	if !ok {
		t.Fatalf("expected record")
	} else if id != 0xfffe {
		t.Errorf("expected %v, got %v", 0xfffe, id)
	} else if debugid != 42 {
		t.Errorf("expected %v, got %v", 42, debugid)
	} else if !bytes.Equal(payload, []byte{9, 8, 7}) {
		t.Errorf("expected %v, got %v", []byte{9, 8, 7}, payload)
	}
	if _, _, _, ok = ParseRecord(record[:5]); ok {
		t.Errorf("expected short record to fail")
	}
}

func TestExtractFrame(t *testing.T) {
	full := AppendFrame(nil, []byte("abcdef"))
	if ref := []byte{0, 0, 0, 6, 'a', 'b', 'c', 'd', 'e', 'f'}; !bytes.Equal(full, ref) {
		t.Fatalf("expected %v, got %v", ref, full)
	}
	two := append(append([]byte{}, full...), AppendFrame(nil, nil)...)

	testcases := []struct {
		in        []byte
		ok        bool
		frame     []byte
		remainder []byte
	}{
		{nil, false, nil, nil},
		{[]byte{0, 0, 0}, false, nil, []byte{0, 0, 0}},
		{full[:4], false, nil, full[:4]},
		{full[:9], false, nil, full[:9]},
		{full, true, []byte("abcdef"), []byte{}},
		{two, true, []byte("abcdef"), []byte{0, 0, 0, 0}},
		{[]byte{0, 0, 0, 0}, true, []byte{}, []byte{}},
		{[]byte{0xff, 0xff, 0xff, 0xff, 1}, false, nil, []byte{0xff, 0xff, 0xff, 0xff, 1}},
	}
	for i, tcase := range testcases {
		frame, remainder, ok := ExtractFrame(tcase.in)
		if ok != tcase.ok {
			t.Errorf("case %v expected %v, got %v", i, tcase.ok, ok)
		} else if !bytes.Equal(frame, tcase.frame) {
			t.Errorf("case %v expected %v, got %v", i, tcase.frame, frame)
		} else if !bytes.Equal(remainder, tcase.remainder) {
			t.Errorf("case %v expected %v, got %v", i, tcase.remainder, remainder)
		}
	}
}

func TestModcount(t *testing.T) {
	var m Modcount
	if n := m.ModCount(); n != 0 {
		t.Errorf("expected %v, got %v", 0, n)
	}
	m.Touch()
	m.Touch()
	if n := m.ModCount(); n != 2 {
		t.Errorf("expected %v, got %v", 2, n)
	}
}
