package pending

import (
	"testing"

	"suteravr/internal/wire"
)

func TestResolveDeliversToSink(t *testing.T) {
	tbl := NewTable()
	sink := tbl.Register(5)

	msg := &wire.ReceivedMessage{Header: wire.SuteraHeader{Version: wire.SchemaVersion}}
	if !tbl.Resolve(5, msg) {
		t.Fatal("resolve found no sink")
	}
	got, ok := <-sink
	if !ok || got != msg {
		t.Errorf("got %v ok=%v", got, ok)
	}
	if tbl.Len() != 0 {
		t.Errorf("table still holds %d sinks", tbl.Len())
	}
}

func TestResolveUnknownID(t *testing.T) {
	tbl := NewTable()
	if tbl.Resolve(99, &wire.ReceivedMessage{}) {
		t.Error("resolve succeeded for unknown id")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	tbl := NewTable()
	tbl.Register(1)
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	tbl.Register(1)
}

func TestAbandonCancelsWaiters(t *testing.T) {
	tbl := NewTable()
	a := tbl.Register(1)
	b := tbl.Register(2)
	tbl.Abandon()

	if msg, ok := <-a; ok || msg != nil {
		t.Errorf("sink a: got %v ok=%v, want cancelled", msg, ok)
	}
	if msg, ok := <-b; ok || msg != nil {
		t.Errorf("sink b: got %v ok=%v, want cancelled", msg, ok)
	}
}

func TestForgetAllowsReuse(t *testing.T) {
	tbl := NewTable()
	tbl.Register(7)
	tbl.Forget(7)
	if tbl.Resolve(7, &wire.ReceivedMessage{}) {
		t.Error("forgotten id still resolved")
	}
	tbl.Register(7) // must not panic
}
