package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// encodeUnits serializes units through a Conn and returns the raw bytes.
func encodeUnits(t *testing.T, units ...Unit) []byte {
	t.Helper()
	var buf bytes.Buffer
	c := NewConn(&buf, AuthorClient)
	if err := c.WriteMessage(units...); err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, raw []byte, author Author) []Unit {
	t.Helper()
	buf := bytes.NewBuffer(raw)
	c := NewConn(buf, author)
	var units []Unit
	for {
		u, err := c.ReadUnit()
		if err == io.EOF {
			return units
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		units = append(units, u)
	}
}

func TestReadSuteraHeader(t *testing.T) {
	h := SuteraHeader{Version: Version{Major: 0, Minor: 1, Patch: 0}}
	units := readAll(t, encodeUnits(t, h), AuthorClient)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if got := units[0].(SuteraHeader); got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestReadClientMessage(t *testing.T) {
	h := SuteraHeader{Version: SchemaVersion}
	oh := OneshotHeader{Step: StepRequest, Type: AuthenticationLoginPull, MessageID: 0x1234}
	payload := Content("Wao!")

	units := readAll(t, encodeUnits(t, h, oh, payload), AuthorClient)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if got := units[0].(SuteraHeader); got != h {
		t.Errorf("header: got %+v, want %+v", got, h)
	}
	if got := units[1].(OneshotHeader); got != oh {
		t.Errorf("oneshot: got %+v, want %+v", got, oh)
	}
	if got := units[2].(Content); !bytes.Equal(got, payload) {
		t.Errorf("content: got %q, want %q", got, payload)
	}
}

func TestReadServerMessage(t *testing.T) {
	h := SuteraHeader{Version: SchemaVersion}
	st := OK()
	oh := OneshotHeader{Step: StepResponse, Type: AuthenticationLoginPull, MessageID: 0x1234}
	payload := Content("Wao!")

	units := readAll(t, encodeUnits(t, h, st, oh, payload), AuthorServer)
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}
	if got := units[1].(Status); got != st {
		t.Errorf("status: got %+v, want %+v", got, st)
	}
	if got := units[2].(OneshotHeader); got != oh {
		t.Errorf("oneshot: got %+v, want %+v", got, oh)
	}
}

func TestReadEventMessage(t *testing.T) {
	h := SuteraHeader{Version: SchemaVersion}
	eh := EventHeader{Direction: Pull, Type: InstancePubPlayerMovePull}
	payload := Content(PubPlayerMove{Now: StandingTransform{X: 1}}.Encode())

	units := readAll(t, encodeUnits(t, h, eh, payload), AuthorClient)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if got := units[1].(EventHeader); got != eh {
		t.Errorf("event: got %+v, want %+v", got, eh)
	}
}

// Bytes injected between two messages must surface as a single Unfragmented
// diagnostic, after which decoding resumes at the next anchor.
func TestReadWithInjectedGarbage(t *testing.T) {
	h := SuteraHeader{Version: Version{Minor: 1}}
	encoded := encodeUnits(t, h)

	for _, inject := range [][]byte{
		{0x01, 0x02, 0x03},
		[]byte("LongPayloooooooooooooad"),
		{0x0f},
	} {
		var raw []byte
		raw = append(raw, encoded...)
		raw = append(raw, inject...)
		raw = append(raw, encoded...)

		for _, author := range []Author{AuthorClient, AuthorServer} {
			units := readAll(t, raw, author)
			if len(units) != 3 {
				t.Fatalf("inject %v author %v: got %d units, want 3", inject, author, len(units))
			}
			if got := units[1].(Unfragmented); !bytes.Equal(got, inject) {
				t.Errorf("inject %v: unfragmented = %v", inject, got)
			}
			if _, ok := units[2].(SuteraHeader); !ok {
				t.Errorf("inject %v: expected trailing header, got %T", inject, units[2])
			}
		}
	}
}

// Leading garbage before the very first anchor surfaces as a diagnostic.
func TestReadLeadingGarbage(t *testing.T) {
	h := SuteraHeader{Version: SchemaVersion}
	oh := OneshotHeader{Step: StepRequest, Type: ConnectionHealthCheckPull, MessageID: 0x123}

	raw := []byte{0xAA, 0xBB, 0xCC}
	raw = append(raw, encodeUnits(t, h, oh, Content(nil))...)

	units := readAll(t, raw, AuthorClient)
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}
	if got := units[0].(Unfragmented); !bytes.Equal(got, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("unfragmented = %v", got)
	}
	if got := units[3].(Content); len(got) != 0 {
		t.Errorf("content length = %d, want 0", len(got))
	}
}

// A mismatched duplicated length must force desync recovery, never a payload
// delivery.
func TestContentLengthMismatch(t *testing.T) {
	h := SuteraHeader{Version: SchemaVersion}
	oh := OneshotHeader{Step: StepRequest, Type: ConnectionHealthCheckPull, MessageID: 1}

	raw := encodeUnits(t, h, oh)
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 4) // first length: 4
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 9) // second length disagrees
	raw = append(raw, 'a', 'b', 'c', 'd')
	raw = append(raw, encodeUnits(t, h, oh, Content(nil))...)

	units := readAll(t, raw, AuthorClient)
	for _, u := range units {
		if c, ok := u.(Content); ok && len(c) == 4 {
			t.Fatalf("mismatched content was delivered: %q", c)
		}
	}
	// Decoding must recover: the final message arrives intact.
	n := len(units)
	if n < 3 {
		t.Fatalf("got %d units, want trailing message", n)
	}
	if _, ok := units[n-3].(SuteraHeader); !ok {
		t.Errorf("expected recovered header, got %T", units[n-3])
	}
	if _, ok := units[n-1].(Content); !ok {
		t.Errorf("expected recovered content, got %T", units[n-1])
	}
}

// With no anchor in sight the scanner must emit a chunk every 1024 bytes to
// bound memory.
func TestUnfragmentedChunking(t *testing.T) {
	raw := bytes.Repeat([]byte{0x55}, 3000)
	buf := bytes.NewBuffer(raw)
	c := NewConn(buf, AuthorClient)

	var total int
	for i := 0; i < 2; i++ {
		u, err := c.ReadUnit()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		chunk, ok := u.(Unfragmented)
		if !ok {
			t.Fatalf("read %d: got %T", i, u)
		}
		if len(chunk) != unfragmentedChunk {
			t.Errorf("read %d: chunk length %d, want %d", i, len(chunk), unfragmentedChunk)
		}
		total += len(chunk)
	}
	if total != 2048 {
		t.Errorf("chunked %d bytes, want 2048", total)
	}
}

func TestReadEOFMidFrame(t *testing.T) {
	raw := encodeUnits(t, SuteraHeader{Version: SchemaVersion})
	buf := bytes.NewBuffer(raw[:5])
	c := NewConn(buf, AuthorClient)
	if _, err := c.ReadUnit(); !errors.Is(err, ErrConnectionReset) {
		t.Errorf("got %v, want ErrConnectionReset", err)
	}
}

func TestReadCleanEOF(t *testing.T) {
	c := NewConn(&bytes.Buffer{}, AuthorClient)
	if _, err := c.ReadUnit(); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

// A server must reject a Push request from a client and vice versa during
// header parse.
func TestOneshotDirectionMismatch(t *testing.T) {
	tests := []struct {
		name   string
		author Author
		header OneshotHeader
		ok     bool
	}{
		{"client pull request", AuthorClient, OneshotHeader{StepRequest, ConnectionHealthCheckPull, 1}, true},
		{"client push request", AuthorClient, OneshotHeader{StepRequest, ConnectionHealthCheckPush, 1}, false},
		{"client push response", AuthorClient, OneshotHeader{StepResponse, ConnectionHealthCheckPush, 1}, true},
		{"client pull response", AuthorClient, OneshotHeader{StepResponse, ConnectionHealthCheckPull, 1}, false},
		{"server push request", AuthorServer, OneshotHeader{StepRequest, ConnectionHealthCheckPush, 1}, true},
		{"server pull request", AuthorServer, OneshotHeader{StepRequest, ConnectionHealthCheckPull, 1}, false},
		{"server pull response", AuthorServer, OneshotHeader{StepResponse, ConnectionHealthCheckPull, 1}, true},
		{"server push response", AuthorServer, OneshotHeader{StepResponse, ConnectionHealthCheckPush, 1}, false},
	}
	for _, tt := range tests {
		raw := appendOneshotHeader(nil, tt.header)
		_, _, err := parseOneshotHeader(raw, tt.author)
		if got := err == nil; got != tt.ok {
			t.Errorf("%s: parse ok = %v, want %v", tt.name, got, tt.ok)
		}
	}
}

func TestEventDirectionMismatch(t *testing.T) {
	push := EventHeader{Direction: Push, Type: InstancePlayerJoinedPush}
	pull := EventHeader{Direction: Pull, Type: InstancePubPlayerMovePull}

	if _, _, err := parseEventHeader(appendEventHeader(nil, push), AuthorServer); err != nil {
		t.Errorf("server push event rejected: %v", err)
	}
	if _, _, err := parseEventHeader(appendEventHeader(nil, push), AuthorClient); err == nil {
		t.Error("client-authored push event accepted")
	}
	if _, _, err := parseEventHeader(appendEventHeader(nil, pull), AuthorClient); err != nil {
		t.Errorf("client pull event rejected: %v", err)
	}
	if _, _, err := parseEventHeader(appendEventHeader(nil, pull), AuthorServer); err == nil {
		t.Error("server-authored pull event accepted")
	}
	// Wire direction contradicting the type's table is rejected outright.
	bad := appendEventHeader(nil, EventHeader{Direction: Pull, Type: InstancePlayerJoinedPush})
	if _, _, err := parseEventHeader(bad, AuthorClient); err == nil {
		t.Error("direction/type contradiction accepted")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	statuses := []Status{
		OK(),
		Warn(WarnSchemaVersionNotExactlyMatched),
		Err(ErrSchemaVersionNotSupported),
		Err(ErrBadRequest),
		Err(ErrUnimplemented),
		Err(ErrUnauthorized),
		Err(ErrAuthenticationExpired),
		Err(ErrForbidden),
		Err(ErrYouAreNotInInstance),
	}
	for _, s := range statuses {
		raw := appendStatus(nil, s)
		got, n, err := parseStatus(raw)
		if err != nil {
			t.Errorf("%v: %v", s, err)
			continue
		}
		if n != len(raw) {
			t.Errorf("%v: consumed %d of %d bytes", s, n, len(raw))
		}
		if got != s {
			t.Errorf("got %v, want %v", got, s)
		}
	}
}

func TestStatusUnknownCode(t *testing.T) {
	if _, _, err := parseStatus([]byte{0x02, 0xFF, 0xFF, 0xFF}); err == nil {
		t.Error("unknown error code accepted")
	}
	if _, _, err := parseStatus([]byte{0x03, 0x00, 0x00, 0x00}); err == nil {
		t.Error("unknown class tag accepted")
	}
}

func TestHeaderBadAnchor(t *testing.T) {
	raw := appendSuteraHeader(nil, SuteraHeader{Version: SchemaVersion})
	copy(raw, "Tesura")
	if _, _, err := parseSuteraHeader(raw); err == nil {
		t.Error("corrupted anchor accepted")
	}
}
