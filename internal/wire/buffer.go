package wire

import "log"

// ReceivedMessage is one complete logical message as assembled by a
// FrameBuffer. Exactly one of Oneshot or Event is non-nil. Status is non-nil
// only for server-authored messages.
type ReceivedMessage struct {
	Header  SuteraHeader
	Status  *Status
	Oneshot *OneshotHeader
	Event   *EventHeader
	Payload []byte
}

// Units returns the frame sequence implied by the message, in wire order.
// Re-feeding these units through a FrameBuffer yields the message again.
func (m *ReceivedMessage) Units() []Unit {
	units := []Unit{m.Header}
	if m.Status != nil {
		units = append(units, *m.Status)
	}
	if m.Oneshot != nil {
		units = append(units, *m.Oneshot)
	} else {
		units = append(units, *m.Event)
	}
	return append(units, Content(m.Payload))
}

// FrameBuffer accumulates frame units from a Conn until they form one
// complete logical message. tag is a prefix for log lines, typically the peer
// address.
type FrameBuffer struct {
	units []Unit
	tag   string
}

func NewFrameBuffer(tag string) *FrameBuffer {
	return &FrameBuffer{units: make([]Unit, 0, 4), tag: tag}
}

// Push feeds one unit. It returns the assembled message when the unit
// completes one, and nil otherwise. author is the peer that wrote the units.
//
// A fresh SuteraHeader always resets the buffer: any partial accumulation is
// dropped with a warning. Unfragmented units are logged and dropped. A
// Content unit is accepted only when the preceding units form a valid message
// prefix for the author; otherwise the buffer is cleared.
func (b *FrameBuffer) Push(u Unit, author Author) *ReceivedMessage {
	switch u := u.(type) {
	case SuteraHeader:
		if len(b.units) != 0 {
			log.Printf("[wire %s] skipped %d frame(s)", b.tag, len(b.units))
			b.units = b.units[:0]
		}
		b.units = append(b.units, u)
	case Unfragmented:
		log.Printf("[wire %s] received %d unfragmented byte(s)", b.tag, len(u))
	case Content:
		return b.complete(u, author)
	default:
		b.units = append(b.units, u)
	}
	return nil
}

func (b *FrameBuffer) complete(payload Content, author Author) *ReceivedMessage {
	want := 2
	if author == AuthorServer {
		want = 3
	}
	if len(b.units) != want {
		log.Printf("[wire %s] unexpected content, skipped %d frame(s)", b.tag, len(b.units))
		b.units = b.units[:0]
		return nil
	}

	header, ok := b.units[0].(SuteraHeader)
	if !ok {
		b.units = b.units[:0]
		return nil
	}
	msg := &ReceivedMessage{Header: header, Payload: payload}

	if author == AuthorServer {
		status, ok := b.units[1].(Status)
		if !ok {
			b.units = b.units[:0]
			return nil
		}
		msg.Status = &status
	}

	switch h := b.units[want-1].(type) {
	case OneshotHeader:
		msg.Oneshot = &h
	case EventHeader:
		msg.Event = &h
	default:
		b.units = b.units[:0]
		return nil
	}

	b.units = b.units[:0]
	return msg
}
