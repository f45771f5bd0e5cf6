package wire

import "fmt"

// EventType identifies a fire-and-forget message. Events carry no message id;
// the direction is fixed per type.
type EventType uint8

const (
	InstancePlayerJoinedPush EventType = iota
	InstancePlayerLeftPush
	InstancePubPlayerMovePull
	InstancePushPlayerMovePush
	TextChatReceiveChatMessagePush

	eventTypeCount
)

var eventTypeNames = [eventTypeCount]string{
	InstancePlayerJoinedPush:       "Instance_PlayerJoined_Push",
	InstancePlayerLeftPush:         "Instance_PlayerLeft_Push",
	InstancePubPlayerMovePull:      "Instance_PubPlayerMove_Pull",
	InstancePushPlayerMovePush:     "Instance_PushPlayerMove_Push",
	TextChatReceiveChatMessagePush: "TextChat_ReceiveChatMessage_Push",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Direction returns which side emits events of this type.
func (t EventType) Direction() Direction {
	return eventDirections[t]
}

var eventTypeCodes = [eventTypeCount][4]byte{
	InstancePlayerJoinedPush:       {0x00, 0x02, 0x00, 0x01},
	InstancePlayerLeftPush:         {0x00, 0x02, 0x00, 0x02},
	InstancePubPlayerMovePull:      {0x00, 0x02, 0x01, 0x01},
	InstancePushPlayerMovePush:     {0x00, 0x02, 0x01, 0x02},
	TextChatReceiveChatMessagePush: {0x00, 0x03, 0x00, 0x01},
}

var eventDirections = [eventTypeCount]Direction{
	InstancePlayerJoinedPush:       Push,
	InstancePlayerLeftPush:         Push,
	InstancePubPlayerMovePull:      Pull,
	InstancePushPlayerMovePush:     Push,
	TextChatReceiveChatMessagePush: Push,
}

var eventDirectionCodes = [2][2]byte{
	Push: {0x02, 0x00},
	Pull: {0x03, 0x00},
}

// EventHeader heads a fire-and-forget message.
type EventHeader struct {
	Direction Direction
	Type      EventType
}

const eventHeaderSize = 2 + 4

func appendEventHeader(dst []byte, h EventHeader) []byte {
	code := eventDirectionCodes[h.Direction]
	dst = append(dst, code[:]...)
	typ := eventTypeCodes[h.Type]
	return append(dst, typ[:]...)
}

// parseEventHeader decodes an event header authored by author. The wire
// direction must match the type's declared direction, and the author must be
// on the emitting side (clients only emit Pull events, servers only Push).
func parseEventHeader(buf []byte, author Author) (EventHeader, int, error) {
	if len(buf) < eventHeaderSize {
		return EventHeader{}, 0, errShort
	}
	dir, ok := lookupEventDirection(buf[0], buf[1])
	if !ok {
		return EventHeader{}, 0, errInvalid
	}
	typ, ok := lookupEventType(buf[2:6])
	if !ok {
		return EventHeader{}, 0, errInvalid
	}
	if eventDirections[typ] != dir {
		return EventHeader{}, 0, errInvalid
	}
	var want Direction
	if author == AuthorClient {
		want = Pull
	} else {
		want = Push
	}
	if dir != want {
		return EventHeader{}, 0, errInvalid
	}
	return EventHeader{Direction: dir, Type: typ}, eventHeaderSize, nil
}

func lookupEventDirection(b0, b1 byte) (Direction, bool) {
	for dir, code := range eventDirectionCodes {
		if code[0] == b0 && code[1] == b1 {
			return Direction(dir), true
		}
	}
	return 0, false
}

func lookupEventType(b []byte) (EventType, bool) {
	for t, code := range eventTypeCodes {
		if code[0] == b[0] && code[1] == b[1] && code[2] == b[2] && code[3] == b[3] {
			return EventType(t), true
		}
	}
	return 0, false
}
