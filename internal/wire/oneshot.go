package wire

import (
	"encoding/binary"
	"fmt"
)

// OneshotStep distinguishes the opening request of an exchange from its
// reply.
type OneshotStep uint8

const (
	StepRequest OneshotStep = iota
	StepResponse

	stepCount
)

func (s OneshotStep) String() string {
	if s == StepRequest {
		return "request"
	}
	return "response"
}

// OneshotType identifies a request/response pair. Each type has a fixed byte
// encoding and a direction: Pull types are opened by the client, Push types
// by the server.
type OneshotType uint8

const (
	ConnectionHealthCheckPush OneshotType = iota
	ConnectionHealthCheckPull
	AuthenticationLoginPull
	TextChatSendMessagePull
	VoiceChatSubVoiceTopicPull
	VoiceChatUnsubVoiceTopicPull
	VoiceChatSubAllVoiceTopicPull

	oneshotTypeCount
)

var oneshotTypeNames = [oneshotTypeCount]string{
	ConnectionHealthCheckPush:     "Connection_HealthCheck_Push",
	ConnectionHealthCheckPull:     "Connection_HealthCheck_Pull",
	AuthenticationLoginPull:       "Authentication_Login_Pull",
	TextChatSendMessagePull:       "TextChat_SendMessage_Pull",
	VoiceChatSubVoiceTopicPull:    "VoiceChat_SubVoiceTopic_Pull",
	VoiceChatUnsubVoiceTopicPull:  "VoiceChat_UnsubVoiceTopic_Pull",
	VoiceChatSubAllVoiceTopicPull: "VoiceChat_SubAllVoiceTopic_Pull",
}

func (t OneshotType) String() string {
	if int(t) < len(oneshotTypeNames) {
		return oneshotTypeNames[t]
	}
	return fmt.Sprintf("oneshot(%d)", uint8(t))
}

// Direction returns which side opens exchanges of this type.
func (t OneshotType) Direction() Direction {
	return oneshotDirections[t]
}

var oneshotStepCodes = [stepCount][2]byte{
	StepRequest:  {0x01, 0x00},
	StepResponse: {0x01, 0x01},
}

var oneshotTypeCodes = [oneshotTypeCount][4]byte{
	ConnectionHealthCheckPush:     {0x00, 0x00, 0x00, 0x00},
	ConnectionHealthCheckPull:     {0x00, 0x00, 0x00, 0x01},
	AuthenticationLoginPull:       {0x00, 0x01, 0x00, 0x00},
	TextChatSendMessagePull:       {0x00, 0x03, 0x00, 0x00},
	VoiceChatSubVoiceTopicPull:    {0x00, 0x03, 0x01, 0x00},
	VoiceChatUnsubVoiceTopicPull:  {0x00, 0x03, 0x01, 0x01},
	VoiceChatSubAllVoiceTopicPull: {0x00, 0x03, 0x01, 0x02},
}

// Direction is kept in a separate table from the byte encoding so the decoder
// can cross-check direction against the author before committing to a
// variant.
var oneshotDirections = [oneshotTypeCount]Direction{
	ConnectionHealthCheckPush:     Push,
	ConnectionHealthCheckPull:     Pull,
	AuthenticationLoginPull:       Pull,
	TextChatSendMessagePull:       Pull,
	VoiceChatSubVoiceTopicPull:    Pull,
	VoiceChatUnsubVoiceTopicPull:  Pull,
	VoiceChatSubAllVoiceTopicPull: Pull,
}

// OneshotHeader heads a correlated request/response message.
type OneshotHeader struct {
	Step      OneshotStep
	Type      OneshotType
	MessageID MessageID
}

const oneshotHeaderSize = 2 + 8 + 4

func appendOneshotHeader(dst []byte, h OneshotHeader) []byte {
	step := oneshotStepCodes[h.Step]
	dst = append(dst, step[:]...)
	dst = binary.BigEndian.AppendUint64(dst, uint64(h.MessageID))
	code := oneshotTypeCodes[h.Type]
	return append(dst, code[:]...)
}

// parseOneshotHeader decodes a oneshot header authored by author. A header
// whose type direction contradicts the author/step combination is rejected:
// the author's requests must flow in the type's direction and its responses
// against it.
func parseOneshotHeader(buf []byte, author Author) (OneshotHeader, int, error) {
	if len(buf) < oneshotHeaderSize {
		return OneshotHeader{}, 0, errShort
	}
	step, ok := lookupStep(buf[0], buf[1])
	if !ok {
		return OneshotHeader{}, 0, errInvalid
	}
	id := MessageID(binary.BigEndian.Uint64(buf[2:10]))
	typ, ok := lookupOneshotType(buf[10:14])
	if !ok {
		return OneshotHeader{}, 0, errInvalid
	}
	var want Direction
	switch {
	case author == AuthorClient && step == StepRequest:
		want = Pull
	case author == AuthorClient && step == StepResponse:
		want = Push
	case author == AuthorServer && step == StepRequest:
		want = Push
	default: // server response
		want = Pull
	}
	if oneshotDirections[typ] != want {
		return OneshotHeader{}, 0, errInvalid
	}
	return OneshotHeader{Step: step, Type: typ, MessageID: id}, oneshotHeaderSize, nil
}

func lookupStep(b0, b1 byte) (OneshotStep, bool) {
	for s, code := range oneshotStepCodes {
		if code[0] == b0 && code[1] == b1 {
			return OneshotStep(s), true
		}
	}
	return 0, false
}

func lookupOneshotType(b []byte) (OneshotType, bool) {
	for t, code := range oneshotTypeCodes {
		if code[0] == b[0] && code[1] == b[1] && code[2] == b[2] && code[3] == b[3] {
			return OneshotType(t), true
		}
	}
	return 0, false
}
