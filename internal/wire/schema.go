package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrBadPayload is returned when a payload cannot be decoded against its
// declared schema.
var ErrBadPayload = errors.New("wire: bad payload")

// Strings inside payloads are encoded as a u32 byte length followed by UTF-8
// bytes. All integers are big-endian, matching the framing layer.

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

func parseString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, ErrBadPayload
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	if uint64(len(buf)) < 4+uint64(n) {
		return "", 0, ErrBadPayload
	}
	return string(buf[4 : 4+n]), 4 + int(n), nil
}

// LoginRequest asks to join an instance. The join token currently is the
// instance id verbatim; the dedicated type keeps it opaque to callers.
type LoginRequest struct {
	JoinToken InstanceID
}

func (r LoginRequest) Encode() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(r.JoinToken))
}

func DecodeLoginRequest(buf []byte) (LoginRequest, error) {
	if len(buf) != 4 {
		return LoginRequest{}, ErrBadPayload
	}
	return LoginRequest{JoinToken: InstanceID(binary.BigEndian.Uint32(buf))}, nil
}

// LoginResponse result tags.
const (
	loginOk       = 0x00
	loginBadToken = 0x01
)

// LoginResponse carries either the assigned player id plus the current
// roster, or a bad-token rejection.
type LoginResponse struct {
	OK     bool
	Player PlayerID
	Peers  []PlayerID
}

func (r LoginResponse) Encode() []byte {
	if !r.OK {
		return []byte{loginBadToken}
	}
	buf := []byte{loginOk}
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.Player))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Peers)))
	for _, p := range r.Peers {
		buf = binary.BigEndian.AppendUint32(buf, uint32(p))
	}
	return buf
}

func DecodeLoginResponse(buf []byte) (LoginResponse, error) {
	if len(buf) < 1 {
		return LoginResponse{}, ErrBadPayload
	}
	switch buf[0] {
	case loginBadToken:
		if len(buf) != 1 {
			return LoginResponse{}, ErrBadPayload
		}
		return LoginResponse{}, nil
	case loginOk:
		if len(buf) < 9 {
			return LoginResponse{}, ErrBadPayload
		}
		r := LoginResponse{OK: true, Player: PlayerID(binary.BigEndian.Uint32(buf[1:5]))}
		n := binary.BigEndian.Uint32(buf[5:9])
		if uint64(len(buf)) != 9+4*uint64(n) {
			return LoginResponse{}, ErrBadPayload
		}
		for i := uint32(0); i < n; i++ {
			off := 9 + 4*i
			r.Peers = append(r.Peers, PlayerID(binary.BigEndian.Uint32(buf[off:off+4])))
		}
		return r, nil
	default:
		return LoginResponse{}, ErrBadPayload
	}
}

// SendChatMessageRequest posts a chat line to the sender's instance.
type SendChatMessageRequest struct {
	Content string
}

func (r SendChatMessageRequest) Encode() []byte {
	return appendString(nil, r.Content)
}

func DecodeSendChatMessageRequest(buf []byte) (SendChatMessageRequest, error) {
	s, n, err := parseString(buf)
	if err != nil || n != len(buf) {
		return SendChatMessageRequest{}, ErrBadPayload
	}
	return SendChatMessageRequest{Content: s}, nil
}

// SendChatMessageResponse acknowledges a chat post.
type SendChatMessageResponse struct {
	OK bool
}

func (r SendChatMessageResponse) Encode() []byte {
	if r.OK {
		return []byte{0x00}
	}
	return []byte{0x01}
}

func DecodeSendChatMessageResponse(buf []byte) (SendChatMessageResponse, error) {
	if len(buf) != 1 || buf[0] > 0x01 {
		return SendChatMessageResponse{}, ErrBadPayload
	}
	return SendChatMessageResponse{OK: buf[0] == 0x00}, nil
}

// ChatEntry is one chat line as stored in instance history and pushed to
// members. SentAt is an RFC 3339 timestamp stamped by the server.
type ChatEntry struct {
	SentAt  string
	Sender  PlayerID
	Message string
}

func (e ChatEntry) Encode() []byte {
	buf := appendString(nil, e.SentAt)
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.Sender))
	return appendString(buf, e.Message)
}

func DecodeChatEntry(buf []byte) (ChatEntry, error) {
	sentAt, n, err := parseString(buf)
	if err != nil {
		return ChatEntry{}, err
	}
	buf = buf[n:]
	if len(buf) < 4 {
		return ChatEntry{}, ErrBadPayload
	}
	sender := PlayerID(binary.BigEndian.Uint32(buf[0:4]))
	msg, n, err := parseString(buf[4:])
	if err != nil || n != len(buf)-4 {
		return ChatEntry{}, ErrBadPayload
	}
	return ChatEntry{SentAt: sentAt, Sender: sender, Message: msg}, nil
}

// PlayerJoined and PlayerLeft are membership push payloads.
type PlayerJoined struct {
	Player PlayerID
}

func (p PlayerJoined) Encode() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(p.Player))
}

func DecodePlayerJoined(buf []byte) (PlayerJoined, error) {
	if len(buf) != 4 {
		return PlayerJoined{}, ErrBadPayload
	}
	return PlayerJoined{Player: PlayerID(binary.BigEndian.Uint32(buf))}, nil
}

type PlayerLeft struct {
	Player PlayerID
}

func (p PlayerLeft) Encode() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(p.Player))
}

func DecodePlayerLeft(buf []byte) (PlayerLeft, error) {
	if len(buf) != 4 {
		return PlayerLeft{}, ErrBadPayload
	}
	return PlayerLeft{Player: PlayerID(binary.BigEndian.Uint32(buf))}, nil
}

// StandingTransform is a player pose: position plus a packed yaw in [-2, 2].
// The rotation basis is reconstructed as xx = |yaw|-1 and
// xz = sign(yaw)·sqrt(1-xx²).
type StandingTransform struct {
	X   float64
	Y   float64
	Z   float64
	Yaw float64
}

const standingTransformSize = 4 * 8

func (t StandingTransform) append(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(t.X))
	dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(t.Y))
	dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(t.Z))
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(t.Yaw))
}

func parseStandingTransform(buf []byte) (StandingTransform, error) {
	if len(buf) < standingTransformSize {
		return StandingTransform{}, ErrBadPayload
	}
	return StandingTransform{
		X:   math.Float64frombits(binary.BigEndian.Uint64(buf[0:8])),
		Y:   math.Float64frombits(binary.BigEndian.Uint64(buf[8:16])),
		Z:   math.Float64frombits(binary.BigEndian.Uint64(buf[16:24])),
		Yaw: math.Float64frombits(binary.BigEndian.Uint64(buf[24:32])),
	}, nil
}

// Basis expands the packed yaw into the x and z rows of the rotation basis.
func (t StandingTransform) Basis() (xx, xz, zx, zz float64) {
	xx = math.Abs(t.Yaw) - 1
	xz = math.Sqrt(1-xx*xx) * sign(t.Yaw)
	return xx, xz, -xz, xx
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// PubPlayerMove is the client→server movement event payload.
type PubPlayerMove struct {
	Now StandingTransform
}

func (p PubPlayerMove) Encode() []byte {
	return p.Now.append(nil)
}

func DecodePubPlayerMove(buf []byte) (PubPlayerMove, error) {
	if len(buf) != standingTransformSize {
		return PubPlayerMove{}, ErrBadPayload
	}
	t, err := parseStandingTransform(buf)
	if err != nil {
		return PubPlayerMove{}, err
	}
	return PubPlayerMove{Now: t}, nil
}

// PushPlayerMove is the server→client movement fan-out payload.
type PushPlayerMove struct {
	Player PlayerID
	Now    StandingTransform
}

func (p PushPlayerMove) Encode() []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(p.Player))
	return p.Now.append(buf)
}

func DecodePushPlayerMove(buf []byte) (PushPlayerMove, error) {
	if len(buf) != 4+standingTransformSize {
		return PushPlayerMove{}, ErrBadPayload
	}
	t, err := parseStandingTransform(buf[4:])
	if err != nil {
		return PushPlayerMove{}, err
	}
	return PushPlayerMove{
		Player: PlayerID(binary.BigEndian.Uint32(buf[0:4])),
		Now:    t,
	}, nil
}
