package main

import (
	"context"
	"crypto/tls"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"suteravr/internal/pending"
	"suteravr/internal/wire"
)

// Server-initiated health check cadence. An unanswered ping past the timeout
// closes the connection. Variables so tests can shorten them.
var (
	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 60 * time.Second
)

// debugFrames enables per-unit logging on the read path. Set from
// LOG_LEVEL=debug at startup.
var debugFrames bool

// outboundMsg is one server-authored logical message queued for the writer
// goroutine. Exactly one of oneshot/event is set.
type outboundMsg struct {
	status  wire.Status
	oneshot *wire.OneshotHeader
	event   *wire.EventHeader
	payload []byte
}

// Session drives one client connection from TLS accept to teardown: it pumps
// the codec into typed messages, dispatches requests, and forwards instance
// events back out. All session state is owned by the session goroutine; the
// reader and writer goroutines touch only the codec and the channels.
type Session struct {
	trace string // short trace id for log correlation
	peer  string
	mgr   *Manager
	ctx   context.Context

	outbound chan outboundMsg
	pending  *pending.Table
	nextID   atomic.Uint64

	// Populated on successful login.
	joined   bool
	player   wire.PlayerID
	instance chan<- InstanceControl
	instDone <-chan struct{}
	inbox    chan InstanceEvent

	// Outstanding server-initiated health check, if any.
	pingSink <-chan *wire.ReceivedMessage
	pingSent time.Time
}

// handleSession runs one connection to completion. It returns when the peer
// disconnects, a framing or I/O error occurs, or ctx is cancelled.
func handleSession(ctx context.Context, conn net.Conn, mgr *Manager) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	s := &Session{
		trace:    uuid.NewString()[:8],
		peer:     conn.RemoteAddr().String(),
		mgr:      mgr,
		ctx:      ctx,
		outbound: make(chan outboundMsg, 32),
		pending:  pending.NewTable(),
	}
	metricConnections.Inc()
	defer metricConnections.Dec()
	log.Printf("[session %s] connection from %s", s.trace, s.peer)

	wc := wire.NewConn(conn, wire.AuthorClient)
	inbound := make(chan *wire.ReceivedMessage, 32)

	// Reader: codec units → frame buffer → assembled messages.
	go func() {
		defer cancel()
		fb := wire.NewFrameBuffer(s.peer)
		for {
			u, err := wc.ReadUnit()
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					log.Printf("[session %s] read: %v", s.trace, err)
				}
				return
			}
			if debugFrames {
				log.Printf("[session %s] frame: %#v", s.trace, u)
			}
			if _, ok := u.(wire.Unfragmented); ok {
				metricDesyncs.Inc()
			}
			msg := fb.Push(u, wire.AuthorClient)
			if msg == nil {
				continue
			}
			metricMessagesIn.Inc()
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Writer: owns the write side of the codec. Frames of one message are
	// staged and flushed together, so messages are never interleaved.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case m := <-s.outbound:
				units := make([]wire.Unit, 0, 4)
				units = append(units, wire.SuteraHeader{Version: wire.SchemaVersion}, m.status)
				if m.oneshot != nil {
					units = append(units, *m.oneshot)
				} else {
					units = append(units, *m.event)
				}
				units = append(units, wire.Content(m.payload))
				if err := wc.WriteMessage(units...); err != nil {
					if ctx.Err() == nil {
						log.Printf("[session %s] write: %v", s.trace, err)
					}
					cancel()
					return
				}
				metricMessagesOut.Inc()
			case <-ctx.Done():
				return
			}
		}
	}()

	ping := time.NewTicker(keepaliveInterval)
	defer ping.Stop()

loop:
	for {
		select {
		case msg := <-inbound:
			s.dispatch(msg)
		case ev := <-s.inbox: // nil until joined
			s.pushEvent(ev)
		case <-ping.C:
			if !s.checkalive() {
				break loop
			}
		case <-ctx.Done():
			break loop
		}
	}

	cancel()
	if s.joined {
		select {
		case s.instance <- Leave{Player: s.player}:
		case <-s.instDone:
		}
	}
	s.pending.Abandon()
	if tc, ok := conn.(*tls.Conn); ok {
		tc.CloseWrite() //nolint:errcheck // best-effort close-notify
	}
	<-writeDone
	log.Printf("[session %s] closed", s.trace)
}

func (s *Session) send(m outboundMsg) {
	select {
	case s.outbound <- m:
	case <-s.ctx.Done():
	}
}

// reply answers a client oneshot with an Ok status and the given payload.
func (s *Session) reply(oh wire.OneshotHeader, payload []byte) {
	s.send(outboundMsg{
		status:  wire.OK(),
		oneshot: &wire.OneshotHeader{Step: wire.StepResponse, Type: oh.Type, MessageID: oh.MessageID},
		payload: payload,
	})
}

// replyErr answers a client oneshot with an error status and empty payload.
func (s *Session) replyErr(oh wire.OneshotHeader, code wire.ErrorCode) {
	s.send(outboundMsg{
		status:  wire.Err(code),
		oneshot: &wire.OneshotHeader{Step: wire.StepResponse, Type: oh.Type, MessageID: oh.MessageID},
		payload: nil,
	})
}

func (s *Session) dispatch(msg *wire.ReceivedMessage) {
	switch {
	case msg.Oneshot != nil:
		oh := *msg.Oneshot
		if oh.Step == wire.StepResponse {
			// The reply arm of a server-initiated push.
			if !s.pending.Resolve(oh.MessageID, msg) {
				log.Printf("[session %s] unmatched response id %#x", s.trace, uint64(oh.MessageID))
			}
			return
		}
		s.dispatchOneshot(oh, msg.Payload)
	case msg.Event != nil:
		s.dispatchEvent(*msg.Event, msg.Payload)
	}
}

func (s *Session) dispatchOneshot(oh wire.OneshotHeader, payload []byte) {
	switch oh.Type {
	case wire.ConnectionHealthCheckPull:
		s.reply(oh, nil)
	case wire.AuthenticationLoginPull:
		s.handleLogin(oh, payload)
	case wire.TextChatSendMessagePull:
		s.handleChat(oh, payload)
	default:
		s.replyErr(oh, wire.ErrUnimplemented)
	}
}

func (s *Session) handleLogin(oh wire.OneshotHeader, payload []byte) {
	req, err := wire.DecodeLoginRequest(payload)
	if err != nil {
		s.replyErr(oh, wire.ErrBadRequest)
		return
	}
	if s.joined {
		s.replyErr(oh, wire.ErrBadRequest)
		return
	}

	// The join token is the instance id for now; the manager is the one
	// place that would consult the balancer once real tokens exist.
	grant, ok := s.mgr.JoinInstance(wire.InstanceID(req.JoinToken))
	if !ok {
		log.Printf("[session %s] login rejected: no instance %d", s.trace, req.JoinToken)
		s.reply(oh, wire.LoginResponse{}.Encode())
		return
	}

	inbox := make(chan InstanceEvent, 32)
	rosterCh := make(chan []wire.PlayerID, 1)
	join := Join{
		Player: grant.Player,
		Member: Member{Inbox: inbox, Done: s.ctx.Done()},
		Reply:  rosterCh,
	}
	select {
	case grant.Instance <- join:
	case <-grant.Done:
		s.reply(oh, wire.LoginResponse{}.Encode())
		return
	}
	var roster []wire.PlayerID
	select {
	case roster = <-rosterCh:
	case <-grant.Done:
		s.reply(oh, wire.LoginResponse{}.Encode())
		return
	}

	s.joined = true
	s.player = grant.Player
	s.instance = grant.Instance
	s.instDone = grant.Done
	s.inbox = inbox
	log.Printf("[session %s] player %d joined instance %d", s.trace, grant.Player, req.JoinToken)

	s.reply(oh, wire.LoginResponse{OK: true, Player: grant.Player, Peers: roster}.Encode())
}

func (s *Session) handleChat(oh wire.OneshotHeader, payload []byte) {
	if !s.joined {
		s.replyErr(oh, wire.ErrUnauthorized)
		return
	}
	req, err := wire.DecodeSendChatMessageRequest(payload)
	if err != nil {
		s.replyErr(oh, wire.ErrBadRequest)
		return
	}
	entry := wire.ChatEntry{
		SentAt:  time.Now().UTC().Format(time.RFC3339),
		Sender:  s.player,
		Message: req.Content,
	}
	select {
	case s.instance <- PostChat{Entry: entry}:
	case <-s.instDone:
	}
	s.reply(oh, wire.SendChatMessageResponse{OK: true}.Encode())
}

func (s *Session) dispatchEvent(eh wire.EventHeader, payload []byte) {
	switch eh.Type {
	case wire.InstancePubPlayerMovePull:
		if !s.joined {
			log.Printf("[session %s] movement before join, dropped", s.trace)
			return
		}
		pm, err := wire.DecodePubPlayerMove(payload)
		if err != nil {
			log.Printf("[session %s] bad movement payload: %v", s.trace, err)
			return
		}
		select {
		case s.instance <- PublishMove{Player: s.player, Now: pm.Now}:
		case <-s.instDone:
		}
	default:
		log.Printf("[session %s] unhandled event %v", s.trace, eh.Type)
	}
}

// pushEvent translates an instance notification into a server push message.
func (s *Session) pushEvent(ev InstanceEvent) {
	var typ wire.EventType
	var payload []byte
	switch ev := ev.(type) {
	case PlayerJoinedEvent:
		typ = wire.InstancePlayerJoinedPush
		payload = wire.PlayerJoined{Player: ev.Player}.Encode()
	case PlayerLeftEvent:
		typ = wire.InstancePlayerLeftPush
		payload = wire.PlayerLeft{Player: ev.Player}.Encode()
	case PlayerMovedEvent:
		typ = wire.InstancePushPlayerMovePush
		payload = wire.PushPlayerMove{Player: ev.Player, Now: ev.Now}.Encode()
	case ChatMessageEvent:
		typ = wire.TextChatReceiveChatMessagePush
		payload = ev.Entry.Encode()
	default:
		return
	}
	s.send(outboundMsg{
		status:  wire.OK(),
		event:   &wire.EventHeader{Direction: wire.Push, Type: typ},
		payload: payload,
	})
}

// checkalive drains the outstanding health check reply, terminates the
// session when one has gone unanswered past the timeout, and issues the next
// ping. Returns false when the session should close.
func (s *Session) checkalive() bool {
	now := time.Now()
	if s.pingSink != nil {
		select {
		case _, ok := <-s.pingSink:
			if ok {
				s.pingSink = nil
			}
		default:
		}
	}
	if s.pingSink != nil {
		if now.Sub(s.pingSent) > keepaliveTimeout {
			log.Printf("[session %s] health check unanswered for %v, closing",
				s.trace, now.Sub(s.pingSent).Round(time.Second))
			return false
		}
		return true
	}

	id := wire.MessageID(s.nextID.Add(1))
	s.pingSink = s.pending.Register(id)
	s.pingSent = now
	s.send(outboundMsg{
		status:  wire.OK(),
		oneshot: &wire.OneshotHeader{Step: wire.StepRequest, Type: wire.ConnectionHealthCheckPush, MessageID: id},
		payload: nil,
	})
	return true
}
