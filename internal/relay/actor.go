// Package relay implements the per-connection protocol engine and the
// registry that owns the shared socket: connection actors, packet dispatch,
// the voice throughput gate, and broadcast fan-out.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/riftlink/relay/internal/crypto"
	"github.com/riftlink/relay/internal/logging"
	"github.com/riftlink/relay/internal/protocol"
)

// ActorState is the lifecycle state of a connection actor. It moves forward
// only: Running, then Terminating, then Terminated.
type ActorState int32

const (
	StateRunning ActorState = iota
	StateTerminating
	StateTerminated
)

// String returns a human-readable name for the state.
func (s ActorState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateTerminating:
		return "TERMINATING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// ErrActorTerminated is returned when enqueueing into an actor that has been
// terminated.
var ErrActorTerminated = errors.New("actor terminated")

// message is one entry in an actor's queue: either raw inbound bytes from
// the socket, or a pre-built voice broadcast pushed by the registry fan-out.
// Exactly one field is set.
type message struct {
	raw   []byte
	voice *protocol.VoiceBroadcastPacket
}

// Actor owns one peer's session lifecycle: its crypto session, account
// state, inbound queue and message loop. Handler execution is single
// threaded inside Run, so the session, voice timestamp and similar fields
// are plain loop-owned state. Fields the registry reads from other
// goroutines (authenticated, account id, account data) use atomics or the
// accountData mutex.
type Actor struct {
	peer *net.UDPAddr
	srv  *Server

	queue  chan message
	ctx    context.Context
	cancel context.CancelFunc

	state         atomic.Int32
	authenticated atomic.Bool
	accountID     atomic.Int32

	// Loop-owned; only touched by the message loop.
	sess      *crypto.Session
	lastVoice time.Time

	mu          sync.Mutex
	accountData protocol.PlayerAccountData

	// Inbound datagram gate, consulted by the registry read loop before
	// enqueueing.
	limiter *rate.Limiter

	logger *slog.Logger
}

func newActor(srv *Server, peer *net.UDPAddr) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Actor{
		peer:      peer,
		srv:       srv,
		queue:     make(chan message, srv.cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		lastVoice: srv.now(),
		limiter:   rate.NewLimiter(srv.cfg.DatagramRate, srv.cfg.DatagramBurst),
		logger:    srv.logger.With(slog.String(logging.KeyPeer, peer.String())),
	}
}

// Peer returns the actor's peer address.
func (a *Actor) Peer() *net.UDPAddr {
	return a.peer
}

// State returns the current lifecycle state.
func (a *Actor) State() ActorState {
	return ActorState(a.state.Load())
}

// Authenticated reports whether the peer has logged in.
func (a *Actor) Authenticated() bool {
	return a.authenticated.Load()
}

// AccountID returns the authenticated account id, or 0 before login.
func (a *Actor) AccountID() int32 {
	return a.accountID.Load()
}

// AccountData returns a snapshot of the stored account data.
func (a *Actor) AccountData() protocol.PlayerAccountData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountData
}

// Terminate asks the message loop to stop. Cancelling the context wakes the
// loop immediately instead of waiting for the next message or the idle
// timeout, so shutdown latency is not bounded by the idle interval.
func (a *Actor) Terminate() {
	if a.state.CompareAndSwap(int32(StateRunning), int32(StateTerminating)) {
		a.cancel()
	}
}

// EnqueueRaw queues an inbound datagram for decode and dispatch. The call
// suspends while the queue is full and returns once a slot frees, the actor
// terminates, or ctx is cancelled.
func (a *Actor) EnqueueRaw(ctx context.Context, data []byte) error {
	return a.enqueue(ctx, message{raw: data})
}

// EnqueueVoice queues a pre-built voice broadcast for direct send.
func (a *Actor) EnqueueVoice(ctx context.Context, pkt *protocol.VoiceBroadcastPacket) error {
	return a.enqueue(ctx, message{voice: pkt})
}

func (a *Actor) enqueue(ctx context.Context, m message) error {
	select {
	case a.queue <- m:
		return nil
	case <-a.ctx.Done():
		return ErrActorTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the actor's message loop. It exits on termination, on queue
// inactivity longer than the idle timeout, or when the registry shuts
// down. Dispatch errors are logged and do not stop the loop.
func (a *Actor) Run() {
	defer a.state.Store(int32(StateTerminated))

	idle := time.NewTimer(a.srv.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-idle.C:
			a.logger.Debug("actor idle, terminating")
			return
		case msg := <-a.queue:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(a.srv.cfg.IdleTimeout)

			if err := a.handleMessage(msg); err != nil {
				a.logger.Warn("message handling failed", slog.String(logging.KeyError, err.Error()))
			}
		}
	}
}

func (a *Actor) handleMessage(m message) error {
	if m.voice != nil {
		// Broadcast fan-out delivery. A send failure is logged and does not
		// terminate the actor.
		if err := a.sendPacket(m.voice); err != nil {
			a.logger.Warn("failed to deliver voice broadcast", slog.String(logging.KeyError, err.Error()))
		}
		return nil
	}

	packet, err := protocol.Decode(m.raw, a.sess)
	if err != nil {
		a.srv.metrics.PacketErrors.WithLabelValues(errorKind(err)).Inc()
		return fmt.Errorf("failed to parse packet: %w", err)
	}

	a.srv.metrics.PacketsReceived.WithLabelValues(protocol.PacketName(packet.PacketID())).Inc()

	reply, err := a.handlePacket(packet)
	if err != nil {
		a.srv.metrics.PacketErrors.WithLabelValues("handler").Inc()
		return fmt.Errorf("failed to handle %s: %w", protocol.PacketName(packet.PacketID()), err)
	}

	if reply != nil {
		if err := a.sendPacket(reply); err != nil {
			return fmt.Errorf("failed to send %s: %w", protocol.PacketName(reply.PacketID()), err)
		}
	}

	return nil
}

func (a *Actor) sendPacket(p protocol.Packet) error {
	data, err := protocol.Encode(p, a.sess)
	if err != nil {
		return err
	}
	return a.srv.sendTo(data, a.peer)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrShortHeader):
		return "short_header"
	case errors.Is(err, protocol.ErrUnknownPacketID):
		return "unknown_id"
	case errors.Is(err, protocol.ErrCleartextViolation):
		return "cleartext_violation"
	case errors.Is(err, protocol.ErrNoSession):
		return "no_session"
	case errors.Is(err, crypto.ErrDecryptionFailed), errors.Is(err, crypto.ErrCiphertextTooShort):
		return "decryption"
	case errors.Is(err, protocol.ErrMalformedBody):
		return "malformed_body"
	default:
		return "other"
	}
}
