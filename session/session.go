// Copyright 2017-2021 DERO Project. All rights reserved.
// Use of this source code in any form is governed by RESEARCH license.
// license can be found in the LICENSE file.
// GPG: 0F39 E425 8C65 3947 702A  8234 08B2 0360 A03A 9DE8
//
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY
// EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL
// THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO,
// PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT,
// STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF
// THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package session implements a per connection protocol engine.
// A session starts in plain http/1.x framing, may switch once to websocket
// framing when it receives an upgrade request, watches liveness with idle and
// keepalive timers, and runs every operation touching the connection or its
// state on a single strand.
package session

import "fmt"
import "net"
import "sync"
import "time"
import "bufio"
import "strconv"

import "go.uber.org/atomic"
import "github.com/go-logr/logr"
import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/globals"
import "github.com/deroproject/wsrpc/metrics"

type State uint32

const (
	StateIdle State = iota
	StateStarting
	StateStarted
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Config holds per session tuning
type Config struct {
	SilenceTimeout   time.Duration // 0 disables the idle timer
	KeepaliveDefault time.Duration
	HandshakeTimeout time.Duration

	SendBuffer   int // 0 keeps os default
	RecvBuffer   int
	TCPKeepAlive bool

	MaxMessageSize int64 // 0 is unlimited

	Clock  Clock       // nil uses SystemClock
	Logger logr.Logger // zero value uses globals.Logger
}

// DefaultConfig builds a config from environment settings
func DefaultConfig() Config {
	return Config{
		SilenceTimeout:   config.Settings.SILENCE_TIMEOUT,
		KeepaliveDefault: config.Settings.KEEPALIVE,
		HandshakeTimeout: config.Settings.HANDSHAKE_TIMEOUT,
		SendBuffer:       config.Settings.SNDBUF,
		RecvBuffer:       config.Settings.RCVBUF,
		TCPKeepAlive:     config.Settings.TCP_KEEPALIVE,
		MaxMessageSize:   config.Settings.MAX_MESSAGE,
	}
}

var session_id atomic.Uint64

type Session struct {
	id   uint64
	conn net.Conn
	br   *bufio.Reader
	cfg  Config

	notifier Notifier
	registry Registry
	clock    Clock
	logger   logr.Logger

	state        atomic.Uint32
	upgraded     atomic.Bool
	ws_open      atomic.Bool
	close_latch  atomic.Bool
	last_active  atomic.Time
	last_err     atomic.Error
	close_reason atomic.Error
	frame_type   atomic.Int32 // type of the last frame received

	strand  *strand
	pending sync.WaitGroup // reads and handshakes in flight

	// owned by the strand
	ws        *websocket.Conn
	idle      *deadlineTimer
	keepalive *deadlineTimer
	last_ping time.Time
}

// New wraps an accepted connection, nil notifier or registry are allowed
func New(conn net.Conn, cfg Config, notifier Notifier, registry Registry) *Session {
	s := &Session{
		id:       session_id.Inc(),
		conn:     conn,
		br:       bufio.NewReader(conn),
		cfg:      cfg,
		notifier: notifier,
		registry: registry,
		clock:    cfg.Clock,
		strand:   newStrand(),
	}
	if s.notifier == nil {
		s.notifier = NotifierFuncs{}
	}
	if s.registry == nil {
		s.registry = nopRegistry{}
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.cfg.KeepaliveDefault <= 0 {
		s.cfg.KeepaliveDefault = config.DEFAULT_KEEPALIVE
	}

	logger := cfg.Logger
	if logger.GetSink() == nil {
		logger = globals.Logger.WithName("session")
	}
	s.logger = logger.WithValues("id", s.id, "remote", conn.RemoteAddr().String())

	s.frame_type.Store(websocket.TextMessage)
	s.idle = newDeadlineTimer(s.strand, s.clock, s.handle_idle_timer)
	s.keepalive = newDeadlineTimer(s.strand, s.clock, s.handle_ping_timer)
	return s
}

// Start runs the session, valid only once from idle.
// returns false if the accept notification stopped the session or the
// registry rejected it
func (s *Session) Start() bool {
	if !s.state.CompareAndSwap(uint32(StateIdle), uint32(StateStarting)) {
		s.last_err.Store(ErrInvalidState)
		return false
	}
	s.strand.start()
	s.touch()
	metrics.Sessions_Accepted.Inc()

	accepted := make(chan struct{})
	s.strand.post(func() {
		defer close(accepted)
		s.notify_accept()
	})
	<-accepted
	if s.State() != StateStarting {
		s.last_err.Store(ErrStoppedOnAccept)
		return false
	}

	s.tune()

	if !s.state.CompareAndSwap(uint32(StateStarting), uint32(StateStarted)) ||
		!s.state.CompareAndSwap(uint32(StateStarted), uint32(StateRunning)) {
		s.last_err.Store(ErrStoppedOnAccept)
		return false
	}

	if !s.registry.Register(s) {
		s.last_err.Store(ErrRejected)
		s.stop_with(ErrRejected)
		return false
	}

	s.strand.post(func() {
		if s.cfg.SilenceTimeout > 0 {
			s.idle.arm(s.cfg.SilenceTimeout)
		}
		s.post_receive(&Message{})
	})
	s.logger.V(2).Info("session started")
	return true
}

// socket options are best effort, failures only land in LastError
func (s *Session) tune() {
	if c, ok := s.conn.(interface{ SetKeepAlive(bool) error }); ok {
		if err := c.SetKeepAlive(s.cfg.TCPKeepAlive); err != nil {
			s.last_err.Store(err)
		}
	}
	if s.cfg.SendBuffer > 0 {
		if c, ok := s.conn.(interface{ SetWriteBuffer(int) error }); ok {
			if err := c.SetWriteBuffer(s.cfg.SendBuffer); err != nil {
				s.last_err.Store(err)
			}
		}
	}
	if s.cfg.RecvBuffer > 0 {
		if c, ok := s.conn.(interface{ SetReadBuffer(int) error }); ok {
			if err := c.SetReadBuffer(s.cfg.RecvBuffer); err != nil {
				s.last_err.Store(err)
			}
		}
	}
}

// Stop closes the session, it may be called any number of times from anywhere.
// teardown itself runs on the strand
func (s *Session) Stop() {
	s.stop_with(nil)
}

// StopWithError stops the session, reason is passed to NotifyClose
func (s *Session) StopWithError(reason error) {
	if reason != nil {
		s.last_err.Store(reason)
	}
	s.stop_with(reason)
}

func (s *Session) stop_with(reason error) {
	for {
		prev := State(s.state.Load())
		if prev < StateStarting || prev >= StateStopping {
			return
		}
		if s.state.CompareAndSwap(uint32(prev), uint32(StateStopping)) {
			s.close_reason.Store(reason)
			s.strand.post(func() { s.teardown(prev) })
			return
		}
	}
}

// strand only
func (s *Session) teardown(prev State) {
	reason := s.close_reason.Load()

	if prev == StateRunning && s.close_latch.CompareAndSwap(false, true) {
		metrics.Sessions_Closed.Inc()
		s.notify_close(reason)
	}

	if s.ws_open.Swap(false) && s.ws != nil {
		s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}

	// shutdown then close, any pending read completes with an error
	if c, ok := s.conn.(interface{ CloseWrite() error }); ok {
		c.CloseWrite()
	}
	s.conn.Close()

	s.idle.cancel()
	s.keepalive.cancel()

	s.state.Store(uint32(StateStopped))
	s.registry.Deregister(s)
	s.logger.V(2).Info("session stopped", "reason", reason)

	s.strand.close()
}

// Wait blocks until a started session is stopped and all its goroutines are gone
func (s *Session) Wait() {
	s.strand.Lock()
	running := s.strand.running
	s.strand.Unlock()
	if !running {
		return
	}
	<-s.strand.done
	s.pending.Wait()
}

// IsStarted reports whether the session is running, in upgraded mode the
// websocket must also be open
func (s *Session) IsStarted() bool {
	if State(s.state.Load()) != StateRunning {
		return false
	}
	if s.upgraded.Load() {
		return s.ws_open.Load()
	}
	return true
}

func (s *Session) IsStopped() bool {
	if State(s.state.Load()) == StateStopped {
		return true
	}
	return s.upgraded.Load() && !s.ws_open.Load() && State(s.state.Load()) > StateRunning
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Upgraded() bool {
	return s.upgraded.Load()
}

func (s *Session) LastActive() time.Time {
	return s.last_active.Load()
}

// LastError is the outcome of the latest operation, nil on success
func (s *Session) LastError() error {
	return s.last_err.Load()
}

func (s *Session) Conn() net.Conn {
	return s.conn
}

func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) LocalAddress() string {
	host, _ := split_host_port(s.conn.LocalAddr())
	return host
}

func (s *Session) LocalPort() int {
	_, port := split_host_port(s.conn.LocalAddr())
	return port
}

func (s *Session) RemoteAddress() string {
	host, _ := split_host_port(s.conn.RemoteAddr())
	return host
}

func (s *Session) RemotePort() int {
	_, port := split_host_port(s.conn.RemoteAddr())
	return port
}

func (s *Session) String() string {
	return fmt.Sprintf("session %d %s (%s)", s.id, s.conn.RemoteAddr(), s.State())
}

func split_host_port(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

func (s *Session) touch() {
	s.last_active.Store(s.clock.Now())
}

// notifier callbacks must not take the strand down with them

func (s *Session) notify_accept() {
	defer globals.Recover(1)
	s.notifier.NotifyAccept(s)
}

func (s *Session) notify_recv(msg *Message) {
	defer globals.Recover(1)
	s.notifier.NotifyRecv(s, msg)
}

func (s *Session) notify_send(msg *Message, err error) {
	defer globals.Recover(1)
	s.notifier.NotifySend(s, msg, err)
}

func (s *Session) notify_close(err error) {
	defer globals.Recover(1)
	s.notifier.NotifyClose(s, err)
}

func (s *Session) notify_upgrade(err error) {
	defer globals.Recover(1)
	if n, ok := s.notifier.(UpgradeNotifier); ok {
		n.NotifyUpgrade(s, err)
	}
}
