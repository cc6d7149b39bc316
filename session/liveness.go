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

package session

import "time"

import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/metrics"

// Clock drives the liveness timers, tests replace it
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

const write_wait = 10 * time.Second // deadline for control frames

// deadlineTimer is a rearmable timer whose firings are delivered on the strand.
// every arm bumps the generation, so a firing which lost the race against a
// rearm is dropped instead of being mistaken for the new deadline
type deadlineTimer struct {
	st     *strand
	clock  Clock
	expiry time.Time
	t      Timer
	gen    uint64
	fire   func(err error)
}

func newDeadlineTimer(st *strand, clock Clock, fire func(err error)) *deadlineTimer {
	return &deadlineTimer{st: st, clock: clock, fire: fire}
}

// strand only
func (dt *deadlineTimer) arm(d time.Duration) {
	if dt.t != nil {
		dt.t.Stop()
	}
	dt.gen++
	gen := dt.gen
	dt.expiry = dt.clock.Now().Add(d)
	dt.t = dt.clock.AfterFunc(d, func() {
		dt.st.post(func() {
			if gen == dt.gen && dt.t != nil {
				dt.t = nil
				dt.fire(nil)
			}
		})
	})
}

// strand only, a pending wait is completed with ErrTimerCanceled
func (dt *deadlineTimer) cancel() {
	if dt.t == nil {
		return
	}
	dt.t.Stop()
	dt.t = nil
	dt.gen++
	dt.st.post(func() { dt.fire(ErrTimerCanceled) })
}

func (dt *deadlineTimer) armed() bool {
	return dt.t != nil
}

// keepalive period is half of the shorter of silence timeout and default keepalive
func keepalive_period(silence, keepalive time.Duration) time.Duration {
	period := keepalive / 2
	if half := silence / 2; half < period {
		period = half
	}
	if period <= 0 {
		period = keepalive / 2
	}
	if period <= 0 {
		period = config.DEFAULT_KEEPALIVE / 2
	}
	return period
}

// idle timer firing, the deadline is derived from last activity so traffic
// seen since arming pushes it forward
func (s *Session) handle_idle_timer(err error) {
	if err != nil {
		s.stop_with(err)
		return
	}
	silence := s.clock.Now().Sub(s.LastActive())
	if silence >= s.cfg.SilenceTimeout {
		metrics.Silence_Timeouts.Inc()
		s.logger.V(1).Info("silence timeout", "silence", silence)
		s.stop_with(ErrSilenceTimeout)
		return
	}
	s.idle.arm(s.cfg.SilenceTimeout - silence)
}

func (s *Session) start_keepalive() {
	s.last_ping = time.Time{}
	s.keepalive.arm(keepalive_period(s.cfg.SilenceTimeout, s.cfg.KeepaliveDefault))
}

// keepalive firing, any doubt about the peer closes the session
func (s *Session) handle_ping_timer(err error) {
	if err != nil {
		s.stop_with(err)
		return
	}

	now := s.clock.Now()
	if s.keepalive.expiry.After(now) {
		s.stop_with(ErrEarlyTimer)
		return
	}

	if !s.ws_open.Load() || s.ws == nil {
		s.stop_with(ErrNotReady)
		return
	}

	// the previous ping got no answer, nor did anything else arrive
	if !s.last_ping.IsZero() && !s.LastActive().After(s.last_ping) {
		metrics.Keepalive_Misses.Inc()
		s.logger.V(1).Info("keepalive missed", "last_ping", s.last_ping)
		s.stop_with(ErrKeepaliveMissed)
		return
	}

	s.keepalive.arm(keepalive_period(s.cfg.SilenceTimeout, s.cfg.KeepaliveDefault))
	s.last_ping = now

	if err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(write_wait)); err != nil {
		s.last_err.Store(err)
		s.stop_with(err)
		return
	}
	metrics.Pings_Sent.Inc()
}
