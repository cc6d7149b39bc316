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

import "io"
import "net"
import "sync"
import "time"
import "strings"
import "testing"
import "net/http"

// recorder is a Notifier which remembers everything it was told
type recorder struct {
	sync.Mutex
	accepts     int
	recvs       []*Message
	payloads    []string
	sends       []error
	closes      []error
	upgrades    []error
	accepted_at time.Time
	closed_at   time.Time
	closed      chan struct{}

	on_accept func(s *Session)
	on_recv   func(s *Session, msg *Message)
}

func new_recorder() *recorder {
	return &recorder{closed: make(chan struct{})}
}

func (r *recorder) NotifyAccept(s *Session) {
	r.Lock()
	r.accepts++
	r.accepted_at = time.Now()
	r.Unlock()
	if r.on_accept != nil {
		r.on_accept(s)
	}
}

func (r *recorder) NotifyRecv(s *Session, msg *Message) {
	r.Lock()
	r.recvs = append(r.recvs, msg)
	r.payloads = append(r.payloads, string(msg.Payload))
	r.Unlock()
	if r.on_recv != nil {
		r.on_recv(s, msg)
	}
}

func (r *recorder) NotifySend(s *Session, msg *Message, err error) {
	r.Lock()
	r.sends = append(r.sends, err)
	r.Unlock()
}

func (r *recorder) NotifyClose(s *Session, err error) {
	r.Lock()
	r.closes = append(r.closes, err)
	r.closed_at = time.Now()
	if len(r.closes) == 1 {
		close(r.closed)
	}
	r.Unlock()
}

func (r *recorder) NotifyUpgrade(s *Session, err error) {
	r.Lock()
	r.upgrades = append(r.upgrades, err)
	r.Unlock()
}

func (r *recorder) wait_closed(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(d):
		t.Fatalf("session was not closed within %s", d)
	}
}

func (r *recorder) close_count() int {
	r.Lock()
	defer r.Unlock()
	return len(r.closes)
}

func (r *recorder) close_reason() error {
	r.Lock()
	defer r.Unlock()
	if len(r.closes) == 0 {
		return nil
	}
	return r.closes[0]
}

// tcp loopback pair, server side first
func tcp_pair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed err %s", err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed err %s", err)
	}
	server := <-accepted
	if server == nil {
		t.Fatalf("accept failed")
	}
	return server, client
}

// serve starts a session for every connection made to the returned address
type test_server struct {
	sync.Mutex
	l        net.Listener
	sessions []*Session
	started  chan *Session
}

func serve(t *testing.T, cfg Config, n Notifier) *test_server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed err %s", err)
	}
	ts := &test_server{l: l, started: make(chan *Session, 16)}
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			s := New(c, cfg, n, nil)
			ts.Lock()
			ts.sessions = append(ts.sessions, s)
			ts.Unlock()
			s.Start()
			ts.started <- s
		}
	}()
	t.Cleanup(ts.close)
	return ts
}

func (ts *test_server) addr() string {
	return ts.l.Addr().String()
}

func (ts *test_server) next(t *testing.T) *Session {
	t.Helper()
	select {
	case s := <-ts.started:
		return s
	case <-time.After(5 * time.Second):
		t.Fatalf("no session was started")
	}
	return nil
}

func (ts *test_server) close() {
	ts.l.Close()
	ts.Lock()
	defer ts.Unlock()
	for _, s := range ts.sessions {
		s.Stop()
		s.Wait()
	}
}

func ok_response(body string) *Message {
	return NewResponse(&http.Response{
		StatusCode:    http.StatusOK,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	})
}

// clock whose timers always fire right away, before their deadline
type early_clock struct {
	now time.Time
}

func (c early_clock) Now() time.Time { return c.now }
func (c early_clock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(time.Millisecond, f)
}
