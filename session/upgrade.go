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
import "time"
import "bytes"
import "bufio"
import "net/http"

import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/metrics"

// strand only, called once with the request which asked for the upgrade.
// no further plain read is posted, the handshake completes in handle_accept
func (s *Session) upgrade(msg *Message) {
	if !s.upgraded.CompareAndSwap(false, true) {
		return
	}
	req := msg.Request
	s.start_keepalive()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ws, err := s.handshake(req)
		s.strand.post(func() { s.handle_accept(err, ws, req) })
	}()
}

// handshake runs gorilla's upgrader against the connection we already own
func (s *Session) handshake(req *http.Request) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		CheckOrigin:      func(r *http.Request) bool { return true },
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			w.Header().Set("Connection", "close")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			io.WriteString(w, http.StatusText(status)+"\n")
		},
	}
	w := &hijack_writer{conn: s.conn, br: s.br, header: http.Header{}}
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		w.flush()
		return nil, err
	}
	return ws, nil
}

// strand only
func (s *Session) handle_accept(err error, ws *websocket.Conn, req *http.Request) {
	s.notify_upgrade(err)
	if err != nil {
		metrics.Upgrade_Failures.Inc()
		s.logger.V(1).Info("websocket handshake failed", "err", err)
		s.last_err.Store(err)
		s.stop_with(err)
		return
	}
	if State(s.state.Load()) != StateRunning {
		ws.Close()
		return
	}
	metrics.Sessions_Upgraded.Inc()

	if s.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.MaxMessageSize)
	}

	// handlers are called from the reading goroutine, state changes go through the strand
	ws.SetCloseHandler(func(code int, text string) error {
		s.strand.post(func() {
			s.touch()
			s.Stop()
		})
		ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(write_wait))
		return nil
	})
	ws.SetPingHandler(func(data string) error {
		s.strand.post(s.touch)
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(write_wait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		if e, ok := err.(net.Error); ok && e.Timeout() {
			return nil
		}
		return err
	})
	ws.SetPongHandler(func(string) error {
		s.strand.post(s.touch)
		return nil
	})

	s.ws = ws
	s.ws_open.Store(true)
	s.logger.V(2).Info("session upgraded", "path", req.URL.Path)

	s.post_receive(&Message{
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		KeepAlive:  !req.Close,
		Method:     req.Method,
		Status:     http.StatusSwitchingProtocols,
	})
}

// hijack_writer lets the upgrader take over a connection that was never
// served by net/http. a rejected handshake is buffered and written by flush
type hijack_writer struct {
	conn     net.Conn
	br       *bufio.Reader
	header   http.Header
	status   int
	body     bytes.Buffer
	hijacked bool
}

func (w *hijack_writer) Header() http.Header {
	return w.header
}

func (w *hijack_writer) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *hijack_writer) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *hijack_writer) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return w.conn, bufio.NewReadWriter(w.br, bufio.NewWriter(w.conn)), nil
}

func (w *hijack_writer) flush() error {
	if w.hijacked || w.status == 0 {
		return nil
	}
	resp := &http.Response{
		StatusCode:    w.status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(&w.body),
		ContentLength: int64(w.body.Len()),
		Close:         true,
	}
	return resp.Write(w.conn)
}
