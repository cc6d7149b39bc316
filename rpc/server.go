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

package rpc

import "io"
import "sync"
import "bytes"
import "errors"
import "context"
import "net/http"

import "github.com/go-logr/logr"
import "golang.org/x/time/rate"
import "github.com/creachadair/jrpc2"
import "github.com/fxamacker/cbor/v2"
import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/globals"
import "github.com/deroproject/wsrpc/session"

var ErrBacklog = errors.New("json-rpc backlog full")

var rate_limited_json = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32001,"message":"rate limited"}}`)

// Server is the session notifier which serves rpc traffic.
// binary frames are cbor calls against the table, text frames are json-rpc
// 2.0 served by a per session jrpc2 server, plain http requests go to handler
type Server struct {
	table   *Table
	handler http.Handler
	limit   rate.Limit
	burst   int

	peers  sync.Map // *session.Session -> *peer
	logger logr.Logger
}

type peer struct {
	limiter *rate.Limiter
	ch      *session_channel // created on the first text frame
	srv     *jrpc2.Server
}

// NewServer serves table, handler may be nil
func NewServer(table *Table, handler http.Handler) *Server {
	r := &Server{table: table, handler: handler, logger: globals.Logger.WithName("RPC")}
	r.SetRateLimit(config.Settings.RATE_LIMIT, config.Settings.RATE_BURST)
	return r
}

// SetRateLimit applies to sessions accepted afterwards, 0 disables
func (r *Server) SetRateLimit(per_second float64, burst int) {
	r.limit = rate.Inf
	if per_second > 0 {
		r.limit = rate.Limit(per_second)
	}
	if burst < 1 {
		burst = 1
	}
	r.burst = burst
}

func (r *Server) Table() *Table {
	return r.table
}

func (r *Server) peer(s *session.Session) *peer {
	if v, ok := r.peers.Load(s); ok {
		return v.(*peer)
	}
	v, _ := r.peers.LoadOrStore(s, &peer{limiter: rate.NewLimiter(r.limit, r.burst)})
	return v.(*peer)
}

func (r *Server) NotifyAccept(s *session.Session) {
	r.peer(s)
	r.logger.V(2).Info("accepted", "session", s.ID(), "remote", s.RemoteAddr().String())
}

func (r *Server) NotifyRecv(s *session.Session, msg *session.Message) {
	p := r.peer(s)
	switch {
	case !msg.IsFrame():
		r.serve_http(s, msg)
	case msg.IsBinary():
		r.serve_binary(s, p, msg)
	default:
		r.serve_json(s, p, msg)
	}
}

func (r *Server) NotifySend(s *session.Session, msg *session.Message, err error) {
	if err != nil {
		r.logger.V(2).Error(err, "send failed", "session", s.ID())
	}
}

func (r *Server) NotifyClose(s *session.Session, err error) {
	if v, ok := r.peers.LoadAndDelete(s); ok {
		p := v.(*peer)
		if p.ch != nil {
			p.ch.Close()
			go p.srv.Stop()
		}
	}
	r.logger.V(2).Info("closed", "session", s.ID(), "reason", err)
}

func (r *Server) NotifyUpgrade(s *session.Session, err error) {
	if err != nil {
		r.logger.V(1).Error(err, "upgrade failed", "session", s.ID())
	}
}

func (r *Server) serve_binary(s *session.Session, p *peer, msg *session.Message) {
	if !p.limiter.Allow() {
		var buf bytes.Buffer
		reply_error(cbor.NewEncoder(&buf), CodeRateLimited, "rate limited")
		s.SendFrame(websocket.BinaryMessage, buf.Bytes())
		return
	}

	response, err := r.table.InvokeFrame(msg.Payload)
	if err != nil { // cannot resync after a bad request
		r.logger.V(1).Error(err, "malformed request, dropping session", "session", s.ID())
		s.StopWithError(err)
		return
	}
	s.SendFrame(websocket.BinaryMessage, response)
}

func (r *Server) serve_json(s *session.Session, p *peer, msg *session.Message) {
	if !p.limiter.Allow() {
		s.SendFrame(websocket.TextMessage, rate_limited_json)
		return
	}
	if p.ch == nil {
		p.ch = new_session_channel(s)
		p.srv = jrpc2.NewServer(r.table.Assigner(), options).Start(p.ch)
	}
	if !p.ch.push(msg) {
		s.StopWithError(ErrBacklog)
	}
}

func (r *Server) serve_http(s *session.Session, msg *session.Message) {
	w := new_response_buffer()
	if r.handler == nil {
		http.NotFound(w, msg.Request)
	} else if !r.serve_handler(w, msg.Request) {
		w.reset()
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	s.Send(session.NewResponse(w.response(msg.Request)))
}

// ok is false if the handler panicked
func (r *Server) serve_handler(w http.ResponseWriter, req *http.Request) (ok bool) {
	defer globals.Recover(1)
	r.handler.ServeHTTP(w, req)
	return true
}

// Notify pushes a json-rpc notification to every session speaking json-rpc
func (r *Server) Notify(ctx context.Context, method string, params interface{}) (count int) {
	r.peers.Range(func(k, v interface{}) bool {
		p := v.(*peer)
		if p.srv != nil {
			if err := p.srv.Notify(ctx, method, params); err == nil {
				count++
			}
		}
		return true
	})
	return
}

// response_buffer collects what a handler writes, sessions send complete messages
type response_buffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func new_response_buffer() *response_buffer {
	return &response_buffer{header: http.Header{}}
}

func (w *response_buffer) Header() http.Header {
	return w.header
}

func (w *response_buffer) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *response_buffer) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *response_buffer) reset() {
	w.header = http.Header{}
	w.status = 0
	w.body.Reset()
}

func (w *response_buffer) response(req *http.Request) *http.Response {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.header.Get("Content-Type") == "" && w.body.Len() > 0 {
		w.header.Set("Content-Type", http.DetectContentType(w.body.Bytes()))
	}
	resp := &http.Response{
		StatusCode:    w.status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(bytes.NewReader(w.body.Bytes())),
		ContentLength: int64(w.body.Len()),
		Request:       req,
	}
	if req != nil {
		resp.Close = req.Close
		if req.ProtoMajor == 1 && req.ProtoMinor == 0 {
			resp.ProtoMinor = 0
		}
	}
	return resp
}
