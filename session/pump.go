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
import "bytes"
import "bufio"
import "net/http"

import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/metrics"

// strand only, issues exactly one read which completes in handle_receive
func (s *Session) post_receive(msg *Message) {
	if !s.IsStarted() {
		return
	}
	msg.reset()

	ws := s.ws
	upgraded := s.upgraded.Load()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		var err error
		if upgraded {
			err = s.read_frame(ws, msg)
		} else {
			err = s.read_request(msg)
		}
		s.strand.post(func() { s.handle_receive(err, msg) })
	}()
}

// reads a complete http request, body included
func (s *Session) read_request(msg *Message) error {
	req, err := http.ReadRequest(s.br)
	if err != nil {
		return err
	}
	req.RemoteAddr = s.conn.RemoteAddr().String()

	buf := bytes.NewBuffer(msg.Payload[:0])
	if req.Body != nil && req.Body != http.NoBody {
		var body io.Reader = req.Body
		if s.cfg.MaxMessageSize > 0 {
			body = io.LimitReader(req.Body, s.cfg.MaxMessageSize+1)
		}
		_, err = buf.ReadFrom(body)
		req.Body.Close()
		if err != nil {
			return err
		}
		if s.cfg.MaxMessageSize > 0 && int64(buf.Len()) > s.cfg.MaxMessageSize {
			return ErrMessageTooLarge
		}
	}

	msg.Request = req
	msg.Payload = buf.Bytes()
	req.Body = io.NopCloser(bytes.NewReader(msg.Payload))
	msg.ProtoMajor, msg.ProtoMinor = req.ProtoMajor, req.ProtoMinor
	msg.KeepAlive = !req.Close
	msg.Method = req.Method
	msg.Status = 0
	return nil
}

// reads a complete websocket data frame, control frames are handled inside
func (s *Session) read_frame(ws *websocket.Conn, msg *Message) error {
	frame_type, r, err := ws.NextReader()
	if err != nil {
		return err
	}
	buf := bytes.NewBuffer(msg.Payload[:0])
	if _, err = buf.ReadFrom(r); err != nil {
		return err
	}
	msg.FrameType = frame_type
	msg.Payload = buf.Bytes()
	return nil
}

// strand only
func (s *Session) handle_receive(err error, msg *Message) {
	if err != nil {
		s.last_err.Store(err)
		s.stop_with(err)
		return
	}
	if State(s.state.Load()) != StateRunning {
		return
	}

	s.touch()
	metrics.Messages_In.Inc()
	metrics.Bytes_In.Add(len(msg.Payload))

	if !s.upgraded.Load() && msg.Request != nil && websocket.IsWebSocketUpgrade(msg.Request) {
		s.upgrade(msg)
		return
	}
	if msg.IsFrame() {
		s.frame_type.Store(int32(msg.FrameType))
	}

	refs := msg.Refs()
	s.notify_recv(msg)

	next := msg
	if msg.Refs() != refs { // retained by notifier, do not read over it
		next = &Message{ProtoMajor: msg.ProtoMajor, ProtoMinor: msg.ProtoMinor, KeepAlive: msg.KeepAlive, Method: msg.Method, Status: msg.Status}
	}

	if !msg.IsFrame() && !msg.KeepAlive {
		// responses queued by the notifier go out first
		s.strand.post(s.Stop)
		return
	}

	s.post_receive(next)
}

// strand only, drops the reference taken by Send
func (s *Session) post_send(msg *Message) {
	defer msg.Release()
	if !s.IsStarted() {
		s.notify_send(msg, ErrNotReady)
		return
	}

	var err error
	if s.upgraded.Load() {
		err = s.write_frame(msg)
	} else {
		err = s.write_plain(msg)
	}

	s.last_err.Store(err)
	if err == nil {
		metrics.Messages_Out.Inc()
	}
	s.notify_send(msg, err)
	if err != nil {
		s.stop_with(err)
	}
}

func (s *Session) write_plain(msg *Message) error {
	bw := bufio.NewWriter(s.conn)
	switch {
	case msg.Response != nil:
		if err := msg.Response.Write(bw); err != nil {
			return err
		}
	case msg.Request != nil:
		if err := msg.Request.Write(bw); err != nil {
			return err
		}
	default:
		return ErrInvalidParameter
	}
	metrics.Bytes_Out.Add(bw.Buffered())
	return bw.Flush()
}

func (s *Session) write_frame(msg *Message) error {
	if msg.Response != nil || msg.Request != nil {
		return ErrInvalidParameter
	}
	frame_type := msg.FrameType
	if frame_type == 0 {
		frame_type = int(s.frame_type.Load())
	}
	if err := s.ws.WriteMessage(frame_type, msg.Payload); err != nil {
		return err
	}
	metrics.Bytes_Out.Add(len(msg.Payload))
	return nil
}

// Send queues msg for writing, it never blocks and never touches the connection.
// msg is retained until written, so a received message may be sent back as is.
// the outcome is reported through NotifySend
func (s *Session) Send(msg *Message) bool {
	if msg == nil {
		s.last_err.Store(ErrInvalidParameter)
		return false
	}
	if !s.IsStarted() {
		s.last_err.Store(ErrNotReady)
		return false
	}
	msg.Retain()
	if !s.strand.post(func() { s.post_send(msg) }) {
		msg.Release()
		s.last_err.Store(ErrNotReady)
		return false
	}
	return true
}

// SendBytes sends a copy of data. once upgraded it becomes a frame of the type
// last received, in plain mode it must parse as a complete http response
func (s *Session) SendBytes(data []byte) bool {
	if data == nil {
		s.last_err.Store(ErrInvalidParameter)
		return false
	}
	data = append([]byte(nil), data...)
	if s.upgraded.Load() {
		return s.Send(NewFrame(0, data))
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		s.last_err.Store(err)
		return false
	}
	return s.Send(NewResponse(resp))
}

func (s *Session) SendText(text string) bool {
	if !s.upgraded.Load() {
		s.last_err.Store(ErrInvalidParameter)
		return false
	}
	return s.Send(NewText(text))
}

// SendFrame sends a copy of data, the caller may reuse it on return
func (s *Session) SendFrame(frame_type int, data []byte) bool {
	if !s.upgraded.Load() {
		s.last_err.Store(ErrInvalidParameter)
		return false
	}
	return s.Send(NewFrame(frame_type, append([]byte(nil), data...)))
}
