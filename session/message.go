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

import "net/http"

import "go.uber.org/atomic"
import "github.com/gorilla/websocket"

// Message is one decoded unit on the wire.
// In plain mode it is an http request (inbound) or response (outbound) with
// the body held in Payload, once upgraded it is a single websocket data frame.
type Message struct {
	Request  *http.Request
	Response *http.Response

	FrameType int    // websocket.TextMessage or websocket.BinaryMessage, 0 for http
	Payload   []byte // http body or frame data

	// protocol metadata, carried over from the request which upgraded the session
	ProtoMajor int
	ProtoMinor int
	KeepAlive  bool
	Method     string
	Status     int

	refs atomic.Int32
}

// NewFrame returns an upgraded mode message, frame type 0 replies with the
// type of the last frame received.
func NewFrame(frame_type int, payload []byte) *Message {
	return &Message{FrameType: frame_type, Payload: payload}
}

func NewText(s string) *Message {
	return NewFrame(websocket.TextMessage, []byte(s))
}

// NewResponse wraps an http response for a plain mode send
func NewResponse(resp *http.Response) *Message {
	m := &Message{Response: resp}
	if resp != nil {
		m.ProtoMajor, m.ProtoMinor = resp.ProtoMajor, resp.ProtoMinor
		m.Status = resp.StatusCode
		m.KeepAlive = !resp.Close
	}
	return m
}

// Retain marks the message as owned beyond the current callback
func (m *Message) Retain() *Message {
	m.refs.Inc()
	return m
}

// Release drops a reference taken with Retain
func (m *Message) Release() {
	m.refs.Dec()
}

// Refs reports outstanding Retain calls
func (m *Message) Refs() int32 {
	return m.refs.Load()
}

func (m *Message) IsFrame() bool {
	return m.FrameType != 0
}

func (m *Message) IsText() bool {
	return m.FrameType == websocket.TextMessage
}

func (m *Message) IsBinary() bool {
	return m.FrameType == websocket.BinaryMessage
}

// clear content but keep payload capacity and connection metadata
func (m *Message) reset() {
	m.Request = nil
	m.Response = nil
	m.FrameType = 0
	m.Payload = m.Payload[:0]
}
