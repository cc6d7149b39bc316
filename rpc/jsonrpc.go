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
import "sort"
import "sync"
import "context"
import "encoding/json"

import "github.com/creachadair/jrpc2"
import "github.com/creachadair/jrpc2/code"
import "github.com/creachadair/jrpc2/handler"
import "github.com/creachadair/jrpc2/channel"
import "github.com/gorilla/websocket"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/globals"
import "github.com/deroproject/wsrpc/metrics"
import "github.com/deroproject/wsrpc/session"

// json-rpc codes for dispatch failures, method not found is reported by jrpc2 itself
const Code_Handler_Error = code.Code(-32000)
const Code_Rate_Limited = code.Code(-32001)

// Assigner exposes the table to jrpc2 servers and the jhttp bridge.
// params must be a positional array. WSRPC.Version and WSRPC.Methods are
// always available unless the table binds the same names
func (t *Table) Assigner() jrpc2.Assigner {
	return assigner{t: t, builtin: handler.Map{
		"WSRPC.Version": handler.New(func(ctx context.Context) string { return config.Version.String() }),
		"WSRPC.Methods": handler.New(func(ctx context.Context) []string { return t.Names() }),
	}}
}

type assigner struct {
	t       *Table
	builtin handler.Map
}

func (a assigner) Assign(ctx context.Context, method string) jrpc2.Handler {
	h, ok := a.t.Find(method)
	if !ok {
		return a.builtin.Assign(ctx, method)
	}
	return func(ctx context.Context, req *jrpc2.Request) (interface{}, error) {
		var params []json.RawMessage
		if req.HasParams() {
			if err := req.UnmarshalParams(&params); err != nil {
				return nil, jrpc2.Errorf(code.InvalidParams, "params must be an array: %v", err)
			}
		}

		var res result
		if err := a.t.call(method, h, JSONArgs(params), &res); err != nil {
			return nil, jrpc2.Errorf(code.InvalidParams, "%v", err)
		}

		switch res.code {
		case CodeSuccess:
			return res.value, nil
		case CodeArgumentMismatch:
			return nil, jrpc2.Errorf(code.InvalidParams, "%v", res.value)
		case CodeMethodNotFound:
			return nil, jrpc2.Errorf(code.MethodNotFound, "%v", res.value)
		default:
			return nil, jrpc2.Errorf(Code_Handler_Error, "%v", res.value)
		}
	}
}

// Names is used by jrpc2 for rpc.* introspection
func (a assigner) Names() []string {
	names := append(a.t.Names(), a.builtin.Names()...)
	sort.Strings(names)
	return names
}

var options = &jrpc2.ServerOptions{AllowPush: true, RPCLog: metrics_generator{}}

type metrics_generator struct{}

func (metrics_generator) LogRequest(ctx context.Context, req *jrpc2.Request) {}
func (metrics_generator) LogResponse(ctx context.Context, resp *jrpc2.Response) {
	defer globals.Recover(2)
	req := jrpc2.InboundRequest(ctx) // we cannot do anything here
	if req == nil {
		return
	}
	if output, err := resp.MarshalJSON(); err == nil {
		metrics.Set.GetOrCreateCounter(`rpc_json_out_bytes_total`).Add(len(output))
	}
}

// session_channel carries json-rpc records over the text frames of one session
type session_channel struct {
	s    *session.Session
	in   chan *session.Message
	done chan struct{}
	once sync.Once
}

var _ channel.Channel = (*session_channel)(nil)

func new_session_channel(s *session.Session) *session_channel {
	return &session_channel{s: s, in: make(chan *session.Message, 64), done: make(chan struct{})}
}

// push is called from the session strand, msg is retained until Recv hands it out
func (c *session_channel) push(msg *session.Message) bool {
	select {
	case c.in <- msg.Retain():
		return true
	case <-c.done:
	default:
	}
	msg.Release()
	return false
}

func (c *session_channel) Send(data []byte) error {
	if !c.s.SendFrame(websocket.TextMessage, data) {
		return channel.ErrClosed
	}
	return nil
}

func (c *session_channel) Recv() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg.Payload, nil // jrpc2 owns it now, the retain is never dropped
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *session_channel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
