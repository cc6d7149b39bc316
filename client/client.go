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

// Package client dials a wsrpc server, json-rpc over text frames or cbor calls over binary frames
package client

import "net"
import "sync"
import "time"
import "context"
import "strings"

import "github.com/gorilla/websocket"
import "github.com/creachadair/jrpc2"
import "github.com/xtaci/kcp-go/v5"

import "github.com/deroproject/wsrpc/rpc"
import "github.com/deroproject/wsrpc/glue/rwc"

// endpoint is host:port, a ws:// or wss:// url, or kcp://host:port
func dialer(endpoint string) (*websocket.Dialer, string) {
	d := &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: websocket.DefaultDialer.Proxy}
	switch {
	case strings.HasPrefix(endpoint, "kcp://"):
		d.Proxy = nil
		d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
			if err != nil {
				return nil, err
			}
			conn.SetStreamMode(true)
			conn.SetWriteDelay(false)
			conn.SetNoDelay(1, 10, 2, 1)
			conn.SetWindowSize(1024, 1024)
			return conn, nil
		}
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "kcp://")
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return d, endpoint
	default:
		endpoint = "ws://" + endpoint
	}
	return d, endpoint + "/ws"
}

func dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	d, url := dialer(endpoint)
	conn, _, err := d.DialContext(ctx, url, nil)
	return conn, err
}

// Client speaks json-rpc 2.0, server notifications go to ClientOptions.OnNotify
type Client struct {
	WS  *websocket.Conn
	RPC *jrpc2.Client
}

func Dial(ctx context.Context, endpoint string, opts *jrpc2.ClientOptions) (*Client, error) {
	conn, err := dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{WS: conn, RPC: jrpc2.NewClient(rwc.New(conn), opts)}, nil
}

// Call sends params as a positional array
func (c *Client) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	return c.RPC.CallResult(ctx, method, params, result)
}

func (c *Client) Close() error {
	return c.RPC.Close()
}

// Binary makes cbor calls, one at a time since responses carry no ids.
// a background reader keeps consuming frames between calls, so server pings
// are answered and an idle client is not dropped by the keepalive
type Binary struct {
	sync.Mutex
	WS *websocket.Conn

	responses chan []byte
	done      chan struct{} // closed when the reader exits
	err       error         // reader exit reason, valid once done is closed
	closed    chan struct{}
	once      sync.Once
}

func DialBinary(ctx context.Context, endpoint string) (*Binary, error) {
	conn, err := dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	b := &Binary{WS: conn, responses: make(chan []byte, 1), done: make(chan struct{}), closed: make(chan struct{})}
	go b.read_loop()
	return b, nil
}

// text frames (json-rpc notifications) are skipped
func (b *Binary) read_loop() {
	defer close(b.done)
	for {
		frame_type, data, err := b.WS.ReadMessage()
		if err != nil {
			b.err = err
			return
		}
		if frame_type == websocket.BinaryMessage {
			select {
			case b.responses <- data:
			case <-b.closed:
				return
			}
		}
	}
}

// Call invokes name, failure codes come back as *rpc.CallError. once ctx
// expires mid call the connection is closed
func (b *Binary) Call(ctx context.Context, name string, result interface{}, args ...interface{}) error {
	request, err := rpc.EncodeRequest(name, args...)
	if err != nil {
		return err
	}

	b.Lock()
	defer b.Unlock()

	select {
	case <-b.done:
		return b.err
	default:
	}

	deadline, _ := ctx.Deadline()
	b.WS.SetWriteDeadline(deadline)
	if err = b.WS.WriteMessage(websocket.BinaryMessage, request); err != nil {
		return err
	}

	select {
	case response := <-b.responses:
		return rpc.DecodeResponse(response, result)
	case <-b.done:
		return b.err
	case <-ctx.Done():
		b.close() // a late response would be taken for the next call
		return ctx.Err()
	}
}

func (b *Binary) Close() error {
	b.WS.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return b.close()
}

func (b *Binary) close() (err error) {
	b.once.Do(func() {
		close(b.closed)
		err = b.WS.Close()
	})
	return
}
