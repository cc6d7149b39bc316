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

package server

import "net"
import "time"
import "testing"

import "github.com/gorilla/websocket"
import "github.com/stretchr/testify/require"
import "github.com/xtaci/kcp-go/v5"

import "github.com/deroproject/wsrpc/rpc"
import "github.com/deroproject/wsrpc/session"

func test_config() session.Config {
	return session.Config{SilenceTimeout: 5 * time.Second, HandshakeTimeout: 2 * time.Second}
}

func test_notifier() *rpc.Server {
	table := rpc.NewTable()
	table.MustBind("add", rpc.Func2(func(a, b int) int { return a + b }))
	return rpc.NewServer(table, nil)
}

func dial_ws(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func add(t *testing.T, c *websocket.Conn, a, b int) int {
	t.Helper()
	request, err := rpc.EncodeRequest("add", a, b)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, request))
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, response, err := c.ReadMessage()
	require.NoError(t, err)
	var sum int
	require.NoError(t, rpc.DecodeResponse(response, &sum))
	return sum
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

func Test_Start_Stop(t *testing.T) {
	srv := New(test_notifier(), test_config())
	require.Nil(t, srv.Addr())
	require.NoError(t, srv.Start("127.0.0.1:0"))
	addr := srv.Addr().String()

	c1 := dial_ws(t, addr)
	c2 := dial_ws(t, addr)
	require.Equal(t, 5, add(t, c1, 2, 3))
	require.Equal(t, 7, add(t, c2, 3, 4))
	require.Equal(t, 2, srv.Registry.Count())
	require.Equal(t, 2, srv.Registry.CountIP("127.0.0.1"))

	srv.Stop()
	srv.Stop()
	require.Equal(t, 0, srv.Registry.Count())

	c1.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := c1.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	_, err = net.DialTimeout("tcp", addr, time.Second)
	require.Error(t, err)

	require.ErrorIs(t, srv.Start("127.0.0.1:0"), ErrStopped)
}

func Test_Bad_Listen_Address(t *testing.T) {
	srv := New(test_notifier(), test_config())
	defer srv.Stop()
	require.Error(t, srv.Start("127.0.0.1:-1"))
	require.Nil(t, srv.Addr())
}

func Test_Per_IP_Limit(t *testing.T) {
	srv := New(test_notifier(), test_config())
	srv.Registry.MaxPerIP = 1
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop()
	addr := srv.Addr().String()

	c1 := dial_ws(t, addr)
	require.Equal(t, 2, add(t, c1, 1, 1))

	_, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.Error(t, err)
	require.Equal(t, 1, srv.Registry.Count())

	c1.Close()
	eventually(t, func() bool { return srv.Registry.Count() == 0 })

	c3 := dial_ws(t, addr)
	require.Equal(t, 4, add(t, c3, 2, 2))
}

func Test_Broadcast(t *testing.T) {
	srv := New(test_notifier(), test_config())
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop()
	addr := srv.Addr().String()

	clients := []*websocket.Conn{dial_ws(t, addr), dial_ws(t, addr)}
	for _, c := range clients {
		add(t, c, 0, 0)
	}

	// a plain http session is never broadcast to
	plain, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer plain.Close()
	eventually(t, func() bool { return srv.Registry.Count() == 3 })

	require.Equal(t, 2, srv.Registry.Broadcast(websocket.TextMessage, []byte("hello")))
	for _, c := range clients {
		c.SetReadDeadline(time.Now().Add(5 * time.Second))
		frame_type, data, err := c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, frame_type)
		require.Equal(t, "hello", string(data))
	}

	var ids []uint64
	srv.Registry.Range(func(s *session.Session) bool {
		ids = append(ids, s.ID())
		return true
	})
	require.Len(t, ids, 3)
	s, ok := srv.Registry.Find(ids[0])
	require.True(t, ok)
	require.Equal(t, ids[0], s.ID())
}

func Test_KCP(t *testing.T) {
	srv := New(test_notifier(), test_config())
	require.NoError(t, srv.Start("kcp://127.0.0.1:0"))
	defer srv.Stop()
	addr := srv.Addr().String()

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second, NetDial: func(network, addr string) (net.Conn, error) {
		conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		conn.SetStreamMode(true)
		conn.SetNoDelay(1, 10, 2, 1)
		return conn, nil
	}}
	c, _, err := d.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, 9, add(t, c, 4, 5))
	require.Equal(t, 1, srv.Registry.CountIP("127.0.0.1"))
}
