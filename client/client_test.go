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

package client

import "time"
import "errors"
import "context"
import "testing"

import "github.com/creachadair/jrpc2"
import "github.com/creachadair/jrpc2/code"
import "github.com/stretchr/testify/require"

import "github.com/deroproject/wsrpc/rpc"
import "github.com/deroproject/wsrpc/server"
import "github.com/deroproject/wsrpc/session"

func start(t *testing.T, addr string) (*server.Server, *rpc.Server) {
	t.Helper()
	table := rpc.NewTable()
	table.MustBind("add", rpc.Func2(func(a, b int) int { return a + b }))
	table.MustBind("echo", rpc.Func1(func(s string) string { return s }))
	table.MustBind("slow", rpc.Func0(func() int { time.Sleep(300 * time.Millisecond); return 1 }))
	notifier := rpc.NewServer(table, rpc.NewMux(table))

	srv := server.New(notifier, session.Config{SilenceTimeout: 5 * time.Second, HandshakeTimeout: 2 * time.Second})
	require.NoError(t, srv.Start(addr))
	t.Cleanup(srv.Stop)
	return srv, notifier
}

func Test_Dialer_Endpoints(t *testing.T) {
	_, url := dialer("127.0.0.1:20206")
	require.Equal(t, "ws://127.0.0.1:20206/ws", url)

	_, url = dialer("wss://example.com/rpc")
	require.Equal(t, "wss://example.com/rpc", url)

	d, url := dialer("kcp://127.0.0.1:20206")
	require.Equal(t, "ws://127.0.0.1:20206/ws", url)
	require.NotNil(t, d.NetDialContext)
}

func Test_JSON_Client(t *testing.T) {
	srv, notifier := start(t, "127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notes := make(chan string, 1)
	c, err := Dial(ctx, srv.Addr().String(), &jrpc2.ClientOptions{OnNotify: func(req *jrpc2.Request) {
		notes <- req.Method()
	}})
	require.NoError(t, err)
	defer c.Close()

	var sum int
	require.NoError(t, c.Call(ctx, "add", &sum, 20, 22))
	require.Equal(t, 42, sum)

	var s string
	require.NoError(t, c.Call(ctx, "echo", &s, "hello"))
	require.Equal(t, "hello", s)

	err = c.Call(ctx, "echo", &s)
	require.Equal(t, code.InvalidParams, code.FromError(err))

	require.Equal(t, 1, notifier.Notify(ctx, "tick", []int{1}))
	select {
	case method := <-notes:
		require.Equal(t, "tick", method)
	case <-ctx.Done():
		t.Fatalf("notification not received")
	}
}

func Test_Binary_Client(t *testing.T) {
	srv, _ := start(t, "127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := DialBinary(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer b.Close()

	var sum int
	require.NoError(t, b.Call(ctx, "add", &sum, 1, 2))
	require.Equal(t, 3, sum)

	err = b.Call(ctx, "nope", nil)
	var ce *rpc.CallError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, rpc.CodeMethodNotFound, ce.Code)

	short, cancel_short := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel_short()
	require.ErrorIs(t, b.Call(short, "slow", nil), context.DeadlineExceeded)

	// the connection is gone after a timed out call
	require.Error(t, b.Call(ctx, "add", &sum, 1, 2))
}

// an idle binary client answers pings and outlives several keepalive periods
func Test_Binary_Client_Idle_Keepalive(t *testing.T) {
	table := rpc.NewTable()
	table.MustBind("add", rpc.Func2(func(a, b int) int { return a + b }))
	srv := server.New(rpc.NewServer(table, nil), session.Config{KeepaliveDefault: 200 * time.Millisecond, HandshakeTimeout: 2 * time.Second})
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := DialBinary(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer b.Close()

	time.Sleep(800 * time.Millisecond)
	require.Equal(t, 1, srv.Registry.Count())

	var sum int
	require.NoError(t, b.Call(ctx, "add", &sum, 20, 22))
	require.Equal(t, 42, sum)
}

func Test_Binary_Client_KCP(t *testing.T) {
	srv, _ := start(t, "kcp://127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := DialBinary(ctx, "kcp://"+srv.Addr().String())
	require.NoError(t, err)
	defer b.Close()

	var s string
	require.NoError(t, b.Call(ctx, "echo", &s, "over udp"))
	require.Equal(t, "over udp", s)
}
