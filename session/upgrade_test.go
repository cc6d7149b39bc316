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

import "fmt"
import "net"
import "sync"
import "time"
import "bufio"
import "errors"
import "testing"
import "net/http"

import "github.com/gorilla/websocket"
import "github.com/stretchr/testify/require"

func echo_frames(s *Session, msg *Message) {
	if msg.IsFrame() {
		s.Send(msg)
	}
}

func dial_ws(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return c
}

// a received message sent straight back must not be read over by the next frame
func Test_Send_Received_Message(t *testing.T) {
	rec := new_recorder()
	rec.on_recv = echo_frames
	ts := serve(t, Config{}, rec)
	c := dial_ws(t, ts.addr())
	defer c.Close()

	words := []string{"hello", "world", "again", "x"}
	for _, w := range words {
		require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(w)))
	}
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	for _, w := range words {
		frame_type, data, err := c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, frame_type)
		require.Equal(t, w, string(data))
	}

	// every frame was sent back, none of them may be reused
	rec.Lock()
	defer rec.Unlock()
	require.Len(t, rec.recvs, len(words))
	for i := 1; i < len(rec.recvs); i++ {
		require.True(t, rec.recvs[i] != rec.recvs[i-1], "message %d was reused while queued", i)
	}
}

func Test_SendFrame_Copies(t *testing.T) {
	rec := new_recorder()
	buf := []byte("first")
	rec.on_recv = func(s *Session, msg *Message) {
		if msg.IsFrame() {
			s.SendFrame(websocket.BinaryMessage, buf)
			copy(buf, "xxxxx")
		}
	}
	ts := serve(t, Config{}, rec)
	c := dial_ws(t, ts.addr())
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("go")))
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "first", string(data))
}

// upgrade happens once, an upgrade request arriving as a frame is just data
func Test_Upgrade_Echo(t *testing.T) {
	rec := new_recorder()
	rec.on_recv = echo_frames
	ts := serve(t, Config{}, rec)

	c := dial_ws(t, ts.addr())
	defer c.Close()
	s := ts.next(t)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("hello")))
	ft, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, ft)
	require.Equal(t, "hello", string(data))

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	ft, data, err = c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, ft)
	require.Equal(t, []byte{1, 2, 3}, data)

	upgrade := "GET /ws HTTP/1.1\r\nHost: localhost\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n"
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(upgrade)))
	_, data, err = c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, upgrade, string(data))

	require.True(t, s.Upgraded())
	require.True(t, s.IsStarted())

	rec.Lock()
	require.Len(t, rec.upgrades, 1)
	require.NoError(t, rec.upgrades[0])
	require.Len(t, rec.recvs, 3)
	require.Equal(t, http.StatusSwitchingProtocols, rec.recvs[0].Status)
	require.Equal(t, "GET", rec.recvs[0].Method)
	require.True(t, rec.recvs[0].KeepAlive)
	rec.Unlock()
}

func Test_Upgrade_Close_Frame(t *testing.T) {
	rec := new_recorder()
	ts := serve(t, Config{}, rec)

	c := dial_ws(t, ts.addr())
	defer c.Close()
	s := ts.next(t)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	require.NoError(t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	rec.wait_closed(t, 2*time.Second)
	s.Wait()
	require.True(t, s.IsStopped())
	require.Equal(t, 1, rec.close_count())

	// peer gets its close frame echoed
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
}

func Test_Upgrade_Handshake_Failure(t *testing.T) {
	rec := new_recorder()
	ts := serve(t, Config{}, rec)

	conn, err := net.Dial("tcp", ts.addr())
	require.NoError(t, err)
	defer conn.Close()

	// no key, gorilla refuses it
	fmt.Fprintf(conn, "GET /ws HTTP/1.1\r\nHost: localhost\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Version: 13\r\n\r\n")
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rec.wait_closed(t, 2*time.Second)
	rec.Lock()
	defer rec.Unlock()
	require.Len(t, rec.upgrades, 1)
	require.Error(t, rec.upgrades[0])
	require.Len(t, rec.recvs, 0)
}

// sends from many goroutines all arrive, each one reported once
func Test_Send_From_Goroutines(t *testing.T) {
	const writers, each = 8, 50

	rec := new_recorder()
	ts := serve(t, Config{}, rec)

	c := dial_ws(t, ts.addr())
	defer c.Close()
	s := ts.next(t)

	// handshake completes on the strand, wait for it
	require.Eventually(t, s.IsStarted, 2*time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if !s.SendText(fmt.Sprintf("%d-%d", w, i)) {
					t.Errorf("send refused err %v", s.LastError())
				}
			}
		}(w)
	}

	seen := map[string]bool{}
	last := make([]int, writers)
	for i := range last {
		last[i] = -1
	}
	for len(seen) < writers*each {
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		var w, i int
		fmt.Sscanf(string(data), "%d-%d", &w, &i)
		require.Greater(t, i, last[w], "frames of one writer must stay ordered")
		last[w] = i
		seen[string(data)] = true
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		rec.Lock()
		defer rec.Unlock()
		return len(rec.sends) == writers*each
	}, 2*time.Second, 10*time.Millisecond)

	rec.Lock()
	defer rec.Unlock()
	for _, err := range rec.sends {
		require.NoError(t, err)
	}
}

func Test_SendBytes_Upgraded(t *testing.T) {
	rec := new_recorder()
	rec.on_recv = func(s *Session, msg *Message) {
		s.SendBytes([]byte("reply"))
	}
	ts := serve(t, Config{}, rec)

	c := dial_ws(t, ts.addr())
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte("x")))
	ft, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, ft, "raw bytes follow the last frame type")
	require.Equal(t, "reply", string(data))
}

func Test_Keepalive_Period(t *testing.T) {
	tests := []struct {
		silence, keepalive, want time.Duration
	}{
		{60 * time.Second, 60 * time.Second, 30 * time.Second},
		{10 * time.Second, 60 * time.Second, 5 * time.Second},
		{0, 60 * time.Second, 30 * time.Second},
		{0, 0, 30 * time.Second},
		{90 * time.Second, 20 * time.Second, 10 * time.Second},
	}
	for _, test := range tests {
		if got := keepalive_period(test.silence, test.keepalive); got != test.want {
			t.Errorf("keepalive_period(%s, %s) = %s want %s", test.silence, test.keepalive, got, test.want)
		}
	}
}

// a peer answering pings stays connected
func Test_Keepalive_Responsive(t *testing.T) {
	rec := new_recorder()
	ts := serve(t, Config{SilenceTimeout: 400 * time.Millisecond, KeepaliveDefault: time.Minute}, rec)

	c := dial_ws(t, ts.addr())
	defer c.Close()
	s := ts.next(t)

	var mu sync.Mutex
	pings := 0
	c.SetPingHandler(func(data string) error {
		mu.Lock()
		pings++
		mu.Unlock()
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(1200 * time.Millisecond)
	require.True(t, s.IsStarted(), "responsive peer was dropped, reason %v", rec.close_reason())
	mu.Lock()
	require.GreaterOrEqual(t, pings, 3)
	mu.Unlock()
}

// no answer to a ping within one cycle closes the session
func Test_Keepalive_Missed(t *testing.T) {
	const period = 200 * time.Millisecond

	rec := new_recorder()
	ts := serve(t, Config{KeepaliveDefault: 2 * period}, rec)

	c := dial_ws(t, ts.addr()) // never reads, so never answers pings
	defer c.Close()
	s := ts.next(t)
	upgraded_at := time.Now()

	rec.wait_closed(t, 3*time.Second)
	s.Wait()

	require.True(t, errors.Is(rec.close_reason(), ErrKeepaliveMissed), "unexpected reason %v", rec.close_reason())
	rec.Lock()
	elapsed := rec.closed_at.Sub(upgraded_at)
	rec.Unlock()
	require.GreaterOrEqual(t, int64(elapsed), int64(2*period-50*time.Millisecond))
}

// a timer firing before its recorded deadline is treated as a liveness failure
func Test_Keepalive_Early_Firing(t *testing.T) {
	rec := new_recorder()
	ts := serve(t, Config{Clock: early_clock{now: time.Now()}}, rec)

	// the session may be gone before the handshake answer is read
	c, _, err := websocket.DefaultDialer.Dial("ws://"+ts.addr()+"/ws", nil)
	if err == nil {
		defer c.Close()
	}

	rec.wait_closed(t, 3*time.Second)
	require.True(t, errors.Is(rec.close_reason(), ErrEarlyTimer), "unexpected reason %v", rec.close_reason())
}
