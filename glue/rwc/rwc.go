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

// Package rwc carries json-rpc records over websocket text frames
package rwc

import "sync"
import "time"

import "github.com/gorilla/websocket"
import "github.com/creachadair/jrpc2/channel"

// Channel is a jrpc2 channel, one record per frame
type Channel struct {
	WS *websocket.Conn

	wmu  sync.Mutex // gorilla allows one writer at a time
	once sync.Once
}

var _ channel.Channel = (*Channel)(nil)

func New(conn *websocket.Conn) *Channel {
	return &Channel{WS: conn}
}

func (c *Channel) Send(record []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.WS.WriteMessage(websocket.TextMessage, record)
}

// Recv skips binary frames
func (c *Channel) Recv() ([]byte, error) {
	for {
		frame_type, data, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, channel.ErrClosed
			}
			return nil, err
		}
		if frame_type == websocket.TextMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and drops the connection
func (c *Channel) Close() (err error) {
	c.once.Do(func() {
		c.wmu.Lock()
		c.WS.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.WS.Close()
	})
	return
}
