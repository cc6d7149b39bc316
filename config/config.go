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

package config

import "time"
import "github.com/caarlos0/env/v6"

// all session tuning knobs can be overridden from the environment
// durations use go syntax, eg WSRPC_SILENCE_TIMEOUT=90s
type SettingsStruct struct {
	SILENCE_TIMEOUT   time.Duration `env:"WSRPC_SILENCE_TIMEOUT" envDefault:"60s"`   // idle connections are dropped after this, 0 disables
	KEEPALIVE         time.Duration `env:"WSRPC_KEEPALIVE" envDefault:"60s"`         // websocket ping cycle is derived from this
	HANDSHAKE_TIMEOUT time.Duration `env:"WSRPC_HANDSHAKE_TIMEOUT" envDefault:"10s"` // websocket upgrade must complete within this

	SNDBUF        int  `env:"WSRPC_SNDBUF" envDefault:"0"` // 0 keeps os default
	RCVBUF        int  `env:"WSRPC_RCVBUF" envDefault:"0"`
	TCP_KEEPALIVE bool `env:"WSRPC_TCP_KEEPALIVE" envDefault:"true"`

	MAX_MESSAGE int64 `env:"WSRPC_MAX_MESSAGE" envDefault:"2097152"` // max http body or websocket message
	MAX_PER_IP  int   `env:"WSRPC_MAX_PER_IP" envDefault:"8"`        // concurrent sessions from a single ip, 0 is unlimited

	RATE_LIMIT float64 `env:"WSRPC_RATE_LIMIT" envDefault:"0"` // rpc calls per second per session, 0 is unlimited
	RATE_BURST int     `env:"WSRPC_RATE_BURST" envDefault:"32"`
}

var Settings SettingsStruct

var _ = env.Parse(&Settings)

// reparse settings, used when environment changes after start (mostly tests)
func Reload() error {
	var s SettingsStruct
	if err := env.Parse(&s); err != nil {
		return err
	}
	Settings = s
	return nil
}

const RPC_Default_Port = 20206

const DEFAULT_KEEPALIVE = 60 * time.Second // used when keepalive computes to 0 or less
