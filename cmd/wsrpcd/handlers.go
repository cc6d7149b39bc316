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

package main

import "net"
import "time"
import "errors"
import "strconv"

import "github.com/deroproject/wsrpc/rpc"
import "github.com/deroproject/wsrpc/config"

// demo methods
func register_handlers(table *rpc.Table) {
	table.MustBind("add", rpc.Func2(func(a, b int64) int64 { return a + b }))
	table.MustBind("echo", rpc.Func1(func(s string) string { return "WSRPC " + s }))
	table.MustBind("ping", rpc.Func0(func() string { return "Pong " }))
	table.MustBind("time", rpc.Func0(func() int64 { return time.Now().UnixMilli() }))
	table.MustBind("version", rpc.Func0(func() string { return config.Version.String() }))
	table.MustBind("div", rpc.FuncE2(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	}))
}

func splitport(addr string) (host string, port int, err error) {
	var p string
	if host, p, err = net.SplitHostPort(addr); err != nil {
		return
	}
	port, err = strconv.Atoi(p)
	return
}
