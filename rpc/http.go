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
import "os"
import "net/http"
import "net/http/pprof"

import "github.com/creachadair/jrpc2/jhttp"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/metrics"

// Mux is the plain http surface of a server, the bridge must be closed on shutdown
type Mux struct {
	*http.ServeMux
	bridge jhttp.Bridge
}

// NewMux serves / , /metrics and /json_rpc (http post bridged to the table)
func NewMux(table *Table) *Mux {
	m := &Mux{ServeMux: http.NewServeMux(), bridge: jhttp.NewBridge(table.Assigner(), nil)}

	m.HandleFunc("/json_rpc", m.bridge.ServeHTTP)
	m.HandleFunc("/", hello)
	m.HandleFunc("/metrics", metrics.WritePrometheus)

	if os.Getenv("DISABLE_RUNTIME_PROFILE") != "1" {
		m.HandleFunc("/debug/pprof/", pprof.Index)
		m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		m.HandleFunc("/debug/pprof/profile", pprof.Profile)
		m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		m.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return m
}

func (m *Mux) Close() error {
	return m.bridge.Close()
}

func hello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, "WSRPC "+config.Version.String()+" Hello world!")
}
