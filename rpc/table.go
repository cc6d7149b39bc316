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

// Package rpc maps method names to typed Go functions and runs them against
// encoded arguments, over binary (cbor) websocket frames, json-rpc 2.0 text
// frames, or plain http.
package rpc

import "sort"
import "sync"
import "time"
import "errors"
import "fmt"
import "strings"
import "unicode"

import "golang.org/x/xerrors"

import "github.com/deroproject/wsrpc/metrics"

var ErrDuplicateBind = errors.New("method already bound")
var ErrInvalidName = errors.New("method name is empty or has quotes or control characters")

// Handler is a bound function with its argument decoding and result encoding
// baked in, build one with the Func, Proc, FuncE and Method helpers
type Handler struct {
	arity int
	call  func(args ArgReader, enc Encoder) error
}

// Arity is the declared parameter count
func (h Handler) Arity() int {
	return h.arity
}

func (h Handler) valid() bool {
	return h.call != nil
}

// Table is safe for concurrent use, but binding is meant to happen before
// sessions start invoking
type Table struct {
	sync.RWMutex
	handlers map[string]Handler
}

func NewTable() *Table {
	return &Table{handlers: map[string]Handler{}}
}

// Bind registers name, an existing name is never overwritten
func (t *Table) Bind(name string, h Handler) error {
	if !valid_name(name) {
		return xerrors.Errorf("bind %q: %w", name, ErrInvalidName)
	}
	if !h.valid() {
		return xerrors.Errorf("bind %q: empty handler", name)
	}
	t.Lock()
	defer t.Unlock()
	if _, ok := t.handlers[name]; ok {
		return xerrors.Errorf("bind %q: %w", name, ErrDuplicateBind)
	}
	t.handlers[name] = h
	return nil
}

// MustBind is Bind for startup code, it panics on error
func (t *Table) MustBind(name string, h Handler) *Table {
	if err := t.Bind(name, h); err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Unbind(name string) {
	t.Lock()
	defer t.Unlock()
	delete(t.handlers, name)
}

func (t *Table) Find(name string) (Handler, bool) {
	t.RLock()
	defer t.RUnlock()
	h, ok := t.handlers[name]
	return h, ok
}

// Names lists bound methods, sorted
func (t *Table) Names() []string {
	t.RLock()
	defer t.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches one call. unknown methods and wrong argument counts are
// answered through enc with a failure code, the returned error is either an
// *ArgumentError or an encoding failure, both fatal to the stream
func (t *Table) Invoke(name string, args ArgReader, enc Encoder) error {
	h, ok := t.Find(name)
	if !ok {
		return reply_error(enc, CodeMethodNotFound, "method not found: "+name)
	}
	return t.call(name, h, args, enc)
}

func (t *Table) call(name string, h Handler, args ArgReader, enc Encoder) error {
	if args.Len() != h.arity {
		return reply_error(enc, CodeArgumentMismatch, fmt.Sprintf("%s expects %d arguments, got %d", name, h.arity, args.Len()))
	}
	start := time.Now()
	defer metrics.RPC_Call(name, start)
	return h.call(args, enc)
}

// names end up as metric labels
func valid_name(name string) bool {
	if name == "" {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return r == '"' || r == '\\' || unicode.IsControl(r)
	}) < 0
}

func reply(enc Encoder, v interface{}) error {
	if err := enc.Encode(CodeSuccess); err != nil {
		return err
	}
	return enc.Encode(v)
}

func reply_error(enc Encoder, code Code, msg string) error {
	if err := enc.Encode(code); err != nil {
		return err
	}
	return enc.Encode(msg)
}
