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
import "encoding/json"

import "github.com/fxamacker/cbor/v2"

// ArgReader yields call arguments in declared order
type ArgReader interface {
	Len() int
	Decode(v interface{}) error
}

// Encoder receives the response, code first then the value
type Encoder interface {
	Encode(v interface{}) error
}

type cbor_args struct {
	items []cbor.RawMessage
	next  int
}

// CBORArgs reads arguments from raw cbor items
func CBORArgs(items []cbor.RawMessage) ArgReader {
	return &cbor_args{items: items}
}

func (a *cbor_args) Len() int {
	return len(a.items)
}

func (a *cbor_args) Decode(v interface{}) error {
	if a.next >= len(a.items) {
		return io.ErrUnexpectedEOF
	}
	item := a.items[a.next]
	a.next++
	return cbor.Unmarshal(item, v)
}

type json_args struct {
	items []json.RawMessage
	next  int
}

// JSONArgs reads arguments from a json positional parameter array
func JSONArgs(items []json.RawMessage) ArgReader {
	return &json_args{items: items}
}

func (a *json_args) Len() int {
	return len(a.items)
}

func (a *json_args) Decode(v interface{}) error {
	if a.next >= len(a.items) {
		return io.ErrUnexpectedEOF
	}
	item := a.items[a.next]
	a.next++
	return json.Unmarshal(item, v)
}

// result captures a response in memory, used by the json-rpc bridge
type result struct {
	code  Code
	value interface{}
	n     int
}

func (r *result) Encode(v interface{}) error {
	switch r.n {
	case 0:
		code, ok := v.(Code)
		if !ok {
			return io.ErrShortWrite
		}
		r.code = code
	default:
		r.value = v
	}
	r.n++
	return nil
}
