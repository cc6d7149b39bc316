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
import "bytes"

import "golang.org/x/xerrors"
import "github.com/fxamacker/cbor/v2"

// binary frames carry a cbor sequence
//   request:  method name (text), arguments (array)
//   response: code (uint), result or error text
// there are no ids, responses come back in request order

// EncodeRequest builds a request frame
func EncodeRequest(name string, args ...interface{}) ([]byte, error) {
	if args == nil {
		args = []interface{}{}
	}
	var buf bytes.Buffer
	enc := cbor.NewEncoder(&buf)
	if err := enc.Encode(name); err != nil {
		return nil, err
	}
	if err := enc.Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses a request frame, any error is a framing error
func DecodeRequest(data []byte) (name string, args ArgReader, err error) {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	if err = dec.Decode(&name); err != nil {
		return "", nil, xerrors.Errorf("request name: %w", err)
	}
	var items []cbor.RawMessage
	if err = dec.Decode(&items); err != nil && err != io.EOF {
		return "", nil, xerrors.Errorf("request arguments: %w", err)
	}
	return name, CBORArgs(items), nil
}

// InvokeFrame runs a request frame against the table and returns the response frame.
// a non nil error means the request could not be decoded
func (t *Table) InvokeFrame(request []byte) ([]byte, error) {
	name, args, err := DecodeRequest(request)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Invoke(name, args, cbor.NewEncoder(&buf)); err != nil {
		return nil, xerrors.Errorf("%s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses a response frame into result, failure codes are
// returned as *CallError
func DecodeResponse(data []byte, result interface{}) error {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	var code Code
	if err := dec.Decode(&code); err != nil {
		return xerrors.Errorf("response code: %w", err)
	}
	if code != CodeSuccess {
		var msg string
		if err := dec.Decode(&msg); err != nil {
			return xerrors.Errorf("response error text: %w", err)
		}
		return &CallError{Code: code, Message: msg}
	}
	if result == nil {
		var discard cbor.RawMessage
		return dec.Decode(&discard)
	}
	if err := dec.Decode(result); err != nil {
		return xerrors.Errorf("response result: %w", err)
	}
	return nil
}
