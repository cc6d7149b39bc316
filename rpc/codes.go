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

import "fmt"

// Code is the first item of every response, anything but CodeSuccess means
// the call was not dispatched or the handler failed
type Code uint16

const (
	CodeSuccess Code = iota
	CodeMethodNotFound
	CodeArgumentMismatch
	CodeHandlerError
	CodeRateLimited
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeMethodNotFound:
		return "method not found"
	case CodeArgumentMismatch:
		return "argument mismatch"
	case CodeHandlerError:
		return "handler error"
	case CodeRateLimited:
		return "rate limited"
	}
	return fmt.Sprintf("Code(%d)", uint16(c))
}

// CallError is returned to callers for a response with a failure code
type CallError struct {
	Code    Code
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Code, e.Message)
}

// ArgumentError means an argument could not be decoded. the request stream
// is no longer trusted, so sessions are dropped on it
type ArgumentError struct {
	Index int
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d: %s", e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}
