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

// binders turn a typed function into a Handler. each one decodes the
// arguments in declared order, calls fn and encodes CodeSuccess plus the
// result. functions without a result answer with a nil (null) value.
// FuncE variants report a non nil error as CodeHandlerError with its text

func decode_args(args ArgReader, ptrs ...interface{}) error {
	for i, p := range ptrs {
		if err := args.Decode(p); err != nil {
			return &ArgumentError{Index: i, Err: err}
		}
	}
	return nil
}

func reply_result(enc Encoder, v interface{}, err error) error {
	if err != nil {
		return reply_error(enc, CodeHandlerError, err.Error())
	}
	return reply(enc, v)
}

func Func0[R any](fn func() R) Handler {
	return Handler{arity: 0, call: func(args ArgReader, enc Encoder) error {
		return reply(enc, fn())
	}}
}

func Func1[A, R any](fn func(A) R) Handler {
	return Handler{arity: 1, call: func(args ArgReader, enc Encoder) error {
		var a A
		if err := decode_args(args, &a); err != nil {
			return err
		}
		return reply(enc, fn(a))
	}}
}

func Func2[A, B, R any](fn func(A, B) R) Handler {
	return Handler{arity: 2, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		if err := decode_args(args, &a, &b); err != nil {
			return err
		}
		return reply(enc, fn(a, b))
	}}
}

func Func3[A, B, C, R any](fn func(A, B, C) R) Handler {
	return Handler{arity: 3, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		var c C
		if err := decode_args(args, &a, &b, &c); err != nil {
			return err
		}
		return reply(enc, fn(a, b, c))
	}}
}

func Func4[A, B, C, D, R any](fn func(A, B, C, D) R) Handler {
	return Handler{arity: 4, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		var c C
		var d D
		if err := decode_args(args, &a, &b, &c, &d); err != nil {
			return err
		}
		return reply(enc, fn(a, b, c, d))
	}}
}

func Proc0(fn func()) Handler {
	return Handler{arity: 0, call: func(args ArgReader, enc Encoder) error {
		fn()
		return reply(enc, nil)
	}}
}

func Proc1[A any](fn func(A)) Handler {
	return Handler{arity: 1, call: func(args ArgReader, enc Encoder) error {
		var a A
		if err := decode_args(args, &a); err != nil {
			return err
		}
		fn(a)
		return reply(enc, nil)
	}}
}

func Proc2[A, B any](fn func(A, B)) Handler {
	return Handler{arity: 2, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		if err := decode_args(args, &a, &b); err != nil {
			return err
		}
		fn(a, b)
		return reply(enc, nil)
	}}
}

func Proc3[A, B, C any](fn func(A, B, C)) Handler {
	return Handler{arity: 3, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		var c C
		if err := decode_args(args, &a, &b, &c); err != nil {
			return err
		}
		fn(a, b, c)
		return reply(enc, nil)
	}}
}

func FuncE0[R any](fn func() (R, error)) Handler {
	return Handler{arity: 0, call: func(args ArgReader, enc Encoder) error {
		r, err := fn()
		return reply_result(enc, r, err)
	}}
}

func FuncE1[A, R any](fn func(A) (R, error)) Handler {
	return Handler{arity: 1, call: func(args ArgReader, enc Encoder) error {
		var a A
		if err := decode_args(args, &a); err != nil {
			return err
		}
		r, err := fn(a)
		return reply_result(enc, r, err)
	}}
}

func FuncE2[A, B, R any](fn func(A, B) (R, error)) Handler {
	return Handler{arity: 2, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		if err := decode_args(args, &a, &b); err != nil {
			return err
		}
		r, err := fn(a, b)
		return reply_result(enc, r, err)
	}}
}

func FuncE3[A, B, C, R any](fn func(A, B, C) (R, error)) Handler {
	return Handler{arity: 3, call: func(args ArgReader, enc Encoder) error {
		var a A
		var b B
		var c C
		if err := decode_args(args, &a, &b, &c); err != nil {
			return err
		}
		r, err := fn(a, b, c)
		return reply_result(enc, r, err)
	}}
}

// Method binders call fn with recv as first argument, use them with method
// expressions, eg Method2(calc, (*Calculator).Add)

func Method0[T, R any](recv T, fn func(T) R) Handler {
	return Func0(func() R { return fn(recv) })
}

func Method1[T, A, R any](recv T, fn func(T, A) R) Handler {
	return Func1(func(a A) R { return fn(recv, a) })
}

func Method2[T, A, B, R any](recv T, fn func(T, A, B) R) Handler {
	return Func2(func(a A, b B) R { return fn(recv, a, b) })
}

func Method3[T, A, B, C, R any](recv T, fn func(T, A, B, C) R) Handler {
	return Func3(func(a A, b B, c C) R { return fn(recv, a, b, c) })
}

func MethodE1[T, A, R any](recv T, fn func(T, A) (R, error)) Handler {
	return FuncE1(func(a A) (R, error) { return fn(recv, a) })
}

func MethodE2[T, A, B, R any](recv T, fn func(T, A, B) (R, error)) Handler {
	return FuncE2(func(a A, b B) (R, error) { return fn(recv, a, b) })
}
