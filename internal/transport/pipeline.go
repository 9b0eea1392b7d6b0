// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone-nop's func.go/compose.go/unit.go generic
// pipeline combinators, carried over unchanged in shape (they are already
// domain-agnostic) and repackaged here so the connection core's dial,
// cancel-on-context, and observe-I/O transport stages compose the same
// way bassosimone-nop composes its dial/TLS/HTTP stages.

// Package transport provides the dial/cancel/observe pipeline stages used
// to open and instrument the raw [net.Conn] a connection hands to the
// wire framing codec, composed via the same [Func] combinator
// bassosimone-nop uses for its network-measurement pipelines.
package transport

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// Func instances compose via [Compose2] and [Compose3] into type-safe
// pipelines where the compiler verifies each stage's output matches the
// next stage's input.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a plain function as a [Func].
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}

// Unit is a type with no values, used for [Func] stages that take no
// meaningful input (e.g. a fixed dial target).
type Unit struct{}

// Compose2 chains two [Func] instances: op1's output feeds op2's input.
// If op1 errors, op2 is never called.
func Compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return &compose2[A, B, C]{op1, op2}
}

type compose2[A, B, C any] struct {
	op1 Func[A, B]
	op2 Func[B, C]
}

func (c *compose2[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	res, err := c.op1.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return c.op2.Call(ctx, res)
}

// Compose3 chains three [Func] instances.
func Compose3[A, B, C, D any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D]) Func[A, D] {
	return Compose2(op1, Compose2(op2, op3))
}

// Apply binds a fixed input to fn, yielding a [Func] that ignores its own
// input, used to curry a server address into a dial pipeline.
func Apply[A, B any](fn Func[A, B], input A) Func[Unit, B] {
	return &apply[A, B]{fn, input}
}

type apply[A, B any] struct {
	fn    Func[A, B]
	input A
}

func (b *apply[A, B]) Call(ctx context.Context, _ Unit) (B, error) {
	return b.fn.Call(ctx, b.input)
}
