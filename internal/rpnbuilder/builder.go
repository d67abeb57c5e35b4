// Package rpnbuilder constructs the whitespace-separated postfix token
// strings internal/core/rpn.Compile expects: pure construction, no
// execution, mirroring the builder/argv split used elsewhere in this
// codebase for emitting deterministic token sequences.
//
// Emission policy is deterministic and explicit:
//   - Every operand and operator method appends exactly one token and returns the
//     Builder, so calls read left to right in the same order the
//     resulting postfix program evaluates.
//   - Int/Str/Register methods are the operand side; Op methods are the
//     single-character operator side. Callers compose both freely, same
//     as hand-writing the expression string.
package rpnbuilder

import (
	"strconv"
	"strings"
)

// Builder accumulates RPN tokens. Not concurrency-safe; treat as a
// single-use, short-lived value object.
type Builder struct {
	tokens []string
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Int appends a literal integer operand: `#<int>`.
func (b *Builder) Int(v int64) *Builder {
	b.tokens = append(b.tokens, "#"+strconv.FormatInt(v, 10))
	return b
}

// Str appends a literal string operand: `"<chars>`. The token format has
// no closing delimiter or escaping, so raw whitespace cannot appear inside
// v; callers passing field names or other tokenizer-safe text are fine.
func (b *Builder) Str(v string) *Builder {
	b.tokens = append(b.tokens, `"`+v)
	return b
}

// Reg appends a numeric-view register reference: `@<digit>`.
func (b *Builder) Reg(n int) *Builder {
	b.tokens = append(b.tokens, "@"+strconv.Itoa(n))
	return b
}

// RegAny appends an any-view register reference: `$<digit>`.
func (b *Builder) RegAny(n int) *Builder {
	b.tokens = append(b.tokens, "$"+strconv.Itoa(n))
	return b
}

// Op appends a raw single-character operator token (one of A-O, a-g).
func (b *Builder) Op(c byte) *Builder {
	b.tokens = append(b.tokens, string(c))
	return b
}

// Convenience wrappers over Op for the named operators.
func (b *Builder) Add() *Builder    { return b.Op('A') }
func (b *Builder) Sub() *Builder    { return b.Op('B') }
func (b *Builder) Div() *Builder    { return b.Op('C') }
func (b *Builder) Mul() *Builder    { return b.Op('D') }
func (b *Builder) Rem() *Builder    { return b.Op('E') }
func (b *Builder) Eq() *Builder     { return b.Op('F') }
func (b *Builder) Ne() *Builder     { return b.Op('G') }
func (b *Builder) Lt() *Builder     { return b.Op('H') }
func (b *Builder) Gt() *Builder     { return b.Op('I') }
func (b *Builder) Le() *Builder     { return b.Op('J') }
func (b *Builder) Ge() *Builder     { return b.Op('K') }
func (b *Builder) Not() *Builder    { return b.Op('L') }
func (b *Builder) And() *Builder    { return b.Op('M') }
func (b *Builder) Or() *Builder     { return b.Op('N') }
func (b *Builder) Xor() *Builder    { return b.Op('O') }
func (b *Builder) TypeOf() *Builder { return b.Op('b') }
func (b *Builder) StrCmp() *Builder { return b.Op('c') }
func (b *Builder) IDCmp() *Builder  { return b.Op('d') }
func (b *Builder) CIDCmp() *Builder { return b.Op('e') }
func (b *Builder) GetSFld() *Builder { return b.Op('f') }
func (b *Builder) GetIFld() *Builder { return b.Op('g') }

// Build returns the whitespace-separated program text ready for
// rpn.Compile.
func (b *Builder) Build() string {
	return strings.Join(b.tokens, " ")
}

// FieldEquals is a high-level convenience: a predicate that reads field
// (by name, as a string field lookup) and compares it for string equality
// against want. Equivalent to hand-writing `"<field> f "<want> c`.
func FieldEquals(field, want string) string {
	return New().Str(field).GetSFld().Str(want).StrCmp().Build()
}

// FieldIntGreaterThan builds `"<field> g #<n> I` — read field as an
// integer and test it greater than n.
func FieldIntGreaterThan(field string, n int64) string {
	return New().Str(field).GetIFld().Int(n).Gt().Build()
}
