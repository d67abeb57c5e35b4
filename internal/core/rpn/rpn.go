// Package rpn implements the stack-machine evaluator for compiled postfix
// filter expressions. A Context binds a register file (register 0
// conventionally the current node's ID) and a FieldReader used by the
// getsfld/getifld built-ins; a Program is compiled once by Compile and may
// be evaluated repeatedly against different Contexts.
//
// A Context is not re-entrant: the evaluation stack is reused between
// Eval calls and is reset at the start of every evaluation, mirroring the
// source's single-evaluator-instance-reused-and-reset discipline.
package rpn

import (
	"bytes"

	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
)

// FieldReader reads a named field off a node, on behalf of getsfld/getifld.
// ok is false if the field is absent; that is not an error, it pushes the
// canonical empty operand.
type FieldReader interface {
	GetField(node nodeid.ID, name string) (value string, ok bool)
}

// Context holds the register file and field-lookup collaborator for one
// evaluation. Register 0 must be populated by the caller with the current
// node's ID (as a RawOperand) before Eval.
type Context struct {
	Registers []Operand
	Fields    FieldReader

	stack []Operand // reused across Eval calls
}

// NewContext returns a Context with nrReg registers, all initially empty.
// Callers set Registers[0] (and any others the program references) before
// calling Eval.
func NewContext(nrReg int, fields FieldReader) *Context {
	return &Context{
		Registers: make([]Operand, nrReg),
		Fields:    fields,
	}
}

// reset clears the evaluation stack for a fresh Eval, without reallocating
// its backing array.
func (c *Context) reset() {
	c.stack = c.stack[:0]
}

func (c *Context) push(op Operand) {
	c.stack = append(c.stack, op)
}

func (c *Context) pop() (Operand, error) {
	if len(c.stack) == 0 {
		return Operand{}, selvaerr.New(selvaerr.EBadStk)
	}
	n := len(c.stack) - 1
	op := c.stack[n]
	c.stack = c.stack[:n]
	return op, nil
}

func (c *Context) reg(idx int) (Operand, error) {
	if idx < 0 || idx >= len(c.Registers) {
		return Operand{}, selvaerr.New(selvaerr.EBnds)
	}
	return c.Registers[idx], nil
}

// Eval runs prog to completion, leaving the evaluation stack reset on both
// success and failure. Any non-OK error clears the stack before returning,
// matching the source's "any failure resets the machine" behavior.
func (c *Context) Eval(prog *Program) (Operand, error) {
	c.reset()

	for _, tok := range prog.tokens {
		if err := c.step(tok); err != nil {
			c.reset()
			return Operand{}, err
		}
	}

	if len(c.stack) != 1 {
		c.reset()
		return Operand{}, selvaerr.New(selvaerr.EBadStk)
	}
	result := c.stack[0]
	c.reset()
	return result, nil
}

// Bool runs prog and coerces its single remaining operand to bool.
func (c *Context) Bool(prog *Program) (bool, error) {
	op, err := c.Eval(prog)
	if err != nil {
		return false, err
	}
	return op.toBool(), nil
}

// Integer runs prog and returns its single remaining operand's integer
// view, erroring NAN if that view is not valid.
func (c *Context) Integer(prog *Program) (int64, error) {
	op, err := c.Eval(prog)
	if err != nil {
		return 0, err
	}
	if op.nan {
		return 0, selvaerr.New(selvaerr.ENan)
	}
	return op.i, nil
}

func (c *Context) step(tok token) error {
	switch tok.kind {
	case tokLitInt:
		c.push(IntOperand(tok.i))
		return nil
	case tokLitStr:
		c.push(StringOperand(tok.s))
		return nil
	case tokRegAny:
		op, err := c.reg(tok.reg)
		if err != nil {
			return err
		}
		c.push(op)
		return nil
	case tokRegNum:
		op, err := c.reg(tok.reg)
		if err != nil {
			return err
		}
		if op.nan {
			return selvaerr.New(selvaerr.ENan)
		}
		c.push(op)
		return nil
	case tokOp:
		return c.applyOp(tok.op)
	default:
		return selvaerr.New(selvaerr.EIllOpc)
	}
}

func (c *Context) applyOp(op byte) error {
	switch op {
	case 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'M', 'N', 'O':
		return c.binaryOp(op)
	case 'L':
		return c.unaryNot()
	case 'a':
		return selvaerr.New(selvaerr.ENotSup) // in: reserved
	case 'b':
		return c.typeOf()
	case 'c':
		return c.strCmp()
	case 'd':
		return c.idCmp()
	case 'e':
		return c.cidCmp()
	case 'f':
		return c.getField(false)
	case 'g':
		return c.getField(true)
	default:
		return selvaerr.New(selvaerr.EIllOpc)
	}
}

func (c *Context) popInt() (int64, error) {
	op, err := c.pop()
	if err != nil {
		return 0, err
	}
	if op.nan {
		return 0, selvaerr.New(selvaerr.ENan)
	}
	return op.i, nil
}

// binaryOp pops b then a (so the stack reads "... a b OP") and pushes the
// result of applying op to (a, b).
func (c *Context) binaryOp(op byte) error {
	b, err := c.popInt()
	if err != nil {
		return err
	}
	a, err := c.popInt()
	if err != nil {
		return err
	}

	switch op {
	case 'A':
		c.push(IntOperand(a + b))
	case 'B':
		c.push(IntOperand(a - b))
	case 'C':
		if b == 0 {
			return selvaerr.New(selvaerr.EDiv)
		}
		c.push(IntOperand(a / b))
	case 'D':
		c.push(IntOperand(a * b))
	case 'E':
		if b == 0 {
			return selvaerr.New(selvaerr.EDiv)
		}
		c.push(IntOperand(a % b))
	case 'F':
		c.push(boolOperand(a == b))
	case 'G':
		c.push(boolOperand(a != b))
	case 'H':
		c.push(boolOperand(a < b))
	case 'I':
		c.push(boolOperand(a > b))
	case 'J':
		c.push(boolOperand(a <= b))
	case 'K':
		c.push(boolOperand(a >= b))
	case 'M':
		c.push(boolOperand(a != 0 && b != 0))
	case 'N':
		c.push(boolOperand(a != 0 || b != 0))
	case 'O':
		c.push(boolOperand((a != 0) != (b != 0)))
	default:
		return selvaerr.New(selvaerr.EIllOpc)
	}
	return nil
}

func (c *Context) unaryNot() error {
	op, err := c.pop()
	if err != nil {
		return err
	}
	c.push(boolOperand(!op.toBool()))
	return nil
}

func (c *Context) typeOf() error {
	op, err := c.pop()
	if err != nil {
		return err
	}
	n := len(op.s)
	if n > nodeid.TagSize {
		n = nodeid.TagSize
	}
	c.push(RawOperand(append([]byte(nil), op.s[:n]...)))
	return nil
}

func (c *Context) strCmp() error {
	b, err := c.pop()
	if err != nil {
		return err
	}
	a, err := c.pop()
	if err != nil {
		return err
	}
	c.push(boolOperand(bytes.Equal(a.s, b.s)))
	return nil
}

func (c *Context) idCmp() error {
	b, err := c.pop()
	if err != nil {
		return err
	}
	a, err := c.pop()
	if err != nil {
		return err
	}
	eq := len(a.s) >= nodeid.Size && len(b.s) >= nodeid.Size && bytes.Equal(a.s[:nodeid.Size], b.s[:nodeid.Size])
	c.push(boolOperand(eq))
	return nil
}

func (c *Context) cidCmp() error {
	op, err := c.pop()
	if err != nil {
		return err
	}
	reg0, err := c.reg(0)
	if err != nil {
		return err
	}
	n := nodeid.TagSize
	if len(op.s) < n || len(reg0.s) < n {
		c.push(boolOperand(false))
		return nil
	}
	c.push(boolOperand(bytes.Equal(op.s[:n], reg0.s[:n])))
	return nil
}

func (c *Context) getField(integer bool) error {
	nameOp, err := c.pop()
	if err != nil {
		return err
	}
	if c.Fields == nil {
		return selvaerr.New(selvaerr.ENpe)
	}
	reg0, err := c.reg(0)
	if err != nil {
		return err
	}
	node := nodeid.FromBytes(reg0.s)

	val, ok := c.Fields.GetField(node, string(nameOp.s))
	if !ok {
		c.push(emptyOperand())
		return nil
	}
	if integer {
		op := StringOperand([]byte(val))
		if op.nan {
			return selvaerr.New(selvaerr.ENan)
		}
		c.push(op)
		return nil
	}
	c.push(StringOperand([]byte(val)))
	return nil
}

func boolOperand(b bool) Operand {
	if b {
		return IntOperand(1)
	}
	return IntOperand(0)
}
