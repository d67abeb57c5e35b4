package rpn

import (
	"strconv"
	"strings"

	"github.com/edirooss/selva-engine/internal/core/selvaerr"
)

type tokenKind int

const (
	tokLitInt tokenKind = iota
	tokLitStr
	tokRegNum // @N: requires numeric view at eval time
	tokRegAny // $N: any view
	tokOp
)

type token struct {
	kind tokenKind
	i    int64
	s    []byte
	reg  int
	op   byte
}

// Program is a compiled postfix token stream, ready for repeated
// evaluation against different register sets.
type Program struct {
	tokens []token
}

// Compile tokenizes and parses a whitespace-separated RPN expression into a
// Program. Compile does not evaluate register bounds or operator arity;
// those are checked at Eval time against the supplied register count.
func Compile(expr string) (*Program, error) {
	fields := strings.Fields(expr)
	prog := &Program{tokens: make([]token, 0, len(fields))}

	for _, f := range fields {
		tok, err := parseToken(f)
		if err != nil {
			return nil, err
		}
		prog.tokens = append(prog.tokens, tok)
	}
	return prog, nil
}

func parseToken(f string) (token, error) {
	if f == "" {
		return token{}, selvaerr.New(selvaerr.EIllOpn)
	}

	switch f[0] {
	case '#':
		v, err := strconv.ParseInt(f[1:], 10, 64)
		if err != nil {
			return token{}, selvaerr.Wrap(selvaerr.EIllOpn, "literal int %q", f)
		}
		return token{kind: tokLitInt, i: v}, nil
	case '"':
		return token{kind: tokLitStr, s: []byte(f[1:])}, nil
	case '@', '$':
		idx, err := strconv.Atoi(f[1:])
		if err != nil {
			return token{}, selvaerr.Wrap(selvaerr.EIllOpn, "register ref %q", f)
		}
		if f[0] == '@' {
			return token{kind: tokRegNum, reg: idx}, nil
		}
		return token{kind: tokRegAny, reg: idx}, nil
	default:
		if len(f) != 1 {
			return token{}, selvaerr.Wrap(selvaerr.EIllOpc, "operator %q", f)
		}
		c := f[0]
		if !isKnownOp(c) {
			return token{}, selvaerr.Wrap(selvaerr.EIllOpc, "operator %q", f)
		}
		return token{kind: tokOp, op: c}, nil
	}
}

func isKnownOp(c byte) bool {
	switch {
	case c >= 'A' && c <= 'O':
		return true
	case c >= 'a' && c <= 'g':
		return true
	default:
		return false
	}
}
