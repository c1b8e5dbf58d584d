package expr

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString

	// Keywords (case-insensitive).
	tokAnd
	tokOr
	tokNot
	tokIn
	tokContains
	tokIs
	tokNull
	tokTrue
	tokFalse

	// Operators and punctuation.
	tokEq      // ==
	tokNeq     // !=
	tokLt      // <
	tokLte     // <=
	tokGt      // >
	tokGte     // >=
	tokPlus    // +
	tokMinus   // -
	tokStar    // *
	tokSlash   // /
	tokPercent // %
	tokLParen  // (
	tokRParen  // )
	tokLBrack  // [
	tokRBrack  // ]
	tokComma   // ,
	tokDot     // .
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return fmt.Sprintf("number %g", t.num)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// keywords maps lowercased identifier text to keyword tokens.
var keywords = map[string]tokenKind{
	"and":      tokAnd,
	"or":       tokOr,
	"not":      tokNot,
	"in":       tokIn,
	"contains": tokContains,
	"is":       tokIs,
	"null":     tokNull,
	"true":     tokTrue,
	"false":    tokFalse,
}
