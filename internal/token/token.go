// Package token contains the tokens produced by the scanner while it
// reads a source file for the pcc compiler.
package token

// Kind identifies the lexical category of a token.
type Kind int

// The closed set of lexeme kinds recognized by the scanner.
const (
	Invalid Kind = iota
	EOF
	Error

	Ident
	IntLit
	DoubleLit
	StringLit

	// operators
	Plus
	Minus
	Mul
	Div
	Assign
	Lesser
	LesserEqual
	Greater
	GreaterEqual
	Equal
	NotEqual
	Or
	Xor
	And
	Mod
	Not

	// brackets / punctuation
	LeftSquare
	RightSquare
	LeftRound
	RightRound
	Colon
	Semicolon
	Dot
	Comma

	// keywords
	KwBegin
	KwEnd
	KwIf
	KwThen
	KwElse
	KwFor
	KwTo
	KwDownto
	KwWhile
	KwRepeat
	KwUntil
	KwDo
	KwBreak
	KwContinue
	KwWrite
	KwWriteln
	KwRead
	KwReadln
	KwVar
	KwType
	KwProcedure
	KwFunction
	KwInteger
	KwDouble
	KwArray
	KwRecord
	KwOf
)

var kindNames = map[Kind]string{
	Invalid:      "invalid",
	EOF:          "eof",
	Error:        "error",
	Ident:        "identifier",
	IntLit:       "integer literal",
	DoubleLit:    "double literal",
	StringLit:    "string literal",
	Plus:         "+",
	Minus:        "-",
	Mul:          "*",
	Div:          "/",
	Assign:       ":=",
	Lesser:       "<",
	LesserEqual:  "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Equal:        "=",
	NotEqual:     "<>",
	Or:           "or",
	Xor:          "xor",
	And:          "and",
	Mod:          "mod",
	Not:          "not",
	LeftSquare:   "[",
	RightSquare:  "]",
	LeftRound:    "(",
	RightRound:   ")",
	Colon:        ":",
	Semicolon:    ";",
	Dot:          ".",
	Comma:        ",",
	KwBegin:      "begin",
	KwEnd:        "end",
	KwIf:         "if",
	KwThen:       "then",
	KwElse:       "else",
	KwFor:        "for",
	KwTo:         "to",
	KwDownto:     "downto",
	KwWhile:      "while",
	KwRepeat:     "repeat",
	KwUntil:      "until",
	KwDo:         "do",
	KwBreak:      "break",
	KwContinue:   "continue",
	KwWrite:      "write",
	KwWriteln:    "writeln",
	KwRead:       "read",
	KwReadln:     "readln",
	KwVar:        "var",
	KwType:       "type",
	KwProcedure:  "procedure",
	KwFunction:   "function",
	KwInteger:    "integer",
	KwDouble:     "double",
	KwArray:      "array",
	KwRecord:     "record",
	KwOf:         "of",
}

// String renders a human-readable name for the kind, used in diagnostics.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Keywords maps the reserved-word spelling to its Kind. Keyword matching is
// case-insensitive; the scanner lower-cases identifier text before the
// lookup.
var Keywords = map[string]Kind{
	"begin":     KwBegin,
	"end":       KwEnd,
	"if":        KwIf,
	"then":      KwThen,
	"else":      KwElse,
	"for":       KwFor,
	"to":        KwTo,
	"downto":    KwDownto,
	"while":     KwWhile,
	"repeat":    KwRepeat,
	"until":     KwUntil,
	"do":        KwDo,
	"break":     KwBreak,
	"continue":  KwContinue,
	"write":     KwWrite,
	"writeln":   KwWriteln,
	"read":      KwRead,
	"readln":    KwReadln,
	"var":       KwVar,
	"type":      KwType,
	"procedure": KwProcedure,
	"function":  KwFunction,
	"integer":   KwInteger,
	"double":    KwDouble,
	"array":     KwArray,
	"record":    KwRecord,
	"of":        KwOf,
	"and":       And,
	"or":        Or,
	"xor":       Xor,
	"mod":       Mod,
	"not":       Not,
}

// Token is an immutable unit produced by the scanner: a kind, the literal
// text as it appeared (or was normalized) in the source, and its 1-based
// source position.
type Token struct {
	Kind    Kind
	Literal string
	Line    int
	Col     int
}

// Is reports whether the token has the given kind.
func (t Token) Is(k Kind) bool {
	return t.Kind == k
}

// IsRelOp reports whether the token is one of the six relational operators.
func (t Token) IsRelOp() bool {
	switch t.Kind {
	case Lesser, LesserEqual, Greater, GreaterEqual, Equal, NotEqual:
		return true
	}
	return false
}
