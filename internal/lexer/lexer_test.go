package lexer

import (
	"strings"
	"testing"

	"github.com/anthropic-exercises/pcc/internal/token"
)

func TestScanNumbers(t *testing.T) {
	input := `3 43 1.5 2.5e10 2.5E-3`

	tests := []struct {
		kind    token.Kind
		literal string
	}{
		{token.IntLit, "3"},
		{token.IntLit, "43"},
		{token.DoubleLit, "1.5"},
		{token.DoubleLit, "2.5e10"},
		{token.DoubleLit, "2.5E-3"},
		{token.EOF, ""},
	}

	l := New(strings.NewReader(input))
	for i, tt := range tests {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("tests[%d] unexpected error: %v", i, err)
		}
		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] kind wrong, expected=%v, got=%v", i, tt.kind, tok.Kind)
		}
		if tok.Literal != tt.literal {
			t.Fatalf("tests[%d] literal wrong, expected=%q, got=%q", i, tt.literal, tok.Literal)
		}
	}
}

func TestScanKeywordsCaseInsensitive(t *testing.T) {
	input := `BEGIN End WHILE`
	want := []token.Kind{token.KwBegin, token.KwEnd, token.KwWhile, token.EOF}

	l := New(strings.NewReader(input))
	for i, k := range want {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("tests[%d] unexpected error: %v", i, err)
		}
		if tok.Kind != k {
			t.Fatalf("tests[%d] kind wrong, expected=%v, got=%v", i, k, tok.Kind)
		}
	}
}

func TestScanOperators(t *testing.T) {
	input := `:= <> <= >= < > = + - * /`
	want := []token.Kind{
		token.Assign, token.NotEqual, token.LesserEqual, token.GreaterEqual,
		token.Lesser, token.Greater, token.Equal, token.Plus, token.Minus,
		token.Mul, token.Div, token.EOF,
	}
	l := New(strings.NewReader(input))
	for i, k := range want {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("tests[%d] unexpected error: %v", i, err)
		}
		if tok.Kind != k {
			t.Fatalf("tests[%d] kind wrong, expected=%v, got=%v", i, k, tok.Kind)
		}
	}
}

func TestCommentSyntaxes(t *testing.T) {
	input := "a { a curly comment } b (* a paren comment *) c // a line comment\nd"
	l := New(strings.NewReader(input))
	var idents []string
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == token.EOF {
			break
		}
		idents = append(idents, tok.Literal)
	}
	want := []string{"a", "b", "c", "d"}
	if len(idents) != len(want) {
		t.Fatalf("expected %v, got %v", want, idents)
	}
	for i := range want {
		if idents[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, idents)
		}
	}
}

func TestUnterminatedStringIsFatal(t *testing.T) {
	l := New(strings.NewReader(`"never closed`))
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected an error for an unterminated string")
	}
}

func TestDotAfterIntNotFollowedByDigitIsFatal(t *testing.T) {
	l := New(strings.NewReader(`3.x`))
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected an error for a dot after an integer not followed by a digit")
	}
}

func TestUnterminatedCommentIsFatal(t *testing.T) {
	l := New(strings.NewReader(`{ never closed`))
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected an error for an unterminated comment")
	}
}

func TestLineAndColumnTracking(t *testing.T) {
	input := "a\nb  c"
	l := New(strings.NewReader(input))

	tok, _ := l.Next()
	if tok.Line != 1 || tok.Col != 1 {
		t.Fatalf("expected line 1 col 1, got line %d col %d", tok.Line, tok.Col)
	}
	tok, _ = l.Next()
	if tok.Line != 2 || tok.Col != 1 {
		t.Fatalf("expected line 2 col 1, got line %d col %d", tok.Line, tok.Col)
	}
	tok, _ = l.Next()
	if tok.Line != 2 || tok.Col != 4 {
		t.Fatalf("expected line 2 col 4, got line %d col %d", tok.Line, tok.Col)
	}
}
