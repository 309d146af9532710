package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType classifies lexer tokens.
type TokenType int

const (
	EOF TokenType = iota
	Ident
	Number
	Str
	Symbol
)

// Token is one lexeme of a textual query.
type Token struct {
	Type TokenType
	Text string
	Pos  int
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.Text, t.Pos)
}

// SyntaxError reports a malformed textual query.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
}

// symbols are matched longest first.
var symbols = []string{
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??",
	"<", ">", "!", "+", "-", "*", "/", "%", "?", ":", ".", ",", "(", ")", "{", "}", "[", "]", "=",
}

// Lex splits src into tokens. The result always ends with an EOF token.
func Lex(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '"' || r == '\'':
			s, n, err := scanString(src[i:], byte(r))
			if err != nil {
				return nil, &SyntaxError{Pos: i, Message: err.Error()}
			}
			toks = append(toks, Token{Type: Str, Text: s, Pos: i})
			i += n
		case r >= '0' && r <= '9':
			n := scanNumber(src[i:])
			toks = append(toks, Token{Type: Number, Text: src[i : i+n], Pos: i})
			i += n
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(src) {
				r, size := utf8.DecodeRuneInString(src[j:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				j += size
			}
			toks = append(toks, Token{Type: Ident, Text: src[i:j], Pos: i})
			i = j
		default:
			matched := false
			for _, sym := range symbols {
				if strings.HasPrefix(src[i:], sym) {
					toks = append(toks, Token{Type: Symbol, Text: sym, Pos: i})
					i += len(sym)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &SyntaxError{Pos: i, Message: fmt.Sprintf("unexpected character %q", r)}
			}
		}
	}
	return append(toks, Token{Type: EOF, Pos: len(src)}), nil
}

// scanString reads a quoted literal with C-style escapes and returns the
// unescaped text and the number of bytes consumed.
func scanString(src string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch c {
		case quote:
			return b.String(), i + 1, nil
		case '\\':
			i++
			if i >= len(src) {
				return "", 0, fmt.Errorf("unterminated escape")
			}
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(src[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func scanNumber(src string) int {
	i := 0
	digits := func() {
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
	}
	digits()
	if i+1 < len(src) && src[i] == '.' && src[i+1] >= '0' && src[i+1] <= '9' {
		i++
		digits()
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && src[j] >= '0' && src[j] <= '9' {
			i = j
			digits()
		}
	}
	// Host literal suffixes: 10L, 1.5m, 2.0d, 3f.
	if i < len(src) && strings.IndexByte("LlMmDdFf", src[i]) >= 0 {
		i++
	}
	return i
}
