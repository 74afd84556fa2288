package expr

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/syssam/grimoire"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
	tokOp
)

type token struct {
	kind  tokenKind
	text  string
	value any
	pos   int
}

// is reports if the token is the given punctuation, operator or keyword.
// Keywords compare case-insensitively.
func (t token) is(s string) bool {
	switch t.kind {
	case tokPunct, tokOp:
		return t.text == s
	case tokIdent:
		return strings.EqualFold(t.text, s)
	}
	return false
}

// lex splits the input into tokens. Comments, statement separators and
// quoted identifiers are rejected, they have no business in a condition.
func lex(input string) ([]token, error) {
	var (
		tokens []token
		rs     = []rune(input)
	)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i + 1
			for j < len(rs) && isIdentRune(rs[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(rs[i:j]), pos: i})
			i = j
		case unicode.IsDigit(r):
			tok, n, err := lexNumber(input, rs, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = n
		case r == '\'' || r == '"':
			tok, n, err := lexString(input, rs, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = n
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-',
			r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			return nil, grimoire.NewParseError(input, i, "unexpected comment")
		case strings.ContainsRune("(),.*?", r):
			tokens = append(tokens, token{kind: tokPunct, text: string(r), pos: i})
			i++
		case strings.ContainsRune("=!<>+-/%|&", r):
			op, width := string(r), 1
			if i+1 < len(rs) {
				if two := string(rs[i : i+2]); isTwoCharOp(two) {
					op, width = two, 2
				}
			}
			switch op {
			case "!", "|", "&":
				return nil, grimoire.NewParseError(input, i, "unexpected %q", op)
			case "<>":
				op = "!="
			case "||":
				op = OpOr
			case "&&":
				op = OpAnd
			}
			tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
			i += width
		default:
			return nil, grimoire.NewParseError(input, i, "unexpected %q", string(r))
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(rs)}), nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isTwoCharOp(s string) bool {
	switch s {
	case "!=", "<>", "<=", ">=", "||", "&&":
		return true
	}
	return false
}

func lexNumber(input string, rs []rune, i int) (token, int, error) {
	j, float := i, false
	for j < len(rs) && unicode.IsDigit(rs[j]) {
		j++
	}
	if j+1 < len(rs) && rs[j] == '.' && unicode.IsDigit(rs[j+1]) {
		float = true
		j++
		for j < len(rs) && unicode.IsDigit(rs[j]) {
			j++
		}
	}
	if j < len(rs) && (rs[j] == 'e' || rs[j] == 'E') {
		k := j + 1
		if k < len(rs) && (rs[k] == '+' || rs[k] == '-') {
			k++
		}
		if k < len(rs) && unicode.IsDigit(rs[k]) {
			float = true
			j = k
			for j < len(rs) && unicode.IsDigit(rs[j]) {
				j++
			}
		}
	}
	if j < len(rs) && isIdentRune(rs[j]) {
		return token{}, 0, grimoire.NewParseError(input, j, "unexpected %q in number", string(rs[j]))
	}
	text := string(rs[i:j])
	tok := token{kind: tokNumber, text: text, pos: i}
	if float {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, 0, grimoire.NewParseError(input, i, "invalid number %q", text)
		}
		tok.value = f
	} else {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token{}, 0, grimoire.NewParseError(input, i, "invalid number %q", text)
		}
		tok.value = n
	}
	return tok, j, nil
}

func lexString(input string, rs []rune, i int) (token, int, error) {
	var (
		quote = rs[i]
		b     strings.Builder
	)
	for j := i + 1; j < len(rs); j++ {
		switch r := rs[j]; {
		case r == '\\' && j+1 < len(rs):
			j++
			switch rs[j] {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '0':
				b.WriteRune(0)
			default:
				b.WriteRune(rs[j])
			}
		case r == quote && j+1 < len(rs) && rs[j+1] == quote:
			b.WriteRune(quote)
			j++
		case r == quote:
			return token{kind: tokString, text: string(rs[i : j+1]), value: b.String(), pos: i}, j + 1, nil
		default:
			b.WriteRune(r)
		}
	}
	return token{}, 0, grimoire.NewParseError(input, i, "unterminated string")
}
