// Path lexer: a small state machine over bytes producing the NUM, STR, END
// and ANY tokens of base spec §6/§9, preserving source byte offsets so the
// path engine can fast-path common-prefix matches against an existing
// ROUTE node (Design Notes §9).
//
// Grounded on cuelang.org/go/internal/updater/pathiter.go's path/selector
// walk (a different repo in the retrieval pack, used here only as an idea
// donor for "a path is a walk over named/indexed selectors", never copied
// file-for-file) and on base spec §6's literal grammar:
//
//	path := head { '.' name | '[' index ']' | '["' quoted '"]' }*
//	head := name | '[' index ']'
package update

import (
	"strconv"

	"github.com/fiberdb/core/internal/errs"
)

// TokenKind classifies one path token.
type TokenKind byte

const (
	TokEnd TokenKind = iota
	TokNum
	TokStr
	TokAny // wildcard '*'; lexically valid, semantically rejected (base spec §4.2/§6)
)

// Token is one lexed path component.
type Token struct {
	Kind   TokenKind
	Num    int
	Str    string
	Offset int // byte offset into the path string where this token began
}

// pathLexer walks a path string byte by byte, yielding tokens.
type pathLexer struct {
	src string
	pos int
	// first reports whether the next token lexed is the head token, which
	// may be a bare name with no leading '.'.
	first bool
}

func newPathLexer(src string) *pathLexer {
	return &pathLexer{src: src, first: true}
}

// Next returns the next token in the path, or TokEnd once exhausted.
func (l *pathLexer) Next() (Token, error) {
	if l.pos >= len(l.src) {
		return Token{Kind: TokEnd, Offset: l.pos}, nil
	}

	start := l.pos
	first := l.first
	l.first = false

	c := l.src[l.pos]
	switch {
	case c == '.':
		if first {
			return Token{}, errs.New(errs.IllegalParams, "path: unexpected '.' at start of path")
		}
		l.pos++
		return l.lexName(start)

	case c == '[':
		l.pos++
		return l.lexBracket(start)

	default:
		if !first {
			return Token{}, errs.New(errs.IllegalParams, "path: expected '.' or '[' at offset "+strconv.Itoa(start))
		}
		return l.lexName(start)
	}
}

func (l *pathLexer) lexName(start int) (Token, error) {
	begin := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '.' && l.src[l.pos] != '[' {
		l.pos++
	}
	if l.pos == begin {
		return Token{}, errs.New(errs.IllegalParams, "path: empty field name at offset "+strconv.Itoa(start))
	}
	return Token{Kind: TokStr, Str: l.src[begin:l.pos], Offset: start}, nil
}

func (l *pathLexer) lexBracket(start int) (Token, error) {
	if l.pos >= len(l.src) {
		return Token{}, errs.New(errs.IllegalParams, "path: unterminated '[' at offset "+strconv.Itoa(start))
	}

	if l.src[l.pos] == '*' {
		l.pos++
		if l.pos >= len(l.src) || l.src[l.pos] != ']' {
			return Token{}, errs.New(errs.IllegalParams, "path: unterminated '[*' at offset "+strconv.Itoa(start))
		}
		l.pos++
		return Token{Kind: TokAny, Offset: start}, nil
	}

	if l.src[l.pos] == '"' {
		l.pos++
		begin := l.pos
		for l.pos < len(l.src) && l.src[l.pos] != '"' {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return Token{}, errs.New(errs.IllegalParams, "path: unterminated quoted selector at offset "+strconv.Itoa(start))
		}
		str := l.src[begin:l.pos]
		l.pos++ // closing quote
		if l.pos >= len(l.src) || l.src[l.pos] != ']' {
			return Token{}, errs.New(errs.IllegalParams, "path: expected ']' at offset "+strconv.Itoa(start))
		}
		l.pos++
		return Token{Kind: TokStr, Str: str, Offset: start}, nil
	}

	begin := l.pos
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.pos == begin || l.pos >= len(l.src) || l.src[l.pos] != ']' {
		return Token{}, errs.New(errs.IllegalParams, "path: invalid index selector at offset "+strconv.Itoa(start))
	}
	n, err := strconv.Atoi(l.src[begin:l.pos])
	if err != nil {
		return Token{}, errs.Wrap(errs.IllegalParams, "path: invalid index selector", err)
	}
	l.pos++
	return Token{Kind: TokNum, Num: n, Offset: start}, nil
}

// tokenizePath lexes a full path into a token slice, used when a path must
// be re-walked more than once (branch resolution, common-prefix matching).
func tokenizePath(path string) ([]Token, error) {
	lx := newPathLexer(path)
	var toks []Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokEnd {
			return toks, nil
		}
		if t.Kind == TokAny {
			return nil, errs.New(errs.UnsupportedUpdate, "path: wildcard '[*]' is not supported")
		}
		toks = append(toks, t)
	}
}

// commonPrefixLen returns the length of the shared prefix of a and b, token
// by token.
func commonPrefixLen(a, b []Token) int {
	n := 0
	for n < len(a) && n < len(b) && tokensEqual(a[n], b[n]) {
		n++
	}
	return n
}

func tokensEqual(a, b Token) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TokNum:
		return a.Num == b.Num
	case TokStr:
		return a.Str == b.Str
	default:
		return true
	}
}
