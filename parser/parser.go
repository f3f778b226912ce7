// Package parser parses annotations that appear in Go doc comments.
//
// An annotation starts with '@' followed by the (optionally package-qualified)
// name of the annotation type. It may be followed by a single value in
// parentheses or by an aggregate in braces:
//
//	@pkg.NoValue
//	@pkg.Positional(123)
//	@pkg.Keyed{ID: 0x10, Name: "foo"}
//	@pkg.Unkeyed{123, "foo"}
//
// Values may be literals (numbers, runes, strings, true, false, nil),
// references to constants (optionally package-qualified), signed values, or
// nested aggregates. Each annotation must end at the end of a line, though
// newlines inside parentheses and braces are ignored.
package parser

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"io"
	"text/scanner"
)

// ParseError describes a syntax error in annotation text.
type ParseError struct {
	err error
	pos scanner.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.pos.Line, e.pos.Column, e.err)
}

// Underlying returns the underlying error, without position information.
func (e *ParseError) Underlying() error {
	return e.err
}

// Pos returns the location of the error in the parsed input.
func (e *ParseError) Pos() scanner.Position {
	return e.pos
}

// ParseAnnotations parses all annotations in the given input. The filename is
// only used to populate positions.
func ParseAnnotations(filename string, r io.Reader) ([]Annotation, *ParseError) {
	p := &annoParser{lex: newLexer(filename, r)}
	annos, err := p.parse()
	if err != nil {
		return nil, err
	}
	return annos, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokEOL
	tokIdent
	tokInt
	tokFloat
	tokChar
	tokString
	tokPunct
)

type lexToken struct {
	kind tokenKind
	r    rune
	text string
	pos  scanner.Position
}

func (t lexToken) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokEOL:
		return "end-of-line"
	case tokIdent:
		return fmt.Sprintf("identifier %q", t.text)
	case tokInt:
		return "int literal"
	case tokFloat:
		return "float literal"
	case tokChar:
		return "rune literal"
	case tokString:
		return "string literal"
	default:
		return fmt.Sprintf("%q", t.r)
	}
}

type annoLex struct {
	s      scanner.Scanner
	err    error
	peeked []lexToken
}

func newLexer(filename string, r io.Reader) *annoLex {
	var l annoLex
	l.s.Init(r)
	l.s.Filename = filename
	l.s.Mode = l.s.Mode &^ (scanner.ScanComments | scanner.SkipComments)
	l.s.Whitespace = 0
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = errors.New(msg)
		}
	}
	return &l
}

func (l *annoLex) peek() lexToken {
	if len(l.peeked) == 0 {
		l.peeked = append(l.peeked, l.scan())
	}
	return l.peeked[0]
}

func (l *annoLex) next() lexToken {
	if len(l.peeked) > 0 {
		t := l.peeked[0]
		l.peeked = l.peeked[1:]
		return t
	}
	return l.scan()
}

func (l *annoLex) scan() lexToken {
	for {
		// we handle whitespace ourselves so that we know the *start* position
		// of each token
		pos := l.s.Pos()
		r := l.s.Scan()
		tok := l.s.TokenText()
		switch r {
		case ' ', '\t', '\r':
			continue
		case scanner.EOF:
			return lexToken{kind: tokEOF, pos: pos}
		case '\n':
			return lexToken{kind: tokEOL, r: r, pos: pos}
		case scanner.Ident:
			return lexToken{kind: tokIdent, text: tok, pos: pos}
		case scanner.Int:
			return lexToken{kind: tokInt, text: tok, pos: pos}
		case scanner.Float:
			return lexToken{kind: tokFloat, text: tok, pos: pos}
		case scanner.Char:
			return lexToken{kind: tokChar, text: tok, pos: pos}
		case scanner.String, scanner.RawString:
			return lexToken{kind: tokString, text: tok, pos: pos}
		default:
			return lexToken{kind: tokPunct, r: r, text: tok, pos: pos}
		}
	}
}

type annoParser struct {
	lex *annoLex
}

func (p *annoParser) errorf(pos scanner.Position, format string, args ...interface{}) *ParseError {
	return &ParseError{err: fmt.Errorf(format, args...), pos: pos}
}

// check reports any error recorded by the underlying scanner.
func (p *annoParser) check(t lexToken) *ParseError {
	if p.lex.err != nil {
		return &ParseError{err: p.lex.err, pos: t.pos}
	}
	return nil
}

func (p *annoParser) next() (lexToken, *ParseError) {
	t := p.lex.next()
	return t, p.check(t)
}

func (p *annoParser) skipEOLs() {
	for p.lex.peek().kind == tokEOL {
		p.lex.next()
	}
}

func (p *annoParser) expect(r rune, what string) (lexToken, *ParseError) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tokPunct || t.r != r {
		return t, p.errorf(t.pos, "syntax error: unexpected %v, expecting %s", t, what)
	}
	return t, nil
}

func (p *annoParser) parse() ([]Annotation, *ParseError) {
	var annos []Annotation
	for {
		p.skipEOLs()
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokEOF {
			return annos, nil
		}
		if t.kind != tokPunct || t.r != '@' {
			return nil, p.errorf(t.pos, "syntax error: unexpected %v, expecting '@'", t)
		}
		anno, err := p.parseAnnotation(t.pos)
		if err != nil {
			return nil, err
		}
		annos = append(annos, anno)

		switch after := p.lex.peek(); {
		case after.kind == tokEOL, after.kind == tokEOF:
		case after.kind == tokPunct && after.r == '@':
		default:
			return nil, p.errorf(after.pos, "syntax error: unexpected %v, expecting end-of-line", after)
		}
	}
}

func (p *annoParser) parseAnnotation(pos scanner.Position) (Annotation, *ParseError) {
	id, err := p.parseIdentifier()
	if err != nil {
		return Annotation{}, err
	}
	anno := Annotation{Type: id, Pos: pos}
	switch t := p.lex.peek(); {
	case t.kind == tokPunct && t.r == '(':
		p.lex.next()
		p.skipEOLs()
		anno.Value, err = p.parseValue()
		if err != nil {
			return Annotation{}, err
		}
		p.skipEOLs()
		if _, err := p.expect(')', "')'"); err != nil {
			return Annotation{}, err
		}
	case t.kind == tokPunct && t.r == '{':
		anno.Value, err = p.parseAggregate()
		if err != nil {
			return Annotation{}, err
		}
	}
	return anno, nil
}

func (p *annoParser) parseIdentifier() (Identifier, *ParseError) {
	t, err := p.next()
	if err != nil {
		return Identifier{}, err
	}
	if t.kind != tokIdent {
		return Identifier{}, p.errorf(t.pos, "syntax error: unexpected %v, expecting identifier", t)
	}
	id := Identifier{Name: t.text, Pos: t.pos}
	if dot := p.lex.peek(); dot.kind == tokPunct && dot.r == '.' {
		p.lex.next()
		n, err := p.next()
		if err != nil {
			return Identifier{}, err
		}
		if n.kind != tokIdent {
			return Identifier{}, p.errorf(n.pos, "syntax error: unexpected %v, expecting identifier", n)
		}
		id.PackageAlias = id.Name
		id.Name = n.text
	}
	return id, nil
}

func (p *annoParser) parseValue() (ExpressionNode, *ParseError) {
	t := p.lex.peek()
	if err := p.check(t); err != nil {
		return nil, err
	}
	switch t.kind {
	case tokInt:
		p.lex.next()
		return LiteralNode{Val: constant.MakeFromLiteral(t.text, token.INT, 0), pos: t.pos}, nil
	case tokFloat:
		p.lex.next()
		return LiteralNode{Val: constant.MakeFromLiteral(t.text, token.FLOAT, 0), pos: t.pos}, nil
	case tokChar:
		p.lex.next()
		return LiteralNode{Val: constant.MakeFromLiteral(t.text, token.CHAR, 0), pos: t.pos}, nil
	case tokString:
		p.lex.next()
		return LiteralNode{Val: constant.MakeFromLiteral(t.text, token.STRING, 0), pos: t.pos}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.lex.next()
			return LiteralNode{Val: constant.MakeBool(t.text == "true"), pos: t.pos}, nil
		case "nil":
			p.lex.next()
			return LiteralNode{pos: t.pos}, nil
		}
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return RefNode{Ident: id}, nil
	case tokPunct:
		switch t.r {
		case '-', '+':
			p.lex.next()
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return PrefixOperatorNode{Operator: string(t.r), Value: v, pos: t.pos}, nil
		case '{':
			return p.parseAggregate()
		}
	}
	return nil, p.errorf(t.pos, "syntax error: unexpected %v, expecting value", t)
}

func (p *annoParser) parseAggregate() (ExpressionNode, *ParseError) {
	open, err := p.expect('{', "'{'")
	if err != nil {
		return nil, err
	}
	agg := AggregateNode{pos: open.pos}
	for {
		p.skipEOLs()
		if t := p.lex.peek(); t.kind == tokPunct && t.r == '}' {
			p.lex.next()
			return agg, nil
		}
		el, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		agg.Contents = append(agg.Contents, el)

		p.skipEOLs()
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPunct && t.r == '}' {
			return agg, nil
		}
		if t.kind != tokPunct || t.r != ',' {
			return nil, p.errorf(t.pos, "syntax error: unexpected %v, expecting ',' or '}'", t)
		}
	}
}

func (p *annoParser) parseElement() (Element, *ParseError) {
	v, err := p.parseValue()
	if err != nil {
		return Element{}, err
	}
	if t := p.lex.peek(); t.kind != tokPunct || t.r != ':' {
		return Element{Value: v}, nil
	}
	colon := p.lex.next()
	ref, ok := v.(RefNode)
	if !ok || ref.Ident.PackageAlias != "" {
		return Element{}, p.errorf(colon.pos, "syntax error: key must be an unqualified field name")
	}
	p.skipEOLs()
	val, err := p.parseValue()
	if err != nil {
		return Element{}, err
	}
	return Element{Key: ref.Ident, HasKey: true, Value: val}, nil
}
