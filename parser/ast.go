package parser

import (
	"fmt"
	"go/constant"
	"text/scanner"
)

// ExpressionNode is a node in the AST for annotation values: literals,
// references to named constants, signed values, and aggregates.
type ExpressionNode interface {
	Pos() scanner.Position
}

// LiteralNode is an expression node that represents a literal value, such as a
// number, boolean, or string.
type LiteralNode struct {
	Val constant.Value // nil if literal nil
	pos scanner.Position
}

func (n LiteralNode) Pos() scanner.Position {
	return n.pos
}

// RefNode is an expression node that is a reference to an identifier, which is
// expected to resolve to a constant.
type RefNode struct {
	Ident Identifier
}

func (n RefNode) Pos() scanner.Position {
	return n.Ident.Pos
}

// PrefixOperatorNode is an expression node that represents a sign applied to
// a value: unary minus (-) or unary plus (+).
type PrefixOperatorNode struct {
	Operator string
	Value    ExpressionNode
	pos      scanner.Position
}

func (n PrefixOperatorNode) Pos() scanner.Position {
	return n.pos
}

// AggregateNode is an expression node that represents a brace-enclosed list of
// elements. Elements may be keyed (struct-like) or not (positional).
type AggregateNode struct {
	Contents []Element
	pos      scanner.Position
}

func (n AggregateNode) Pos() scanner.Position {
	return n.pos
}

// Identifier is an AST node that refers to an identifier, possibly qualified
// with a package name/alias.
type Identifier struct {
	PackageAlias string
	Name         string
	Pos          scanner.Position
}

func (id Identifier) String() string {
	if id.PackageAlias == "" {
		return id.Name
	}
	return fmt.Sprintf("%s.%s", id.PackageAlias, id.Name)
}

// Element is an AST node for a component of an aggregate value. Keyed
// elements name the field they define; positional ones do not.
type Element struct {
	Key    Identifier
	HasKey bool
	Value  ExpressionNode
}

func (e Element) Pos() scanner.Position {
	if e.HasKey {
		return e.Key.Pos
	}
	return e.Value.Pos()
}

// Annotation is a fully parsed annotation. It identifies the annotation type
// and has an optional value. A value in parentheses is a single positional
// value. A value in braces is an aggregate whose elements may be keyed.
type Annotation struct {
	Type  Identifier
	Value ExpressionNode
	Pos   scanner.Position
}
