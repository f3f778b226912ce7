package processor

import (
	"fmt"
	"go/token"
)

// Access is the accessibility of a declared type.
type Access int

const (
	AccessUnexported Access = iota
	AccessExported
)

func (a Access) String() string {
	if a == AccessExported {
		return "exported"
	}
	return "unexported"
}

// DeclKind describes the shape of an annotated type declaration.
type DeclKind int

const (
	DeclStruct DeclKind = iota
	DeclAlias
	DeclInterface
	DeclFunc
	DeclMap
	DeclSlice
	DeclArray
	DeclPointer
	DeclChan
	DeclBasic
	DeclUnknown
)

func (k DeclKind) String() string {
	switch k {
	case DeclStruct:
		return "a struct type"
	case DeclAlias:
		return "a type alias"
	case DeclInterface:
		return "an interface type"
	case DeclFunc:
		return "a function type"
	case DeclMap:
		return "a map type"
	case DeclSlice:
		return "a slice type"
	case DeclArray:
		return "an array type"
	case DeclPointer:
		return "a pointer type"
	case DeclChan:
		return "a channel type"
	case DeclBasic:
		return "a basic type"
	default:
		return "a type of unknown kind"
	}
}

// ArgKind describes the value given for an annotation argument.
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgFloat
	ArgString
	ArgBool
	ArgNil
	ArgComposite
	// ArgUnresolved is a reference to a name that does not denote a
	// constant. Its Problem field says why.
	ArgUnresolved
	// ArgInvalid is a value that is not usable for any argument, such as a
	// negated string. Its Problem field says why.
	ArgInvalid
)

func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "integer"
	case ArgFloat:
		return "floating-point"
	case ArgString:
		return "string"
	case ArgBool:
		return "bool"
	case ArgNil:
		return "nil"
	case ArgComposite:
		return "composite"
	case ArgUnresolved:
		return "unresolved"
	default:
		return "invalid"
	}
}

// ArgValue is a single argument value as written in an annotation. Named
// constants are resolved, so the value is what the constant denotes.
type ArgValue struct {
	Kind ArgKind
	// Literal is the exact value: a decimal integer, a quoted string, true
	// or false. It is empty for nil, composite, unresolved and invalid
	// values.
	Literal string
	// Expr is the value as written in source, used in messages.
	Expr string
	// Type is the declared type of a typed constant, or empty for untyped
	// values.
	Type    string
	Problem string
	Pos     token.Position
}

func (v ArgValue) String() string {
	if v.Type != "" {
		return fmt.Sprintf("%s (constant of type %s)", v.Expr, v.Type)
	}
	return fmt.Sprintf("%s (untyped %s value)", v.Expr, v.Kind)
}

// NamedArg is an argument given with an explicit name, as in "{ID: 3}".
type NamedArg struct {
	Name  string
	Value ArgValue
}

// AnnotationArguments are the raw arguments of a marker annotation, exactly as
// they were supplied. Named arguments are kept in source order.
type AnnotationArguments struct {
	// Marker is the marker as written in source, such as "infoproxy.InfoProxy".
	Marker     string
	Named      []NamedArg
	Positional []ArgValue
	Pos        token.Position
}

// Lookup returns the argument with the given name. If no such named argument
// is present, the positional argument at the given slot is used instead. A
// negative slot disables the positional fallback.
func (a AnnotationArguments) Lookup(name string, slot int) (ArgValue, bool) {
	for _, na := range a.Named {
		if na.Name == name {
			return na.Value, true
		}
	}
	if slot >= 0 && slot < len(a.Positional) {
		return a.Positional[slot], true
	}
	return ArgValue{}, false
}

// DeclInput is everything the generator needs to know about one annotated
// type declaration. It contains no references into the syntax tree or type
// checker, so two inputs can be compared structurally: a declaration whose
// input is unchanged yields the same output.
type DeclInput struct {
	Name      string
	Namespace string
	Package   string
	Access    Access
	Arity     int
	Kind      DeclKind
	Args      AnnotationArguments
	// Pos is the position of the declared type's name. Positions of
	// diagnostics about the declaration are relative to it when cached.
	Pos token.Position
}

// QualifiedName returns the declaration's package path and name.
func (in DeclInput) QualifiedName() string {
	return in.Namespace + "." + in.Name
}

// relativeTo returns a copy of in whose positions are relative to anchor.
func (in DeclInput) relativeTo(anchor token.Position) DeclInput {
	out := in
	out.Pos = relativePosition(in.Pos, anchor)
	out.Args.Pos = relativePosition(in.Args.Pos, anchor)
	if len(in.Args.Named) > 0 {
		out.Args.Named = make([]NamedArg, len(in.Args.Named))
		for i, na := range in.Args.Named {
			na.Value.Pos = relativePosition(na.Value.Pos, anchor)
			out.Args.Named[i] = na
		}
	}
	if len(in.Args.Positional) > 0 {
		out.Args.Positional = make([]ArgValue, len(in.Args.Positional))
		for i, v := range in.Args.Positional {
			v.Pos = relativePosition(v.Pos, anchor)
			out.Args.Positional[i] = v
		}
	}
	return out
}

// relativePosition expresses pos as an offset from anchor. The filename is
// dropped, lines and offsets become deltas, and the column is kept as is.
func relativePosition(pos, anchor token.Position) token.Position {
	return token.Position{
		Line:   pos.Line - anchor.Line,
		Column: pos.Column,
		Offset: pos.Offset - anchor.Offset,
	}
}

// rebasePosition is the inverse of relativePosition.
func rebasePosition(rel, anchor token.Position) token.Position {
	return token.Position{
		Filename: anchor.Filename,
		Line:     rel.Line + anchor.Line,
		Column:   rel.Column,
		Offset:   rel.Offset + anchor.Offset,
	}
}

// TypeDeclarationInfo identifies an eligible info proxy type.
type TypeDeclarationInfo struct {
	Name      string
	Namespace string
	Package   string
	Access    Access
	Arity     int
}

// ValidatedProxyInfo is an info proxy type together with its identifier. It is
// only produced when both the declaration and its arguments are valid.
type ValidatedProxyInfo struct {
	Type TypeDeclarationInfo
	ID   uint32
}
