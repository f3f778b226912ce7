package processor

import (
	"fmt"
	"go/token"
)

// Severity indicates how serious a diagnostic is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// Code identifies the kind of problem a diagnostic describes.
type Code uint16

const (
	// CodeNotAStruct is reported when the annotated declaration is not a
	// struct type.
	CodeNotAStruct Code = 1
	// CodeAliasDeclaration is reported when the annotated declaration is a
	// type alias, which cannot have methods of its own.
	CodeAliasDeclaration Code = 2
	// CodeGenericDeclaration is reported when the annotated declaration has
	// type parameters.
	CodeGenericDeclaration Code = 3

	// CodeMissingArgument is reported when the marker annotation supplies
	// no value for a required argument, neither by name nor by position.
	CodeMissingArgument Code = 10
	// CodeInvalidArgument is reported when an argument's value cannot be
	// coerced to the argument's type.
	CodeInvalidArgument Code = 11
	// CodeUnknownArgument is reported for arguments the marker does not
	// define, including surplus positional values.
	CodeUnknownArgument Code = 12
	// CodeUnresolvedArgument is reported when an argument refers to a name
	// that is not a constant.
	CodeUnresolvedArgument Code = 13
	// CodeDuplicateArgument is reported when the same named argument is
	// given more than once.
	CodeDuplicateArgument Code = 14

	// CodeMalformedAnnotation is reported when the annotations in a doc
	// comment cannot be parsed.
	CodeMalformedAnnotation Code = 20
)

func (c Code) String() string {
	return fmt.Sprintf("IP%04d", uint16(c))
}

// Diagnostic describes a problem with an annotated declaration. Diagnostics
// are values: they are accumulated and reported, never used to abort a pass.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      token.Position
}

// Error implements the error interface. It includes position information in
// the returned message.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Severity, d.Code, d.Message)
}

func newDiagnostic(code Code, pos token.Position, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
	}
}
