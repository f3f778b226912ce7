package processor

import (
	"fmt"
	"go/constant"
	"go/token"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ArgType is the type an annotation argument is coerced to.
type ArgType int

const (
	TypeUint32 ArgType = iota
	TypeInt64
	TypeString
	TypeBool
)

func (t ArgType) String() string {
	switch t {
	case TypeUint32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("?%d?", int(t))
	}
}

// ArgSpec describes one argument accepted by a marker annotation. The argument
// may be supplied by name or, if Slot is not negative, by position.
type ArgSpec struct {
	Name string
	Slot int
	Type ArgType
}

// Schema is the set of arguments a marker annotation accepts. Every argument
// in a schema is required.
type Schema []ArgSpec

// ProxySchema is the schema of the InfoProxy marker: a single uint32 ID, which
// may also be given as the first positional value.
var ProxySchema = Schema{{Name: "ID", Slot: 0, Type: TypeUint32}}

// ArgValues holds coerced argument values by name. The dynamic type of each
// value corresponds to its ArgType: uint32, int64, string or bool.
type ArgValues map[string]interface{}

// Uint32 returns the named uint32 argument.
func (v ArgValues) Uint32(name string) uint32 {
	u, _ := v[name].(uint32)
	return u
}

// Int64 returns the named int64 argument.
func (v ArgValues) Int64(name string) int64 {
	i, _ := v[name].(int64)
	return i
}

// String returns the named string argument.
func (v ArgValues) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Bool returns the named bool argument.
func (v ArgValues) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (s Schema) lookup(name string) (ArgSpec, bool) {
	for _, spec := range s {
		if spec.Name == name {
			return spec, true
		}
	}
	return ArgSpec{}, false
}

func (s Schema) positionalSlots() int {
	n := 0
	for _, spec := range s {
		if spec.Slot >= n {
			n = spec.Slot + 1
		}
	}
	return n
}

// Validate resolves and coerces the arguments of a marker annotation on the
// named owner type. Each argument is looked up by name first and then by its
// positional slot. Every problem is reported: missing, unknown, duplicated and
// ill-typed arguments.
func (s Schema) Validate(owner string, args AnnotationArguments) Validation[ArgValues] {
	var diags []Diagnostic
	seen := map[string]bool{}
	for _, na := range args.Named {
		if _, ok := s.lookup(na.Name); !ok {
			diags = append(diags, newDiagnostic(CodeUnknownArgument, na.Value.Pos,
				"@%s on %s has no argument named %s", args.Marker, owner, na.Name))
			continue
		}
		if seen[na.Name] {
			diags = append(diags, newDiagnostic(CodeDuplicateArgument, na.Value.Pos,
				"@%s on %s gives argument %s more than once", args.Marker, owner, na.Name))
			continue
		}
		seen[na.Name] = true
	}
	for _, spec := range s {
		if seen[spec.Name] && spec.Slot >= 0 && spec.Slot < len(args.Positional) {
			diags = append(diags, newDiagnostic(CodeDuplicateArgument, args.Positional[spec.Slot].Pos,
				"@%s on %s gives argument %s both by name and by position", args.Marker, owner, spec.Name))
		}
	}
	if n := s.positionalSlots(); len(args.Positional) > n {
		diags = append(diags, newDiagnostic(CodeUnknownArgument, args.Positional[n].Pos,
			"@%s on %s accepts at most %d positional argument(s), got %d", args.Marker, owner, n, len(args.Positional)))
	}

	values := ArgValues{}
	for _, spec := range s {
		v, ok := args.Lookup(spec.Name, spec.Slot)
		if !ok {
			diags = append(diags, newDiagnostic(CodeMissingArgument, args.Pos,
				"@%s on %s is missing required argument %s", args.Marker, owner, spec.Name))
			continue
		}
		if v.Kind == ArgUnresolved {
			diags = append(diags, newDiagnostic(CodeUnresolvedArgument, v.Pos,
				"argument %s of @%s on %s: %s", spec.Name, args.Marker, owner, v.Problem))
			continue
		}
		val, err := coerce(spec.Type, v)
		if err != nil {
			diags = append(diags, newDiagnostic(CodeInvalidArgument, v.Pos,
				"argument %s of @%s on %s: %v", spec.Name, args.Marker, owner, err))
			continue
		}
		values[spec.Name] = val
	}
	if len(diags) > 0 {
		return failAll[ArgValues](diags)
	}
	return Succeed(values)
}

// ValidateProxyID extracts the ID argument of an InfoProxy marker.
func ValidateProxyID(in DeclInput) Validation[uint32] {
	return Map(ProxySchema.Validate(in.Name, in.Args), func(v ArgValues) uint32 {
		return v.Uint32("ID")
	})
}

func coerce(t ArgType, v ArgValue) (interface{}, error) {
	if v.Kind == ArgInvalid {
		return nil, fmt.Errorf("invalid value %s: %s", v.Expr, v.Problem)
	}
	switch t {
	case TypeUint32:
		i, err := integerValue(v, t)
		if err != nil {
			return nil, err
		}
		u, exact := constant.Uint64Val(i)
		if !exact || constant.Sign(i) < 0 || u > math.MaxUint32 {
			return nil, fmt.Errorf("cannot use %v as uint32 value: value overflows uint32", v)
		}
		return uint32(u), nil
	case TypeInt64:
		i, err := integerValue(v, t)
		if err != nil {
			return nil, err
		}
		n, exact := constant.Int64Val(i)
		if !exact {
			return nil, fmt.Errorf("cannot use %v as int64 value: value overflows int64", v)
		}
		return n, nil
	case TypeString:
		if v.Kind != ArgString {
			return nil, mismatch(v, t)
		}
		s, err := strconv.Unquote(v.Literal)
		if err != nil {
			return nil, fmt.Errorf("malformed string %s: %w", v.Literal, err)
		}
		return s, nil
	case TypeBool:
		if v.Kind != ArgBool {
			return nil, mismatch(v, t)
		}
		return v.Literal == "true", nil
	default:
		return nil, fmt.Errorf("unsupported argument type %v", t)
	}
}

// integerValue returns the exact integer denoted by v. Floating-point values
// are accepted when they have no fractional part, as in Go's constant
// conversion rules.
func integerValue(v ArgValue, t ArgType) (constant.Value, error) {
	switch v.Kind {
	case ArgInt:
		i, ok := new(big.Int).SetString(v.Literal, 10)
		if !ok {
			return nil, fmt.Errorf("malformed integer %s", v.Literal)
		}
		return constant.Make(i), nil
	case ArgFloat:
		lit := strings.TrimPrefix(v.Literal, "-")
		f := constant.MakeFromLiteral(lit, token.FLOAT, 0)
		if f.Kind() == constant.Unknown {
			return nil, fmt.Errorf("malformed number %s", v.Literal)
		}
		if lit != v.Literal {
			f = constant.UnaryOp(token.SUB, f, 0)
		}
		i := constant.ToInt(f)
		if i.Kind() != constant.Int {
			return nil, fmt.Errorf("cannot use %v as %v value: value is not an integer", v, t)
		}
		return i, nil
	default:
		return nil, mismatch(v, t)
	}
}

func mismatch(v ArgValue, t ArgType) error {
	return fmt.Errorf("cannot use %v as %v value", v, t)
}
