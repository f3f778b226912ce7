package processor

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"math/big"
	"path"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"
	"unicode/utf8"

	"github.com/jhump/infoproxy/parser"
)

// Package is a parsed and type-checked Go package. All annotated types in a
// package are processed together in a single pass.
type Package struct {
	// Path is the package's import path.
	Path string
	// Name is the package's name, as used in its package clause.
	Name string
	// Dir is the directory that contains the package's source files. Output
	// files are written there.
	Dir   string
	Fset  *token.FileSet
	Files []*ast.File
	// Types and Info are the results of type-checking the package. They are
	// used to classify declarations and to resolve named constants. If
	// type-checking failed, they may be incomplete.
	Types *types.Package
	Info  *types.Info
	// ImportNames maps the import paths of the package's dependencies to
	// their package names. Paths not present fall back to the imports
	// recorded in Types and then to the last element of the path.
	ImportNames map[string]string
}

// IsAnnotatedTypeSpec reports whether the given type declaration has
// annotations in its doc comment. It is a purely syntactic check: it does not
// parse the annotations or look at what they refer to.
func IsAnnotatedTypeSpec(decl *ast.GenDecl, spec *ast.TypeSpec) bool {
	_, ok := annotationDoc(decl, spec)
	return ok
}

func annotationDoc(decl *ast.GenDecl, spec *ast.TypeSpec) (*ast.CommentGroup, bool) {
	doc := spec.Doc
	if doc == nil && !decl.Lparen.IsValid() {
		// for an ungrouped declaration, the parser attaches the doc comment
		// to the enclosing GenDecl
		doc = decl.Doc
	}
	return doc, hasAnnotations(doc)
}

func hasAnnotations(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		for _, line := range strings.Split(commentText(c.Text), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "@") {
				return true
			}
		}
	}
	return false
}

// commentText strips comment markers.
func commentText(txt string) string {
	if strings.HasPrefix(txt, "/*") {
		return strings.TrimSuffix(txt[2:], "*/")
	}
	return strings.TrimPrefix(txt, "//")
}

// candidate is a type declaration that passed the syntactic predicate.
type candidate struct {
	file *ast.File
	decl *ast.GenDecl
	spec *ast.TypeSpec
	doc  *ast.CommentGroup
}

// discover returns the annotated type declarations of the package, in file
// order and then source order.
func (pkg *Package) discover() []candidate {
	var cands []candidate
	for _, file := range pkg.Files {
		for _, d := range file.Decls {
			gen, ok := d.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, s := range gen.Specs {
				spec := s.(*ast.TypeSpec)
				if doc, ok := annotationDoc(gen, spec); ok {
					cands = append(cands, candidate{file: file, decl: gen, spec: spec, doc: doc})
				}
			}
		}
	}
	return cands
}

// resolve parses the annotations on the candidate and looks for the marker,
// given as a fully-qualified name. If the marker is present, the declaration's
// input is returned. Each annotation is parsed on its own: one that cannot be
// parsed produces a diagnostic only if it names the marker, and other
// annotations and prose in the comment are ignored.
func (pkg *Package) resolve(c candidate, marker string) (DeclInput, bool, []Diagnostic) {
	filename := pkg.Fset.Position(c.file.Package).Filename
	for _, chunk := range annotationChunks(annotationLines(pkg.Fset, c.doc)) {
		buf, adjuster := chunkSource(chunk)
		annos, err := parser.ParseAnnotations(filename, buf)
		if err != nil {
			id, ok := annotationName(chunk[0].text)
			if !ok || pkg.qualifiedName(c.file, id) != marker {
				continue
			}
			d := newDiagnostic(CodeMalformedAnnotation, adjuster.adjustPosition(err.Pos()),
				"malformed annotation on %s: %v", c.spec.Name.Name, err.Underlying())
			return DeclInput{}, false, []Diagnostic{d}
		}
		for _, a := range annos {
			if pkg.qualifiedName(c.file, a.Type) == marker {
				return pkg.declInput(c, a, adjuster), true, nil
			}
		}
	}
	return DeclInput{}, false, nil
}

func (pkg *Package) declInput(c candidate, a parser.Annotation, adjuster posAdjuster) DeclInput {
	name := c.spec.Name.Name
	access := AccessUnexported
	if ast.IsExported(name) {
		access = AccessExported
	}
	return DeclInput{
		Name:      name,
		Namespace: pkg.Path,
		Package:   pkg.Name,
		Access:    access,
		Arity:     c.spec.TypeParams.NumFields(),
		Kind:      pkg.declKind(c.spec),
		Args:      pkg.arguments(c.file, a, adjuster),
		Pos:       pkg.Fset.Position(c.spec.Name.Pos()),
	}
}

func (pkg *Package) declKind(spec *ast.TypeSpec) DeclKind {
	if spec.Assign.IsValid() {
		return DeclAlias
	}
	if pkg.Info != nil {
		if obj, ok := pkg.Info.Defs[spec.Name].(*types.TypeName); ok && obj.Type() != nil {
			if k := typeKind(obj.Type().Underlying()); k != DeclUnknown {
				return k
			}
		}
	}
	return syntaxKind(spec.Type)
}

func typeKind(t types.Type) DeclKind {
	switch t := t.(type) {
	case *types.Struct:
		return DeclStruct
	case *types.Interface:
		return DeclInterface
	case *types.Signature:
		return DeclFunc
	case *types.Map:
		return DeclMap
	case *types.Slice:
		return DeclSlice
	case *types.Array:
		return DeclArray
	case *types.Pointer:
		return DeclPointer
	case *types.Chan:
		return DeclChan
	case *types.Basic:
		if t.Kind() == types.Invalid {
			return DeclUnknown
		}
		return DeclBasic
	default:
		return DeclUnknown
	}
}

func syntaxKind(expr ast.Expr) DeclKind {
	switch e := expr.(type) {
	case *ast.StructType:
		return DeclStruct
	case *ast.InterfaceType:
		return DeclInterface
	case *ast.FuncType:
		return DeclFunc
	case *ast.MapType:
		return DeclMap
	case *ast.ArrayType:
		if e.Len == nil {
			return DeclSlice
		}
		return DeclArray
	case *ast.StarExpr:
		return DeclPointer
	case *ast.ChanType:
		return DeclChan
	case *ast.ParenExpr:
		return syntaxKind(e.X)
	default:
		return DeclUnknown
	}
}

func (pkg *Package) arguments(file *ast.File, a parser.Annotation, adjuster posAdjuster) AnnotationArguments {
	args := AnnotationArguments{
		Marker: a.Type.String(),
		Pos:    adjuster.adjustPosition(a.Pos),
	}
	switch v := a.Value.(type) {
	case nil:
	case parser.AggregateNode:
		for _, el := range v.Contents {
			val := pkg.argValue(file, el.Value, adjuster)
			if el.HasKey {
				args.Named = append(args.Named, NamedArg{Name: el.Key.Name, Value: val})
			} else {
				args.Positional = append(args.Positional, val)
			}
		}
	default:
		args.Positional = []ArgValue{pkg.argValue(file, v, adjuster)}
	}
	return args
}

func (pkg *Package) argValue(file *ast.File, expr parser.ExpressionNode, adjuster posAdjuster) ArgValue {
	av := ArgValue{Expr: exprString(expr), Pos: adjuster.adjustPosition(expr.Pos())}
	switch e := expr.(type) {
	case parser.LiteralNode:
		if e.Val == nil {
			av.Kind = ArgNil
			return av
		}
		setConstant(&av, e.Val)
	case parser.RefNode:
		c, problem := pkg.lookupConstant(file, e.Ident)
		if c == nil {
			av.Kind = ArgUnresolved
			av.Problem = problem
			return av
		}
		setConstant(&av, c.Val())
		if b, ok := c.Type().(*types.Basic); !ok || b.Info()&types.IsUntyped == 0 {
			av.Type = types.TypeString(c.Type(), types.RelativeTo(pkg.Types))
		}
	case parser.PrefixOperatorNode:
		inner := pkg.argValue(file, e.Value, adjuster)
		inner.Expr, inner.Pos = av.Expr, av.Pos
		switch inner.Kind {
		case ArgInt:
			if e.Operator == "-" {
				if i, ok := new(big.Int).SetString(inner.Literal, 10); ok {
					inner.Literal = i.Neg(i).String()
				}
			}
		case ArgFloat:
			if e.Operator == "-" {
				if strings.HasPrefix(inner.Literal, "-") {
					inner.Literal = inner.Literal[1:]
				} else {
					inner.Literal = "-" + inner.Literal
				}
			}
		case ArgUnresolved, ArgInvalid:
		default:
			inner.Problem = fmt.Sprintf("operator %s not defined on %s value", e.Operator, inner.Kind)
			inner.Kind = ArgInvalid
			inner.Literal = ""
		}
		return inner
	case parser.AggregateNode:
		av.Kind = ArgComposite
	}
	return av
}

func setConstant(av *ArgValue, val constant.Value) {
	switch val.Kind() {
	case constant.Int:
		av.Kind = ArgInt
		av.Literal = val.ExactString()
	case constant.Float:
		if i := constant.ToInt(val); i.Kind() == constant.Int {
			av.Kind = ArgInt
			av.Literal = i.ExactString()
		} else {
			av.Kind = ArgFloat
			av.Literal = val.String()
		}
	case constant.String:
		av.Kind = ArgString
		av.Literal = val.ExactString()
	case constant.Bool:
		av.Kind = ArgBool
		av.Literal = val.String()
	default:
		av.Kind = ArgInvalid
		av.Problem = fmt.Sprintf("unsupported constant %s", val)
	}
}

func exprString(expr parser.ExpressionNode) string {
	switch e := expr.(type) {
	case parser.LiteralNode:
		if e.Val == nil {
			return "nil"
		}
		return e.Val.ExactString()
	case parser.RefNode:
		return e.Ident.String()
	case parser.PrefixOperatorNode:
		return e.Operator + exprString(e.Value)
	case parser.AggregateNode:
		return "{...}"
	default:
		return fmt.Sprintf("%v", expr)
	}
}

// lookupConstant resolves a reference to a named constant. If it cannot be
// resolved, the returned string says why.
func (pkg *Package) lookupConstant(file *ast.File, id parser.Identifier) (*types.Const, string) {
	var obj types.Object
	switch {
	case id.PackageAlias == "":
		if pkg.Types != nil {
			obj = pkg.Types.Scope().Lookup(id.Name)
		}
	default:
		if p, ok := pkg.importPath(file, id.PackageAlias); ok {
			imp := pkg.importedPackage(p)
			if imp == nil {
				return nil, fmt.Sprintf("package %q was not loaded", p)
			}
			obj = imp.Scope().Lookup(id.Name)
			if obj != nil && !obj.Exported() {
				obj = nil
			}
		} else if id.PackageAlias == pkg.Name && pkg.Types != nil {
			obj = pkg.Types.Scope().Lookup(id.Name)
		} else {
			return nil, fmt.Sprintf("undefined: %s (package %s is not imported)", id, id.PackageAlias)
		}
	}
	if obj == nil {
		return nil, fmt.Sprintf("undefined: %s", id)
	}
	c, ok := obj.(*types.Const)
	if !ok {
		return nil, fmt.Sprintf("%s is not a constant", id)
	}
	return c, ""
}

// qualifiedName returns the fully-qualified name that the given identifier
// refers to in the given file, or the empty string if it does not resolve.
func (pkg *Package) qualifiedName(file *ast.File, id parser.Identifier) string {
	if id.PackageAlias == "" {
		if pkg.Types != nil && pkg.Types.Scope().Lookup(id.Name) != nil {
			return pkg.Path + "." + id.Name
		}
		if p, ok := pkg.dotImport(file, id.Name); ok {
			return p + "." + id.Name
		}
		return pkg.Path + "." + id.Name
	}
	if p, ok := pkg.importPath(file, id.PackageAlias); ok {
		return p + "." + id.Name
	}
	if id.PackageAlias == pkg.Name {
		return pkg.Path + "." + id.Name
	}
	return ""
}

// importPath finds the import in file that is referred to by the given
// package name. Blank imports are matched by their package name, so a marker
// package can be imported solely for its annotations.
func (pkg *Package) importPath(file *ast.File, alias string) (string, bool) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		switch name {
		case ".":
			continue
		case "", "_":
			name = pkg.importName(p)
		}
		if name == alias {
			return p, true
		}
	}
	return "", false
}

// dotImport finds the dot import in file that provides the given name. If
// none of them is known to declare it, the first dot import is used.
func (pkg *Package) dotImport(file *ast.File, name string) (string, bool) {
	first := ""
	for _, imp := range file.Imports {
		if imp.Name == nil || imp.Name.Name != "." {
			continue
		}
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if ip := pkg.importedPackage(p); ip != nil && ip.Scope().Lookup(name) != nil {
			return p, true
		}
		if first == "" {
			first = p
		}
	}
	return first, first != ""
}

func (pkg *Package) importedPackage(p string) *types.Package {
	if pkg.Types == nil {
		return nil
	}
	for _, ip := range pkg.Types.Imports() {
		if ip.Path() == p {
			return ip
		}
	}
	return nil
}

func (pkg *Package) importName(p string) string {
	if name, ok := pkg.ImportNames[p]; ok {
		return name
	}
	if ip := pkg.importedPackage(p); ip != nil {
		return ip.Name()
	}
	return defaultImportName(p)
}

// defaultImportName guesses a package's name from its import path: the last
// path element, skipping a major version suffix.
func defaultImportName(p string) string {
	base := path.Base(p)
	if isMajorVersion(base) {
		if dir := path.Dir(p); dir != "." {
			base = path.Base(dir)
		}
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.TrimPrefix(strings.ReplaceAll(base, "-", "_"), "go_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// docLine is one line of a doc comment, without comment markers, and the
// position of its first character.
type docLine struct {
	text string
	pos  token.Position
}

// annotationLines returns the lines of the annotation block of a doc comment:
// everything from the first line that starts with '@' to the end of the
// comment.
func annotationLines(fset *token.FileSet, doc *ast.CommentGroup) []docLine {
	if doc == nil {
		return nil
	}
	var lines []docLine
	found := false
	prevSingleLine := false
	for _, l := range doc.List {
		txt := l.Text
		singleLine := false
		if strings.HasPrefix(txt, "/*") {
			txt = strings.TrimSuffix(txt[2:], "*/")
		} else if strings.HasPrefix(txt, "//") {
			singleLine = true
			txt = txt[2:]
		}

		if singleLine != prevSingleLine {
			// switching comment styles starts a new block
			found = false
			lines = nil
			prevSingleLine = singleLine
		}

		pos := fset.Position(l.Slash)
		// skip past opening "//" or "/*"
		pos.Offset += 2
		pos.Column += 2

		for _, line := range strings.Split(txt, "\n") {
			if !found && strings.HasPrefix(strings.TrimSpace(line), "@") {
				found = true
			}
			if found {
				lines = append(lines, docLine{text: line, pos: pos})
			}
			pos.Offset += len(line) + 1
			pos.Line++
			pos.Column = 1
		}
	}
	if !found {
		return nil
	}
	return lines
}

// annotationChunks splits an annotation block into the text of individual
// annotations. A chunk starts at a line beginning with '@' and continues
// while parentheses or braces are open. Lines outside of any chunk are prose.
func annotationChunks(lines []docLine) [][]docLine {
	var chunks [][]docLine
	var cur []docLine
	depth := 0
	inRaw := false
	for _, l := range lines {
		startsAnno := strings.HasPrefix(strings.TrimSpace(l.text), "@")
		if startsAnno && !inRaw && len(cur) > 0 {
			// an annotation value never starts with '@', so this is a new
			// annotation even if the previous one is unterminated
			chunks = append(chunks, cur)
			cur, depth = nil, 0
		}
		if len(cur) == 0 && !startsAnno {
			continue
		}
		cur = append(cur, l)
		depth, inRaw = bracketDepth(l.text, depth, inRaw)
		if depth <= 0 && !inRaw {
			chunks = append(chunks, cur)
			cur, depth = nil, 0
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// bracketDepth adds the parentheses and braces opened and closed on line,
// outside of string and rune literals, to depth. A raw string may continue
// onto the next line, which is tracked by inRaw.
func bracketDepth(line string, depth int, inRaw bool) (int, bool) {
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if inRaw {
			if ch == '`' {
				inRaw = false
			}
			continue
		}
		switch ch {
		case '`':
			inRaw = true
		case '"', '\'':
			for i++; i < len(line) && line[i] != ch; i++ {
				if line[i] == '\\' {
					i++
				}
			}
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		}
	}
	return depth, inRaw
}

// chunkSource copies the lines of a chunk into a buffer for the parser. The
// returned adjuster maps positions in the buffer back to positions in the
// source file.
func chunkSource(chunk []docLine) (*bytes.Buffer, posAdjuster) {
	var buf bytes.Buffer
	adjuster := make(posAdjuster, 0, len(chunk)+1)
	for _, l := range chunk {
		adjuster = append(adjuster, posAdj{outOffset: buf.Len(), inPos: l.pos})
		buf.WriteString(l.text)
		buf.WriteByte('\n')
	}
	// records end of input as the last entry
	end := chunk[len(chunk)-1]
	endPos := end.pos
	endPos.Offset += len(end.text)
	endPos.Column += len(end.text)
	adjuster = append(adjuster, posAdj{outOffset: buf.Len(), inPos: endPos})
	return &buf, adjuster
}

// annotationName returns the name that follows the '@' at the start of line,
// which is all that is needed to tell whether an annotation that does not
// parse was meant to be the marker.
func annotationName(line string) (parser.Identifier, bool) {
	rest := strings.TrimPrefix(strings.TrimSpace(line), "@")
	first, rest := leadingIdent(rest)
	if first == "" {
		return parser.Identifier{}, false
	}
	if !strings.HasPrefix(rest, ".") {
		return parser.Identifier{Name: first}, true
	}
	second, _ := leadingIdent(rest[1:])
	if second == "" {
		return parser.Identifier{}, false
	}
	return parser.Identifier{PackageAlias: first, Name: second}, true
}

func leadingIdent(s string) (string, string) {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsLetter(r) && r != '_' && (i == 0 || !unicode.IsDigit(r)) {
			break
		}
		i += size
	}
	return s[:i], s[i:]
}

type posAdj struct {
	outOffset int
	inPos     token.Position
}

type posAdjuster []posAdj

func (a posAdjuster) adjustPosition(pos scanner.Position) token.Position {
	if len(a) == 0 {
		return token.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Column, Offset: pos.Offset}
	}
	i := pos.Line - 1
	if i < 0 {
		i = 0
	} else if i >= len(a) {
		i = len(a) - 1
	}
	el := a[i]
	return token.Position{
		Filename: el.inPos.Filename,
		Line:     el.inPos.Line,
		Column:   el.inPos.Column + pos.Column - 1,
		Offset:   el.inPos.Offset + (pos.Offset - el.outOffset),
	}
}
