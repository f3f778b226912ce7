package processor

// Extract checks that an annotated declaration can be an info proxy: it must
// be a defined (not alias) struct type with no type parameters. All problems
// found are reported, not just the first.
func Extract(in DeclInput) Validation[TypeDeclarationInfo] {
	var diags []Diagnostic
	switch in.Kind {
	case DeclStruct:
	case DeclAlias:
		diags = append(diags, newDiagnostic(CodeAliasDeclaration, in.Pos,
			"%s is a type alias, but info proxies must be defined struct types", in.Name))
	default:
		diags = append(diags, newDiagnostic(CodeNotAStruct, in.Pos,
			"%s is %s, but info proxies must be struct types", in.Name, in.Kind))
	}
	if in.Arity > 0 {
		diags = append(diags, newDiagnostic(CodeGenericDeclaration, in.Pos,
			"%s declares %d type parameter(s), but info proxies cannot be generic", in.Name, in.Arity))
	}
	if len(diags) > 0 {
		return failAll[TypeDeclarationInfo](diags)
	}
	return Succeed(TypeDeclarationInfo{
		Name:      in.Name,
		Namespace: in.Namespace,
		Package:   in.Package,
		Access:    in.Access,
		Arity:     in.Arity,
	})
}
