package processor

// Validation is the outcome of a fallible step: either a value or a non-empty
// list of diagnostics explaining why there is no value.
//
// Unlike a plain (value, error) pair, validations are combined by
// accumulating: combining two failed validations keeps the diagnostics of
// both.
type Validation[T any] struct {
	value T
	diags []Diagnostic
}

// Succeed returns a successful validation holding v.
func Succeed[T any](v T) Validation[T] {
	return Validation[T]{value: v}
}

// Fail returns a failed validation with at least one diagnostic.
func Fail[T any](d Diagnostic, more ...Diagnostic) Validation[T] {
	diags := make([]Diagnostic, 0, len(more)+1)
	diags = append(diags, d)
	diags = append(diags, more...)
	return Validation[T]{diags: diags}
}

// failAll is like Fail but takes a slice, which must not be empty.
func failAll[T any](diags []Diagnostic) Validation[T] {
	if len(diags) == 0 {
		panic("failed validation requires at least one diagnostic")
	}
	return Validation[T]{diags: diags}
}

// OK returns true if the validation succeeded.
func (v Validation[T]) OK() bool {
	return len(v.diags) == 0
}

// Value returns the validated value. The second result is false, and the
// value is the zero value, if validation failed.
func (v Validation[T]) Value() (T, bool) {
	return v.value, v.OK()
}

// Diagnostics returns the reasons validation failed. It is empty on success.
func (v Validation[T]) Diagnostics() []Diagnostic {
	if len(v.diags) == 0 {
		return nil
	}
	diags := make([]Diagnostic, len(v.diags))
	copy(diags, v.diags)
	return diags
}

// Combine merges two independent validations. If both succeeded, f is applied
// to their values. Otherwise, the result fails with the diagnostics of a
// followed by those of b, so a failure of a never hides a failure of b.
func Combine[A, B, R any](a Validation[A], b Validation[B], f func(A, B) R) Validation[R] {
	if a.OK() && b.OK() {
		return Succeed(f(a.value, b.value))
	}
	diags := make([]Diagnostic, 0, len(a.diags)+len(b.diags))
	diags = append(diags, a.diags...)
	diags = append(diags, b.diags...)
	return Validation[R]{diags: diags}
}

// Map transforms the value of a successful validation. A failed validation is
// returned with its diagnostics intact.
func Map[A, R any](a Validation[A], f func(A) R) Validation[R] {
	if !a.OK() {
		return Validation[R]{diags: a.diags}
	}
	return Succeed(f(a.value))
}
