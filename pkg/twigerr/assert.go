package twigerr

import "fmt"

// ShouldHaveCategory is a goconvey assertion: So(err, ShouldHaveCategory,
// ErrObjectNotFound). Unlike errcat.ErrorShouldHaveCategory it looks
// through fmt.Errorf wrapping.
func ShouldHaveCategory(actual interface{}, expected ...interface{}) string {
	if len(expected) != 1 {
		return "ShouldHaveCategory needs exactly one expected category"
	}
	want, ok := expected[0].(Category)
	if !ok {
		return fmt.Sprintf("expected a twigerr.Category, got %T", expected[0])
	}
	if actual == nil {
		return fmt.Sprintf("expected an error with category %q, got nil", want)
	}
	err, ok := actual.(error)
	if !ok {
		return fmt.Sprintf("expected an error, got %T", actual)
	}
	if got := CategoryOf(err); got != want {
		return fmt.Sprintf("expected category %q, got %q (error: %v)", want, got, err)
	}
	return ""
}
