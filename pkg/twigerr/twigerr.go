// Package twigerr declares the error categories raised by the twig core and
// the process exit codes the CLI maps them to.
//
// Core packages raise categorized errors with Errorf. Callers further up add
// context with fmt.Errorf("...: %w", err); CategoryOf still recovers the
// category through any amount of such wrapping.
package twigerr

import (
	"errors"

	"github.com/warpfork/go-errcat"
)

type Category string
type ExitCode int

const (
	ExitSuccess                                   = ExitCode(0)
	ExitUnknown                                   = ExitCode(1)
	ExitCorruptObject, ErrCorruptObject           = ExitCode(10), Category("twig-corrupt-object")         // Stored object bytes fail decompression or envelope checks.
	ExitMalformedPayload, ErrMalformedPayload     = ExitCode(11), Category("twig-malformed-payload")      // Tree, commit, or tag payload violates its grammar.
	ExitObjectNotFound, ErrObjectNotFound         = ExitCode(12), Category("twig-object-not-found")       // No object under the requested address or prefix.
	ExitAmbiguousAddress, ErrAmbiguousAddress     = ExitCode(13), Category("twig-ambiguous-address")      // Short address matches more than one object.
	ExitUnresolvedReference, ErrUnresolvedRef     = ExitCode(14), Category("twig-unresolved-reference")   // Name matches no address, ref, or expression.
	ExitAmbiguousReference, ErrAmbiguousRef       = ExitCode(15), Category("twig-ambiguous-reference")    // Reserved; the ordered ref search never yields it.
	ExitReferenceCycle, ErrReferenceCycle         = ExitCode(16), Category("twig-reference-cycle")        // Symbolic refs loop or exceed the hop limit.
	ExitCorruptIndex, ErrCorruptIndex             = ExitCode(17), Category("twig-corrupt-index")          // Index file fails structural or checksum checks.
	ExitDanglingReference, ErrDanglingReference   = ExitCode(18), Category("twig-dangling-reference")     // Commit names a tree or parent the store lacks.
	ExitReferenceConflict, ErrReferenceConflict   = ExitCode(19), Category("twig-reference-conflict")     // Ref moved between read and replace.
	ExitAlreadyExists, ErrAlreadyExists           = ExitCode(20), Category("twig-already-exists")         // Repository, branch, or tag already present.
	ExitNotARepository, ErrNotARepository         = ExitCode(21), Category("twig-not-a-repository")       // No marker directory in the path or any parent.
	ExitInvalidArgument, ErrInvalidArgument       = ExitCode(22), Category("twig-invalid-argument")       // Caller input is unusable: bad names, paths outside the worktree.
	ExitIO, ErrIO                                 = ExitCode(23), Category("twig-io")                     // Filesystem failure not attributable to repository content.
)

var exitCodes = map[Category]ExitCode{
	ErrCorruptObject:     ExitCorruptObject,
	ErrMalformedPayload:  ExitMalformedPayload,
	ErrObjectNotFound:    ExitObjectNotFound,
	ErrAmbiguousAddress:  ExitAmbiguousAddress,
	ErrUnresolvedRef:     ExitUnresolvedReference,
	ErrAmbiguousRef:      ExitAmbiguousReference,
	ErrReferenceCycle:    ExitReferenceCycle,
	ErrCorruptIndex:      ExitCorruptIndex,
	ErrDanglingReference: ExitDanglingReference,
	ErrReferenceConflict: ExitReferenceConflict,
	ErrAlreadyExists:     ExitAlreadyExists,
	ErrNotARepository:    ExitNotARepository,
	ErrInvalidArgument:   ExitInvalidArgument,
	ErrIO:                ExitIO,
}

// Errorf returns an error carrying the given category.
func Errorf(category Category, format string, args ...interface{}) error {
	return errcat.Errorf(category, format, args...)
}

// CategoryOf returns the category of the first categorized error in err's
// chain, or "" when there is none.
func CategoryOf(err error) Category {
	var ce errcat.Error
	if !errors.As(err, &ce) {
		return ""
	}
	category, _ := ce.Category().(Category)
	return category
}

// Is reports whether err carries the given category anywhere in its chain.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}

// ExitCodeOf maps err to the exit code the CLI should terminate with.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	if code, ok := exitCodes[CategoryOf(err)]; ok {
		return code
	}
	return ExitUnknown
}
