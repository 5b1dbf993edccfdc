package twigerr

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
)

func TestCategories(t *testing.T) {
	Convey("Categorized errors:", t, func() {
		Convey("Errorf attaches the category...", func() {
			err := Errorf(ErrObjectNotFound, "object %s not found", "abcd")
			So(err, errcat.ErrorShouldHaveCategory, ErrObjectNotFound)
			So(err.Error(), ShouldEqual, "object abcd not found")
		})
		Convey("CategoryOf sees through fmt wrapping...", func() {
			inner := Errorf(ErrCorruptIndex, "bad checksum")
			outer := fmt.Errorf("add: %w", fmt.Errorf("read index: %w", inner))
			So(CategoryOf(outer), ShouldEqual, ErrCorruptIndex)
			So(Is(outer, ErrCorruptIndex), ShouldBeTrue)
			So(Is(outer, ErrCorruptObject), ShouldBeFalse)
		})
		Convey("Uncategorized errors have no category...", func() {
			So(CategoryOf(errors.New("plain")), ShouldEqual, Category(""))
			So(CategoryOf(nil), ShouldEqual, Category(""))
			So(Is(nil, ErrIO), ShouldBeFalse)
		})
	})
}

func TestExitCodesAreDistinct(t *testing.T) {
	seen := make(map[ExitCode]Category)
	for category, code := range exitCodes {
		if code == ExitSuccess || code == ExitUnknown {
			t.Fatalf("category %s maps to reserved exit code %d", category, code)
		}
		if prev, ok := seen[code]; ok {
			t.Fatalf("exit code %d shared by %s and %s", code, prev, category)
		}
		seen[code] = category
	}

	if got := ExitCodeOf(nil); got != ExitSuccess {
		t.Fatalf("ExitCodeOf(nil) = %d, want %d", got, ExitSuccess)
	}
	if got := ExitCodeOf(errors.New("boom")); got != ExitUnknown {
		t.Fatalf("ExitCodeOf(plain) = %d, want %d", got, ExitUnknown)
	}
	wrapped := fmt.Errorf("commit: %w", Errorf(ErrReferenceConflict, "moved"))
	if got := ExitCodeOf(wrapped); got != ExitReferenceConflict {
		t.Fatalf("ExitCodeOf(conflict) = %d, want %d", got, ExitReferenceConflict)
	}
}

func TestShouldHaveCategory(t *testing.T) {
	wrapped := fmt.Errorf("open: %w", Errorf(ErrNotARepository, "no marker"))
	if msg := ShouldHaveCategory(wrapped, ErrNotARepository); msg != "" {
		t.Fatalf("wrapped match failed: %s", msg)
	}
	if msg := ShouldHaveCategory(wrapped, ErrIO); msg == "" {
		t.Fatal("category mismatch passed")
	}
	if msg := ShouldHaveCategory(nil, ErrIO); msg == "" {
		t.Fatal("nil error passed")
	}
	if msg := ShouldHaveCategory(wrapped, "twig-io"); msg == "" {
		t.Fatal("untyped expected value passed")
	}
}
