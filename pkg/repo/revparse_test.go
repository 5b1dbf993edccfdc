package repo

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func TestRevParse(t *testing.T) {
	Convey("Given a repository with three commits and tags", t, func() {
		r := newTestRepo(t)
		c1 := commitFiles(t, r, "one", map[string]string{"f": "1"})
		c2 := commitFiles(t, r, "two", map[string]string{"f": "2"})
		c3 := commitFiles(t, r, "three", map[string]string{"f": "3"})
		So(r.CreateTag("light", c2, false), ShouldBeNil)
		annotated, err := r.CreateAnnotatedTag("v1", c1, testAuthor(), "first release", false)
		So(err, ShouldBeNil)

		Convey("HEAD, @ and branch names resolve to the tip", func() {
			for _, expr := range []string{"HEAD", "@", "main", "heads/main", "refs/heads/main"} {
				h, err := r.RevParse(expr)
				So(err, ShouldBeNil)
				So(h, ShouldEqual, c3)
			}
		})

		Convey("full and abbreviated addresses resolve", func() {
			h, err := r.RevParse(string(c2))
			So(err, ShouldBeNil)
			So(h, ShouldEqual, c2)

			h, err = r.RevParse(string(c2)[:12])
			So(err, ShouldBeNil)
			So(h, ShouldEqual, c2)
		})

		Convey("parent and ancestor suffixes walk history", func() {
			cases := map[string]object.Hash{
				"HEAD^":    c2,
				"HEAD~":    c2,
				"HEAD~2":   c1,
				"HEAD^^":   c1,
				"HEAD^0":   c3,
				"main~1^1": c1,
				"~1":       c2,
				"light^":   c1,
			}
			for expr, want := range cases {
				h, err := r.RevParse(expr)
				So(err, ShouldBeNil)
				So(h, ShouldEqual, want)
			}
		})

		Convey("running off the root is unresolved", func() {
			_, err := r.RevParse("HEAD~3")
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
			_, err = r.RevParse("HEAD^2")
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
		})

		Convey("annotated tags resolve to the tag object and peel", func() {
			h, err := r.RevParse("v1")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, annotated)

			h, err = r.RevParse("v1^{}")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, c1)

			h, err = r.RevParse("tags/v1^{commit}")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, c1)

			tree, err := r.RevParse("v1^{tree}")
			So(err, ShouldBeNil)
			So(tree, ShouldEqual, mustTree(t, r, c1))

			_, err = r.RevParse("v1^{blob}")
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
			_, err = r.RevParse("v1^{bogus}")
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
			_, err = r.RevParse("v1^{commit")
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
		})

		Convey("unknown names are unresolved", func() {
			for _, expr := range []string{"nope", "", "   ", "deadbeef"} {
				_, err := r.RevParse(expr)
				So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
			}
		})

		Convey("FindObject peels only when asked to follow", func() {
			tree, err := r.FindObject("HEAD", object.KindTree, true)
			So(err, ShouldBeNil)
			So(tree, ShouldEqual, mustTree(t, r, c3))

			_, err = r.FindObject("HEAD", object.KindTree, false)
			So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)

			h, err := r.FindObject("v1", "", false)
			So(err, ShouldBeNil)
			So(h, ShouldEqual, annotated)
		})
	})

	Convey("Given an unborn repository", t, func() {
		r := newTestRepo(t)
		_, err := r.RevParse("HEAD")
		So(err, twigerr.ShouldHaveCategory, twigerr.ErrUnresolvedRef)
	})
}
