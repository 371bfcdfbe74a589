package scope_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDirectory struct {
	reps []model.Rep
	err  error
}

func (f *fakeDirectory) Rep(_ context.Context, orgID, repID string) (model.Rep, bool, error) {
	if f.err != nil {
		return model.Rep{}, false, f.err
	}
	for _, r := range f.reps {
		if r.OrgID == orgID && r.ID == repID {
			return r, true, nil
		}
	}
	return model.Rep{}, false, nil
}

func (f *fakeDirectory) DirectReports(_ context.Context, orgID, managerID string) ([]model.Rep, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Rep
	for _, r := range f.reps {
		if r.OrgID == orgID && r.ManagerID == managerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Reps(_ context.Context, orgID string) ([]model.Rep, error) {
	var out []model.Rep
	for _, r := range f.reps {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func directory() *fakeDirectory {
	return &fakeDirectory{reps: []model.Rep{
		{OrgID: "acme", ID: "vp", Name: "Vera Park"},
		{OrgID: "acme", ID: "m1", Name: "Mo  Lee", ManagerID: "vp"},
		{OrgID: "acme", ID: "r1", Name: "Ana Ruiz", ManagerID: "m1"},
		{OrgID: "acme", ID: "r2", Name: "Ben Cho", ManagerID: "m1"},
		{OrgID: "acme", ID: "r3", Name: "Cy Dunn", ManagerID: "vp"},
		{OrgID: "globex", ID: "g1", Name: "Gil", ManagerID: "m1"},
	}}
}

func TestNormalizeName(t *testing.T) {
	Convey("Given owner names", t, func() {
		So(scope.NormalizeName("  Ana   RUIZ "), ShouldEqual, "ana ruiz")
		So(scope.NormalizeName("\tMo\nLee"), ShouldEqual, "mo lee")
		So(scope.NormalizeName("   "), ShouldEqual, "")
	})
}

func TestScopeMatching(t *testing.T) {
	Convey("Given an owner set with ids and names", t, func() {
		s := scope.NewOwnerSet([]string{"r1"}, []string{"Ben  Cho"})

		Convey("Then a deal matching either key is visible", func() {
			So(s.Contains(&model.Deal{OwnerID: "r1"}), ShouldBeTrue)
			So(s.Contains(&model.Deal{OwnerName: "ben cho"}), ShouldBeTrue)
			So(s.Contains(&model.Deal{OwnerID: "zz", OwnerName: " BEN CHO "}), ShouldBeTrue)
		})

		Convey("Then other deals are not", func() {
			So(s.Contains(&model.Deal{OwnerID: "r2"}), ShouldBeFalse)
			So(s.Contains(&model.Deal{}), ShouldBeFalse)
		})

		Convey("Then Filter keeps only visible deals", func() {
			deals := []model.Deal{{ID: "a", OwnerID: "r1"}, {ID: "b", OwnerID: "r9"}, {ID: "c", OwnerName: "Ben Cho"}}
			got := s.Filter(deals)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "a")
			So(got[1].ID, ShouldEqual, "c")
		})
	})

	Convey("Given an empty restricted scope", t, func() {
		s := scope.NewOwnerSet(nil, []string{"  "})

		Convey("Then it is empty and sees nothing", func() {
			So(s.Empty(), ShouldBeTrue)
			So(s.IsUnrestricted(), ShouldBeFalse)
			So(s.Filter([]model.Deal{{OwnerID: ""}, {OwnerID: "r1"}}), ShouldBeEmpty)
			So(s.MatchesOwner("", ""), ShouldBeFalse)
		})
	})

	Convey("Given scope fingerprints", t, func() {
		a := scope.NewOwnerSet([]string{"r1", "r2"}, []string{"Ana"})
		b := scope.NewOwnerSet([]string{"r2", "r1"}, []string{"ana"})
		c := scope.NewOwnerSet([]string{"r1"}, nil)

		So(a.Fingerprint(), ShouldEqual, b.Fingerprint())
		So(a.Fingerprint(), ShouldNotEqual, c.Fingerprint())
		So(scope.Unrestricted().Fingerprint(), ShouldNotEqual, scope.NewOwnerSet(nil, nil).Fingerprint())
	})

	Convey("Given narrowing", t, func() {
		s := scope.NewOwnerSet([]string{"r1"}, nil)

		So(s.Narrow(model.Rep{ID: "r1", Name: "Ana"}, true).OwnerIDs(), ShouldResemble, []string{"r1"})
		So(s.Narrow(model.Rep{ID: "r2"}, true).Empty(), ShouldBeTrue)
		So(scope.Unrestricted().Narrow(model.Rep{ID: "r2"}, true).IsUnrestricted(), ShouldBeFalse)

		Convey("Then the rep's name only claims deals without an owner id", func() {
			n := scope.Unrestricted().Narrow(model.Rep{ID: "r1", Name: "Sam Fox"}, true)
			So(n.Contains(&model.Deal{OwnerID: "r1"}), ShouldBeTrue)
			So(n.Contains(&model.Deal{OwnerName: "sam fox"}), ShouldBeTrue)
			So(n.Contains(&model.Deal{OwnerID: "r9", OwnerName: "Sam Fox"}), ShouldBeFalse)
			So(n.MatchesRef("Sam Fox"), ShouldBeTrue)
		})

		Convey("Then a shared name is dropped when asked", func() {
			n := scope.Unrestricted().Narrow(model.Rep{ID: "r1", Name: "Sam Fox"}, false)
			So(n.NameKeys(), ShouldBeEmpty)
			So(n.Contains(&model.Deal{OwnerName: "sam fox"}), ShouldBeFalse)
			So(n.Contains(&model.Deal{OwnerID: "r1"}), ShouldBeTrue)
		})
	})

	Convey("Given quota owner refs", t, func() {
		s := scope.NewOwnerSet([]string{"r1"}, []string{"Ben Cho"})

		So(s.MatchesRef("r1"), ShouldBeTrue)
		So(s.MatchesRef(" BEN  CHO "), ShouldBeTrue)
		So(s.MatchesRef("r2"), ShouldBeFalse)
		So(s.MatchesRef(""), ShouldBeFalse)
		So(scope.Unrestricted().MatchesRoot("anyone"), ShouldBeTrue)

		Convey("Then a scope without a root treats every owner as root", func() {
			So(s.MatchesRoot("r1"), ShouldBeTrue)
			So(s.MatchesRoot("ben cho"), ShouldBeTrue)
		})
	})
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a resolver over a rep hierarchy", t, func() {
		r := scope.NewResolver(directory())

		Convey("When an admin resolves", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "x", Role: scope.RoleAdmin})
			So(err, ShouldBeNil)
			So(s.IsUnrestricted(), ShouldBeTrue)
		})

		Convey("When an exec with full visibility resolves", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "vp", Role: scope.RoleExec, SeeAll: true})
			So(err, ShouldBeNil)
			So(s.IsUnrestricted(), ShouldBeTrue)
		})

		Convey("When an exec without full visibility resolves", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "vp", Role: scope.RoleExec})

			Convey("Then the whole reporting tree is visible", func() {
				So(err, ShouldBeNil)
				So(s.IsUnrestricted(), ShouldBeFalse)
				So(s.OwnerIDs(), ShouldResemble, []string{"m1", "r1", "r2", "r3", "vp"})
				So(s.NameKeys(), ShouldContain, "mo lee")
			})

			Convey("Then a sub-manager is not the root", func() {
				So(s.MatchesRoot("vp"), ShouldBeTrue)
				So(s.MatchesRoot("m1"), ShouldBeFalse)
				So(s.MatchesRoot("mo lee"), ShouldBeFalse)
			})
		})

		Convey("When a manager resolves", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager})

			Convey("Then only their team and themselves are visible", func() {
				So(err, ShouldBeNil)
				So(s.OwnerIDs(), ShouldResemble, []string{"m1", "r1", "r2"})
			})

			Convey("Then only the manager is the root", func() {
				So(s.MatchesRoot("m1"), ShouldBeTrue)
				So(s.MatchesRoot("Mo Lee"), ShouldBeTrue)
				So(s.MatchesRoot("r1"), ShouldBeFalse)
				So(s.MatchesRef("r1"), ShouldBeTrue)
			})
		})

		Convey("When a rep resolves", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "r1", Role: scope.RoleRep})
			So(err, ShouldBeNil)
			So(s.OwnerIDs(), ShouldResemble, []string{"r1"})
			So(s.NameKeys(), ShouldResemble, []string{"ana ruiz"})
		})

		Convey("When a manager has no identity at all", func() {
			s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", Role: scope.RoleManager, SeeAll: true})

			Convey("Then the scope is empty rather than unrestricted", func() {
				So(err, ShouldBeNil)
				So(s.Empty(), ShouldBeTrue)
				So(s.IsUnrestricted(), ShouldBeFalse)
			})
		})

		Convey("When the caller has an unknown role or no org", func() {
			_, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "r1", Role: "owner"})
			So(errors.Is(err, scope.ErrUnknownRole), ShouldBeTrue)

			_, err = r.Resolve(ctx, scope.Caller{UserID: "r1", Role: scope.RoleRep})
			So(errors.Is(err, scope.ErrMissingOrg), ShouldBeTrue)
		})

		Convey("When listing visible reps for a manager scope", func() {
			s, _ := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager})
			reps, err := r.VisibleReps(ctx, "acme", s)
			So(err, ShouldBeNil)
			So(len(reps), ShouldEqual, 3)
		})
	})

	Convey("Given a failing directory", t, func() {
		r := scope.NewResolver(&fakeDirectory{err: errors.New("store down")})
		s, err := r.Resolve(ctx, scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager})

		Convey("Then the error surfaces and the scope stays closed", func() {
			So(err, ShouldNotBeNil)
			So(s.Empty(), ShouldBeTrue)
		})
	})

	Convey("Given caller quota levels", t, func() {
		So(scope.Caller{Role: scope.RoleAdmin}.QuotaLevel(), ShouldEqual, model.LevelCompany)
		So(scope.Caller{Role: scope.RoleExec, SeeAll: true}.QuotaLevel(), ShouldEqual, model.LevelCompany)
		So(scope.Caller{Role: scope.RoleExec}.QuotaLevel(), ShouldEqual, model.LevelExec)
		So(scope.Caller{Role: scope.RoleManager, SeeAll: true}.QuotaLevel(), ShouldEqual, model.LevelManager)
		So(scope.Caller{Role: scope.RoleRep}.QuotaLevel(), ShouldEqual, model.LevelRep)
	})
}
