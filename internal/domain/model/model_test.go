package model_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/okian/runclub/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRole(t *testing.T) {
	Convey("Given the known roles", t, func() {
		Convey("Then only the member role is a plain member", func() {
			So(model.RoleMember.IsMember(), ShouldBeTrue)
			So(model.RoleAdminCoach.IsMember(), ShouldBeFalse)
			So(model.Role("").IsMember(), ShouldBeFalse)
		})

		Convey("And no staff role is a plain member", func() {
			So(model.RoleAdminPrincipal.IsMember(), ShouldBeFalse)
			So(model.RoleAdminGroup.IsMember(), ShouldBeFalse)
		})
	})
}

func TestMember(t *testing.T) {
	Convey("Given a member", t, func() {
		m := model.Member{FirstName: " Amine ", LastName: "Trabelsi", PushToken: "  "}

		Convey("Then the display name is trimmed", func() {
			So(m.DisplayName(), ShouldEqual, "Amine Trabelsi")
		})

		Convey("And a blank token is not usable", func() {
			So(m.HasPushToken(), ShouldBeFalse)
			m.PushToken = "tok"
			So(m.HasPushToken(), ShouldBeTrue)
		})

		Convey("And a missing first name does not leave a leading space", func() {
			So(model.Member{LastName: "Ben Ali"}.DisplayName(), ShouldEqual, "Ben Ali")
		})
	})
}

func TestGroupRecipients(t *testing.T) {
	Convey("Given a group with a responsible party", t, func() {
		a, b, staff := uuid.New(), uuid.New(), uuid.New()
		g := model.Group{MemberIDs: []model.MemberID{a, b, a}, ResponsibleID: &staff}

		Convey("Then recipients include members then the responsible party once", func() {
			So(g.Recipients(), ShouldResemble, []model.MemberID{a, b, staff})
		})

		Convey("And membership only covers ordinary members", func() {
			So(g.Has(a), ShouldBeTrue)
			So(g.Has(staff), ShouldBeFalse)
		})

		Convey("When the responsible party is also a member", func() {
			g.ResponsibleID = &b

			Convey("Then it is not repeated", func() {
				So(g.Recipients(), ShouldResemble, []model.MemberID{a, b})
			})
		})
	})
}

func TestEventFlags(t *testing.T) {
	Convey("Given a fresh event", t, func() {
		e := model.Event{ID: 7}

		Convey("When the 1h reminder is marked", func() {
			e.MarkReminded(model.LeadOneHour)

			Convey("Then only the 1h flag is set", func() {
				So(e.Reminded(model.LeadOneHour), ShouldBeTrue)
				So(e.Reminded(model.LeadOneDay), ShouldBeFalse)
			})

			Convey("And marking again keeps it set", func() {
				e.MarkReminded(model.LeadOneHour)
				So(e.Reminded1h, ShouldBeTrue)
			})
		})

		Convey("When an unknown lead time is used", func() {
			e.MarkReminded(model.LeadTime("7d"))

			Convey("Then no flag changes", func() {
				So(e.Reminded1h, ShouldBeFalse)
				So(e.Reminded24h, ShouldBeFalse)
				So(e.Reminded(model.LeadTime("7d")), ShouldBeFalse)
			})
		})
	})
}
