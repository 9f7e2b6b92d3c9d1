package dac_test

import (
	"context"
	"errors"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/event"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const manga dac.TargetType = "manga"

func mangaTarget(id string) dac.Target {
	return dac.Target{Type: manga, ID: id}
}

var _ = Describe("Engine", func() {
	var (
		ctx    = context.Background()
		store  *dac.MemoryStore
		engine *dac.Engine
		user   = &dac.Subject{UserID: 10}
	)

	BeforeEach(func() {
		store = dac.NewMemoryStore()
		store.AddUser(10)
		engine = dac.NewEngine(store, 0)
	})

	upsert := func(actor dac.Actor, target dac.Target, codename string, allow bool) {
		_, err := store.UpsertGrant(ctx, actor, target, codename, allow)
		Expect(err).To(BeNil())
	}
	check := func(subject *dac.Subject, target dac.Target, codename string) bool {
		allow, err := engine.Check(ctx, subject, target, codename)
		Expect(err).To(BeNil())
		return allow
	}

	It("should deny anonymous actor", func() {
		upsert(dac.UserActor(10), mangaTarget("*"), dac.CodenameWrite, true)
		Expect(check(nil, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())
		Expect(check(&dac.Subject{}, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())
	})

	It("should allow superuser on any target and codename", func() {
		admin := &dac.Subject{UserID: 1, Superuser: true}
		Expect(check(admin, mangaTarget("1"), dac.CodenameWrite)).To(BeTrue())
		Expect(check(admin, dac.Target{Type: "chapter", ID: "7"}, "not_registered")).To(BeTrue())
	})

	It("should allow owner without any grant", func() {
		_, err := store.SetOwner(ctx, 10, mangaTarget("5"))
		Expect(err).To(BeNil())
		Expect(check(user, mangaTarget("5"), dac.CodenameWrite)).To(BeTrue())
		Expect(check(user, mangaTarget("5"), "never_registered")).To(BeTrue())
		Expect(check(user, mangaTarget("6"), dac.CodenameWrite)).To(BeFalse())
	})

	It("should keep owner allowed even with explicit deny", func() {
		_, err := store.SetOwner(ctx, 10, mangaTarget("5"))
		Expect(err).To(BeNil())
		upsert(dac.UserActor(10), mangaTarget("5"), dac.CodenameWrite, false)
		Expect(check(user, mangaTarget("5"), dac.CodenameWrite)).To(BeTrue())
	})

	It("should deny unregistered permission", func() {
		Expect(check(user, mangaTarget("1"), "unknown")).To(BeFalse())
		p, err := store.FindPermission(ctx, "unknown")
		Expect(err).To(BeNil())
		Expect(p).To(BeNil())
	})

	It("should allow only the granted object without wildcard", func() {
		upsert(dac.UserActor(10), mangaTarget("42"), dac.CodenameWrite, true)
		Expect(check(user, mangaTarget("42"), dac.CodenameWrite)).To(BeTrue())
		Expect(check(user, mangaTarget("43"), dac.CodenameWrite)).To(BeFalse())
		Expect(check(user, dac.Target{Type: "chapter", ID: "42"}, dac.CodenameWrite)).To(BeFalse())
		Expect(check(user, mangaTarget("42"), "delete")).To(BeFalse())
	})

	It("should allow every object through group wildcard grant", func() {
		store.AddMember(100, 10)
		upsert(dac.GroupActor(100), mangaTarget("*"), dac.CodenameWrite, true)
		Expect(check(user, mangaTarget("99"), dac.CodenameWrite)).To(BeTrue())
		Expect(check(user, mangaTarget("12345"), dac.CodenameWrite)).To(BeTrue())
		Expect(check(&dac.Subject{UserID: 11}, mangaTarget("99"), dac.CodenameWrite)).To(BeFalse())
	})

	It("should let explicit deny win over wildcard allow", func() {
		upsert(dac.UserActor(10), mangaTarget("*"), dac.CodenameWrite, true)
		upsert(dac.UserActor(10), mangaTarget("7"), dac.CodenameWrite, false)
		Expect(check(user, mangaTarget("7"), dac.CodenameWrite)).To(BeFalse())
		Expect(check(user, mangaTarget("8"), dac.CodenameWrite)).To(BeTrue())
	})

	It("should let group deny win over group allow", func() {
		store.AddMember(100, 10)
		store.AddMember(200, 10)
		upsert(dac.GroupActor(100), mangaTarget("*"), dac.CodenameWrite, true)
		upsert(dac.GroupActor(200), mangaTarget("7"), dac.CodenameWrite, false)
		Expect(check(user, mangaTarget("7"), dac.CodenameWrite)).To(BeFalse())
		Expect(check(user, mangaTarget("8"), dac.CodenameWrite)).To(BeTrue())
	})

	It("should let user tier allow short-circuit a group tier deny", func() {
		store.AddMember(100, 10)
		upsert(dac.GroupActor(100), mangaTarget("7"), dac.CodenameWrite, false)
		Expect(check(user, mangaTarget("7"), dac.CodenameWrite)).To(BeFalse())

		upsert(dac.UserActor(10), mangaTarget("7"), dac.CodenameWrite, true)
		Expect(check(user, mangaTarget("7"), dac.CodenameWrite)).To(BeTrue())
	})

	It("should let user tier deny short-circuit a group tier allow", func() {
		store.AddMember(100, 10)
		upsert(dac.GroupActor(100), mangaTarget("*"), dac.CodenameWrite, true)
		upsert(dac.UserActor(10), mangaTarget("*"), dac.CodenameWrite, false)
		Expect(check(user, mangaTarget("7"), dac.CodenameWrite)).To(BeFalse())
	})

	It("should deny wildcard and empty targets", func() {
		upsert(dac.UserActor(10), mangaTarget("*"), dac.CodenameWrite, true)
		Expect(check(user, mangaTarget("*"), dac.CodenameWrite)).To(BeFalse())
		Expect(check(user, mangaTarget(""), dac.CodenameWrite)).To(BeFalse())
	})

	It("should deny and report storage failures", func() {
		upsert(dac.UserActor(10), mangaTarget("*"), dac.CodenameWrite, true)
		store.Err = errors.New("storage unavailable")

		allow, err := engine.Check(ctx, user, mangaTarget("1"), dac.CodenameWrite)
		Expect(allow).To(BeFalse())
		Expect(err).To(MatchError("storage unavailable"))
	})

	Describe("cache", func() {
		BeforeEach(func() {
			engine = dac.NewEngine(store, time.Minute)
		})

		It("should see a permission registered after a miss", func() {
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())
			upsert(dac.UserActor(10), mangaTarget("1"), dac.CodenameWrite, true)
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeTrue())
		})

		It("should drop cached memberships on membership events", func() {
			store.AddGroup(100)
			upsert(dac.GroupActor(100), mangaTarget("*"), dac.CodenameWrite, true)
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())

			store.AddMember(100, 10)
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())

			r := engine.OnEvent(&event.EventRecord{Event: event.Event{SourceType: event.SourceGroupMember, SourceId: 100}})
			Expect(r).ToNot(BeNil())
			Expect(r.Success).To(BeTrue())
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeTrue())

			Expect(engine.OnEvent(&event.EventRecord{Event: event.Event{SourceType: event.SourceGrant}})).To(BeNil())
		})

		It("should drop everything on flush", func() {
			store.AddGroup(100)
			upsert(dac.GroupActor(100), mangaTarget("*"), dac.CodenameWrite, true)
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeFalse())
			store.AddMember(100, 10)
			engine.FlushCache()
			Expect(check(user, mangaTarget("1"), dac.CodenameWrite)).To(BeTrue())
		})
	})

	Describe("Actor", func() {
		It("should require exactly one of user and group", func() {
			Expect(dac.Actor{}.Validate()).To(Equal(bizerror.ErrMalformedActor))
			Expect(dac.Actor{UserID: 1, GroupID: 2}.Validate()).To(Equal(bizerror.ErrMalformedActor))
			Expect(dac.UserActor(1).Validate()).To(BeNil())
			Expect(dac.GroupActor(2).Validate()).To(BeNil())

			_, err := store.UpsertGrant(ctx, dac.Actor{UserID: 1, GroupID: 2}, mangaTarget("1"), dac.CodenameWrite, true)
			Expect(err).To(Equal(bizerror.ErrMalformedActor))
			_, err = store.UpsertGrant(ctx, dac.Actor{}, mangaTarget("1"), dac.CodenameWrite, true)
			Expect(err).To(Equal(bizerror.ErrMalformedActor))
		})
	})

	Describe("MemoryStore.UpsertGrant", func() {
		It("should update allow in place", func() {
			g1, err := store.UpsertGrant(ctx, dac.UserActor(10), mangaTarget("42"), dac.CodenameWrite, true)
			Expect(err).To(BeNil())
			g2, err := store.UpsertGrant(ctx, dac.UserActor(10), mangaTarget("42"), dac.CodenameWrite, false)
			Expect(err).To(BeNil())
			Expect(g2.ID).To(Equal(g1.ID))
			Expect(g2.Allow).To(BeFalse())

			grants, err := store.ListGrants(ctx, dac.GrantQuery{UserID: 10})
			Expect(err).To(BeNil())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].Allow).To(BeFalse())
			Expect(grants[0].Codename).To(Equal(dac.CodenameWrite))
		})

		It("should reject invalid codename", func() {
			_, err := store.UpsertGrant(ctx, dac.UserActor(10), mangaTarget("42"), "Not Valid", true)
			Expect(err).To(Equal(bizerror.ErrUnknownPermission))
			_, err = store.UpsertGrant(ctx, dac.UserActor(10), dac.Target{Type: manga}, dac.CodenameWrite, true)
			Expect(err).To(Equal(bizerror.ErrUnknownTargetType))
		})
	})

	Describe("SubjectOf", func() {
		It("should map sessions to subjects", func() {
			Expect(dac.SubjectOf(nil)).To(BeNil())
			Expect(dac.SubjectOf(buildSession(0, false))).To(BeNil())
			Expect(*dac.SubjectOf(buildSession(3, false))).To(Equal(dac.Subject{UserID: 3}))
			Expect(*dac.SubjectOf(buildSession(1, true))).To(Equal(dac.Subject{UserID: 1, Superuser: true}))
		})
	})
})
