package account_test

import (
	"context"
	"errors"
	"mangaapi/account"
	"mangaapi/bizerror"
	"mangaapi/event"
	"mangaapi/persistence"
	"mangaapi/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("groupManage", func() {
	var (
		testDatabase *testinfra.TestDatabase
		published    []event.Event
		invoked      []event.EventRecord
		admin        = testinfra.BuildSuperuserSession(1)
	)
	BeforeEach(func() {
		testDatabase = testinfra.StartMysqlTestDatabase("mangaapi")
		persistence.ActiveDataSourceManager = testDatabase.DS
		Expect(testDatabase.DS.GormDB(context.TODO()).AutoMigrate(&account.User{}, &account.Group{}, &account.GroupMembership{},
			&event.EventRecord{}).Error).To(BeNil())

		published = nil
		invoked = nil
		event.PublishFunc = func(ctx context.Context, ev event.Event) *event.EventRecord {
			published = append(published, ev)
			return &event.EventRecord{Event: ev}
		}
		event.InvokeHandlersFunc = func(record *event.EventRecord) []event.EventHandleResult {
			invoked = append(invoked, *record)
			return nil
		}
		account.GroupDeleteHooks = nil
		account.GroupMemberGuards = nil
	})
	AfterEach(func() {
		event.PublishFunc = event.Publish
		testinfra.StopMysqlTestDatabase(testDatabase)
	})

	Describe("CreateGroup", func() {
		It("should be forbidden for non superuser", func() {
			g, err := account.CreateGroup(&account.GroupCreation{Name: "Premium"}, testinfra.BuildSession(2))
			Expect(err).To(Equal(bizerror.ErrForbidden))
			Expect(g).To(BeNil())
		})

		It("should create group and reject duplicated name", func() {
			g, err := account.CreateGroup(&account.GroupCreation{Name: "Premium"}, admin)
			Expect(err).To(BeNil())
			Expect(g.ID).ToNot(BeZero())
			Expect(g.Name).To(Equal("Premium"))
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))

			g, err = account.CreateGroup(&account.GroupCreation{Name: "Premium"}, admin)
			Expect(g).To(BeNil())
			var badParam *bizerror.ErrBadParam
			Expect(errors.As(err, &badParam)).To(BeTrue())

			groups, err := account.QueryGroups(admin)
			Expect(err).To(BeNil())
			Expect(groups).To(HaveLen(1))
		})
	})

	Describe("EnsureGroup", func() {
		It("should be idempotent", func() {
			db := testDatabase.DS.GormDB(context.TODO())
			g1, err := account.EnsureGroup(db, "Moderator")
			Expect(err).To(BeNil())
			g2, err := account.EnsureGroup(db, "Moderator")
			Expect(err).To(BeNil())
			Expect(g2.ID).To(Equal(g1.ID))

			notFound, err := account.FindGroupByName(db, "Admin")
			Expect(err).To(BeNil())
			Expect(notFound).To(BeNil())
		})
	})

	Describe("members", func() {
		var group *account.Group
		BeforeEach(func() {
			Expect(testDatabase.DS.GormDB(context.TODO()).Save(&account.User{ID: 7, Name: "reader", Secret: "x"}).Error).To(BeNil())
			var err error
			group, err = account.CreateGroup(&account.GroupCreation{Name: "Premium"}, admin)
			Expect(err).To(BeNil())
		})

		It("should add member idempotently and remove it", func() {
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			Expect(invoked).To(HaveLen(1))
			Expect(invoked[0].UpdatedRelations).To(Equal(event.UpdatedRelations{{PropertyName: "members", TargetType: "user", NewTargetId: "7"}}))

			members, err := account.QueryGroupMembers(group.ID, admin)
			Expect(err).To(BeNil())
			Expect(members).To(Equal([]account.UserInfo{{ID: 7, Name: "reader"}}))

			var count int
			Expect(testDatabase.DS.GormDB(context.TODO()).Model(&event.EventRecord{}).Count(&count).Error).To(BeNil())
			Expect(count).To(Equal(1))

			Expect(account.RemoveGroupMember(group.ID, 7, admin)).To(BeNil())
			Expect(account.RemoveGroupMember(group.ID, 7, admin)).To(BeNil())
			Expect(invoked).To(HaveLen(2))

			members, err = account.QueryGroupMembers(group.ID, admin)
			Expect(err).To(BeNil())
			Expect(members).To(BeEmpty())
		})

		It("should list group names of a user", func() {
			other, err := account.CreateGroup(&account.GroupCreation{Name: "Moderator"}, admin)
			Expect(err).To(BeNil())
			names, err := account.GroupNamesOfUser(context.TODO(), 7)
			Expect(err).To(BeNil())
			Expect(names).To(BeEmpty())

			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			Expect(account.AddGroupMember(other.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			names, err = account.GroupNamesOfUser(context.TODO(), 7)
			Expect(err).To(BeNil())
			Expect(names).To(Equal([]string{"Moderator", "Premium"}))
		})

		It("should let member guards veto membership changes", func() {
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			var guarded []string
			account.GroupMemberGuards = []account.GroupMemberGuard{func(g *account.Group) error {
				guarded = append(guarded, g.Name)
				return errors.New("members are managed elsewhere")
			}}

			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(MatchError("members are managed elsewhere"))
			Expect(account.RemoveGroupMember(group.ID, 7, admin)).To(MatchError("members are managed elsewhere"))
			Expect(account.RemoveGroupMember(404, 7, admin)).To(BeNil())
			Expect(guarded).To(Equal([]string{"Premium", "Premium"}))

			members, err := account.QueryGroupMembers(group.ID, admin)
			Expect(err).To(BeNil())
			Expect(members).To(Equal([]account.UserInfo{{ID: 7, Name: "reader"}}))
		})

		It("should return not found for unknown user or group", func() {
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 404}, admin)).To(Equal(gorm.ErrRecordNotFound))
			Expect(account.AddGroupMember(404, &account.GroupMemberChange{UserID: 7}, admin)).To(Equal(gorm.ErrRecordNotFound))
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, testinfra.BuildSession(7))).To(Equal(bizerror.ErrForbidden))
		})

		It("should delete group together with memberships and hooked data", func() {
			var hooked []types.ID
			account.GroupDeleteHooks = []account.GroupDeleteHook{func(tx *gorm.DB, groupID types.ID) error {
				hooked = append(hooked, groupID)
				return nil
			}}
			Expect(account.AddGroupMember(group.ID, &account.GroupMemberChange{UserID: 7}, admin)).To(BeNil())
			Expect(account.DeleteGroup(group.ID, admin)).To(BeNil())
			Expect(hooked).To(Equal([]types.ID{group.ID}))

			var count int
			Expect(testDatabase.DS.GormDB(context.TODO()).Model(&account.GroupMembership{}).Count(&count).Error).To(BeNil())
			Expect(count).To(BeZero())

			_, err := account.DetailGroup(group.ID, admin)
			Expect(err).To(Equal(gorm.ErrRecordNotFound))
		})

		It("should rollback group deletion when hook failed", func() {
			account.GroupDeleteHooks = []account.GroupDeleteHook{func(tx *gorm.DB, groupID types.ID) error {
				return errors.New("hook failed")
			}}
			Expect(account.DeleteGroup(group.ID, admin)).To(MatchError("hook failed"))
			g, err := account.DetailGroup(group.ID, admin)
			Expect(err).To(BeNil())
			Expect(g.Name).To(Equal("Premium"))
		})
	})
})
