package profile_test

import (
	"mangaapi/bizerror"
	"mangaapi/profile"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Profile", func() {
	It("should parse known profiles only", func() {
		for _, p := range profile.All() {
			parsed, err := profile.Parse(string(p))
			Expect(err).To(BeNil())
			Expect(parsed).To(Equal(p))
		}
		_, err := profile.Parse("vip")
		Expect(err).To(Equal(bizerror.ErrUnknownProfile))
		_, err = profile.Parse("")
		Expect(err).To(Equal(bizerror.ErrUnknownProfile))
	})

	It("should map every profile to one group", func() {
		Expect(profile.HomeOnly.GroupName()).To(Equal("HomeOnly"))
		Expect(profile.Premium.GroupName()).To(Equal("Premium"))
		Expect(profile.Moderator.GroupName()).To(Equal("Moderator"))
		Expect(profile.Admin.GroupName()).To(Equal("Admin"))
		Expect(profile.GroupNames()).To(Equal([]string{"HomeOnly", "Premium", "Moderator", "Admin"}))
	})

	It("should expose the fixed permission table", func() {
		Expect(profile.HomeOnly.Permissions()).To(BeEmpty())
		Expect(profile.Premium.Permissions()).To(Equal([]string{"view_nsfw_content", "view_premium_content"}))
		Expect(profile.Moderator.Permissions()).To(ConsistOf("view_nsfw_content", "view_premium_content",
			"moderate_comments", "moderate_reports", "access_admin_panel", "view_analytics"))
		Expect(profile.Admin.Permissions()).To(ConsistOf("view_nsfw_content", "view_premium_content",
			"moderate_comments", "moderate_reports", "access_admin_panel", "view_analytics",
			"manage_users", "manage_manga", "manage_chapters"))
	})

	It("should keep each profile a superset of the previous one", func() {
		all := profile.All()
		for i := 1; i < len(all); i++ {
			for _, codename := range all[i-1].Permissions() {
				Expect(all[i].Has(codename)).To(BeTrue())
			}
		}
	})

	It("should not leak the table through returned slices", func() {
		perms := profile.Premium.Permissions()
		perms[0] = "changed"
		Expect(profile.Premium.Has("view_nsfw_content")).To(BeTrue())
		Expect(profile.Premium.Has("changed")).To(BeFalse())
	})

	It("should classify moderators", func() {
		Expect(profile.HomeOnly.IsModeratorOrHigher()).To(BeFalse())
		Expect(profile.Premium.IsModeratorOrHigher()).To(BeFalse())
		Expect(profile.Moderator.IsModeratorOrHigher()).To(BeTrue())
		Expect(profile.Admin.IsModeratorOrHigher()).To(BeTrue())
	})
})
