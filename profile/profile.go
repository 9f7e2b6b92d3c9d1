package profile

import (
	"mangaapi/bizerror"
	"sort"
)

// Profile is the coarse access level stored on the user record, each one maps to exactly one group.
type Profile string

const (
	HomeOnly  Profile = "home_only"
	Premium   Profile = "premium"
	Moderator Profile = "moderator"
	Admin     Profile = "admin"
)

const (
	PermViewNSFWContent    = "view_nsfw_content"
	PermViewPremiumContent = "view_premium_content"
	PermModerateComments   = "moderate_comments"
	PermModerateReports    = "moderate_reports"
	PermAccessAdminPanel   = "access_admin_panel"
	PermViewAnalytics      = "view_analytics"
	PermManageUsers        = "manage_users"
	PermManageManga        = "manage_manga"
	PermManageChapters     = "manage_chapters"
)

var groupNames = map[Profile]string{
	HomeOnly:  "HomeOnly",
	Premium:   "Premium",
	Moderator: "Moderator",
	Admin:     "Admin",
}

var permissionTable = func() map[Profile][]string {
	premium := []string{PermViewNSFWContent, PermViewPremiumContent}
	moderator := append(append([]string{}, premium...),
		PermModerateComments, PermModerateReports, PermAccessAdminPanel, PermViewAnalytics)
	admin := append(append([]string{}, moderator...), PermManageUsers, PermManageManga, PermManageChapters)
	return map[Profile][]string{
		HomeOnly:  {},
		Premium:   premium,
		Moderator: moderator,
		Admin:     admin,
	}
}()

// All lists the profiles from the least to the most privileged.
func All() []Profile {
	return []Profile{HomeOnly, Premium, Moderator, Admin}
}

func Parse(s string) (Profile, error) {
	p := Profile(s)
	if _, ok := groupNames[p]; !ok {
		return "", bizerror.ErrUnknownProfile
	}
	return p, nil
}

func (p Profile) Valid() bool {
	_, ok := groupNames[p]
	return ok
}

// GroupName is the name of the group backing the profile.
func (p Profile) GroupName() string {
	return groupNames[p]
}

// Permissions returns the sorted codenames granted by the profile, a copy the caller may keep.
func (p Profile) Permissions() []string {
	perms := append([]string{}, permissionTable[p]...)
	sort.Strings(perms)
	return perms
}

func (p Profile) Has(codename string) bool {
	for _, v := range permissionTable[p] {
		if v == codename {
			return true
		}
	}
	return false
}

func (p Profile) IsModeratorOrHigher() bool {
	return p == Moderator || p == Admin
}

// GroupNames lists the names of every profile group.
func GroupNames() []string {
	var names []string
	for _, p := range All() {
		names = append(names, p.GroupName())
	}
	return names
}
