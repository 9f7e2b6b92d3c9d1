package enforce

import (
	"context"
	"mangaapi/dac"
	"mangaapi/profile"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ReasonSafeMethod       = "safe_method"
	ReasonAnonymous        = "anonymous"
	ReasonCreate           = "create"
	ReasonUnresolvedTarget = "unresolved_target"
	ReasonGranted          = "granted"
	ReasonDenied           = "denied"
	ReasonCheckFailed      = "check_failed"
	ReasonContentVisible   = "content_visible"
	ReasonContentHidden    = "content_hidden"
)

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

func IsSafeMethod(method string) bool {
	return safeMethods[method]
}

// Decision is the outcome of one authorization. Err is set when the decision was forced to deny by a failure.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Checker is the object level decision, satisfied by *dac.Engine.
type Checker interface {
	Check(ctx context.Context, subject *dac.Subject, target dac.Target, codename string) (bool, error)
}

// ProfileChecker reports whether the profile of the subject grants codename.
type ProfileChecker func(ctx context.Context, subject *dac.Subject, codename string) (bool, error)

type Authorizer struct {
	checker  Checker
	registry *Registry
	profiles ProfileChecker
}

// NewAuthorizer uses profile.HasProfilePermissionFunc when profiles is nil.
func NewAuthorizer(checker Checker, registry *Registry, profiles ProfileChecker) *Authorizer {
	if profiles == nil {
		profiles = func(ctx context.Context, subject *dac.Subject, codename string) (bool, error) {
			return profile.HasProfilePermissionFunc(ctx, subject, codename)
		}
	}
	return &Authorizer{checker: checker, registry: registry, profiles: profiles}
}

func (a *Authorizer) Registry() *Registry {
	return a.registry
}

// Authorize decides one operation. A nil target on an unsafe method is a create when the method is POST
// and an unresolved object otherwise.
func (a *Authorizer) Authorize(ctx context.Context, subject *dac.Subject, method string, target *dac.Target) Decision {
	if IsSafeMethod(method) {
		return Decision{Allow: true, Reason: ReasonSafeMethod}
	}
	if subject == nil {
		return Decision{Reason: ReasonAnonymous}
	}
	if target == nil {
		if method == http.MethodPost {
			return Decision{Allow: true, Reason: ReasonCreate}
		}
		return Decision{Reason: ReasonUnresolvedTarget}
	}

	ok, err := a.checker.Check(ctx, subject, *target, dac.CodenameWrite)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"userId": subject.UserID, "target": target.String(), "method": method}).
			Error("authorization check failed, denied")
		return Decision{Reason: ReasonCheckFailed, Err: err}
	}
	if !ok {
		return Decision{Reason: ReasonDenied}
	}
	return Decision{Allow: true, Reason: ReasonGranted}
}

// AuthorizeContent is the sensitivity gate, applied on reads and writes of flagged objects.
func (a *Authorizer) AuthorizeContent(ctx context.Context, subject *dac.Subject, res Resource) Decision {
	flagged, ok := res.(Flagged)
	if !ok || !flagged.NSFW() {
		return Decision{Allow: true, Reason: ReasonContentVisible}
	}
	if subject == nil {
		return Decision{Reason: ReasonContentHidden}
	}
	visible, err := a.profiles(ctx, subject, profile.PermViewNSFWContent)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"userId": subject.UserID, "target": res.DACTarget().String()}).
			Error("content visibility check failed, denied")
		return Decision{Reason: ReasonCheckFailed, Err: err}
	}
	if !visible {
		return Decision{Reason: ReasonContentHidden}
	}
	return Decision{Allow: true, Reason: ReasonContentVisible}
}

// CanViewNSFW is used to filter listings, failures hide flagged content.
func (a *Authorizer) CanViewNSFW(ctx context.Context, subject *dac.Subject) bool {
	if subject == nil {
		return false
	}
	visible, err := a.profiles(ctx, subject, profile.PermViewNSFWContent)
	if err != nil {
		logrus.WithError(err).WithField("userId", subject.UserID).Error("content visibility check failed")
		return false
	}
	return visible
}
