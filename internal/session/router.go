// Package session owns a client's authenticated session: it reacts to
// auth-state changes, loads the profile behind the session and decides which
// area of the application the user lands on.
package session

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User-facing messages.
const (
	MsgEmailNotConfirmed  = "Please confirm your email address before signing in."
	MsgInvalidCredentials = "Invalid email or password."
	MsgSignInFailed       = "Sign in failed. Please try again."
	MsgProfileMissing     = "We could not find your account profile. Please contact support."
	MsgSignUpSucceeded    = "Registration successful. Please check your email to confirm your account."
	MsgSignUpSignedIn     = "Registration successful. Welcome!"
	MsgUserAlreadyExists  = "An account with this email already exists."
	MsgSignUpFailed       = "Sign up failed. Please try again."
	MsgSignedOut          = "You have been signed out."
	MsgSignOutIncomplete  = "Sign out could not reach the server. You have been signed out on this device."
)

// ErrProfileMissing is returned by SignIn when the session had no profile
// row and was terminated.
var ErrProfileMissing = errors.New("no profile for authenticated identity")

const defaultLookupTimeout = 5 * time.Second

// AuthClient is the part of the identity client the router needs.
type AuthClient interface {
	OnAuthStateChange(fn identity.Listener) (unsubscribe func())
	Session() *identity.Session
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.Account, *identity.Session, error)
	SignOut(ctx context.Context, scope identity.SignOutScope) error
}

// Deps wires a Router.
type Deps struct {
	Auth         AuthClient
	Profiles     repository.ProfileRepository
	Applications repository.PartnerApplicationRepository
	Navigator    Navigator
	Notifier     Notifier
	Log          *logger.Logger
	// LookupTimeout bounds each profile or application lookup.
	LookupTimeout time.Duration
}

// Router is the session and role router of one client.
type Router struct {
	auth          AuthClient
	profiles      repository.ProfileRepository
	applications  repository.PartnerApplicationRepository
	nav           Navigator
	notify        Notifier
	log           *logger.Logger
	lookupTimeout time.Duration

	mu          sync.Mutex
	profile     *domain.Profile
	unsubscribe func()
}

func NewRouter(d Deps) *Router {
	if d.LookupTimeout <= 0 {
		d.LookupTimeout = defaultLookupTimeout
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = &Notices{}
	}
	return &Router{
		auth:          d.Auth,
		profiles:      d.Profiles,
		applications:  d.Applications,
		nav:           d.Navigator,
		notify:        d.Notifier,
		log:           d.Log.With("service", "SessionRouter"),
		lookupTimeout: d.LookupTimeout,
	}
}

// Start installs the auth-state subscription. Calling it again is a no-op.
func (r *Router) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		return
	}
	r.unsubscribe = r.auth.OnAuthStateChange(r.HandleEvent)
}

// Stop removes the subscription installed by Start.
func (r *Router) Stop() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Profile returns the profile of the current session, or nil.
func (r *Router) Profile() *domain.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

func (r *Router) setProfile(p *domain.Profile) {
	r.mu.Lock()
	r.profile = p
	r.mu.Unlock()
}

// FetchProfile loads the profile for an identity. Any failure is logged and
// reported as nil, which callers treat as "no profile".
func (r *Router) FetchProfile(ctx context.Context, identityID primitive.ObjectID) *domain.Profile {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	profile, err := r.profiles.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("no profile for identity", "identityId", identityID.Hex())
		} else {
			r.log.Error("profile lookup failed", "identityId", identityID.Hex(), "error", err)
		}
		return nil
	}
	return profile
}

// FetchPartnerApprovalStatus returns the status of the most recent partner
// application for the email. It never fails: a missing record yields
// ApplicationNotFound and a failed lookup ApplicationLookupFailed.
func (r *Router) FetchPartnerApprovalStatus(ctx context.Context, email string) domain.ApplicationStatus {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	email = domain.NormalizeEmail(email)
	app, err := r.applications.LatestByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ApplicationNotFound
		}
		r.log.Error("partner application lookup failed", "email", email, "error", err)
		return domain.ApplicationLookupFailed
	}
	return domain.NormalizeApplicationStatus(app.Status)
}

// DecideLandingRoute picks the landing route for a profile. Partners land in
// the partner area only when their latest application is approved; the
// profile's own approval field is not consulted.
func (r *Router) DecideLandingRoute(ctx context.Context, profile *domain.Profile) domain.Route {
	if profile == nil {
		return domain.RouteHome
	}
	switch profile.Role {
	case domain.RoleAdmin:
		return domain.RouteAdmin
	case domain.RoleCustomer:
		return domain.RouteCustomer
	case domain.RolePartner:
		if r.FetchPartnerApprovalStatus(ctx, profile.Email) == domain.ApplicationApproved {
			return domain.RoutePartner
		}
		return domain.RoutePartnerPending
	default:
		r.log.Warn("unrecognized role", "role", profile.Role, "profileId", profile.ID.Hex())
		return domain.RouteHome
	}
}

// HandleEvent reacts to an auth-state change.
//
// A fresh sign-in navigates to the landing route, or terminates the session
// when it has no profile row. A restored or refreshed session only reloads
// the profile, so a reload keeps the user on the page they were on.
func (r *Router) HandleEvent(ctx context.Context, change identity.AuthStateChange) {
	switch change.Event {
	case identity.EventSignedIn:
		r.onSignedIn(ctx, change.Session)
	case identity.EventSignedOut:
		r.setProfile(nil)
		if r.nav.Location() != domain.RouteHome {
			r.nav.Navigate(domain.RouteHome)
		}
	case identity.EventInitialSession, identity.EventTokenRefreshed:
		if change.Session == nil {
			r.setProfile(nil)
			return
		}
		r.setProfile(r.FetchProfile(ctx, change.Session.AccountID))
	default:
		r.log.Debug("ignoring auth event", "event", change.Event)
	}
}

func (r *Router) onSignedIn(ctx context.Context, s *identity.Session) {
	if s == nil {
		return
	}
	profile := r.FetchProfile(ctx, s.AccountID)
	if profile == nil {
		r.setProfile(nil)
		r.notify.Notify(Notice{Level: NoticeError, Message: MsgProfileMissing})
		if err := r.auth.SignOut(ctx, identity.ScopeLocal); err != nil {
			r.log.Error("forced sign-out failed", "identityId", s.AccountID.Hex(), "error", err)
		}
		return
	}
	r.setProfile(profile)
	r.nav.Navigate(r.DecideLandingRoute(ctx, profile))
}

// SignIn ends any existing session, then authenticates. Failures are shown to
// the user and returned.
func (r *Router) SignIn(ctx context.Context, email, password string) (*domain.Profile, error) {
	if r.auth.Session() != nil {
		if err := r.auth.SignOut(ctx, identity.ScopeLocal); err != nil {
			r.log.Debug("ending previous session failed", "error", err)
		}
	}

	session, err := r.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailNotConfirmed):
			r.notify.Notify(Notice{Level: NoticeError, Message: MsgEmailNotConfirmed})
		case errors.Is(err, identity.ErrInvalidCredentials):
			r.notify.Notify(Notice{Level: NoticeError, Message: MsgInvalidCredentials})
		default:
			r.log.Error("sign in failed", "email", domain.NormalizeEmail(email), "error", err)
			r.notify.Notify(Notice{Level: NoticeError, Message: MsgSignInFailed})
		}
		return nil, err
	}

	// The SIGNED_IN handler has already run; it ends the session when the
	// profile is missing.
	if r.auth.Session() == nil {
		return nil, ErrProfileMissing
	}
	profile := r.FetchProfile(ctx, session.AccountID)
	if profile != nil {
		r.setProfile(profile)
	}
	return profile, nil
}

// SignUpRequest carries a registration.
type SignUpRequest struct {
	Email           string
	Password        string
	FullName        string
	Role            domain.Role
	LinkedPartnerID *primitive.ObjectID
}

// SignUp registers an identity. Role, linked partner (customers) and pending
// approval (partners) travel as registration metadata. No landing route is
// decided here.
func (r *Router) SignUp(ctx context.Context, req SignUpRequest) (*domain.Account, error) {
	meta := domain.SignUpMetadata{FullName: req.FullName, Role: req.Role}
	switch req.Role {
	case domain.RoleCustomer:
		meta.LinkedPartnerID = req.LinkedPartnerID
	case domain.RolePartner:
		meta.ApprovalStatus = domain.ApprovalPending
	}

	account, session, err := r.auth.SignUp(ctx, req.Email, req.Password, meta)
	if err != nil {
		if errors.Is(err, identity.ErrUserAlreadyExists) {
			r.notify.Notify(Notice{Level: NoticeError, Message: MsgUserAlreadyExists})
		} else {
			r.log.Error("sign up failed", "email", domain.NormalizeEmail(req.Email), "error", err)
			r.notify.Notify(Notice{Level: NoticeError, Message: MsgSignUpFailed})
		}
		return nil, err
	}
	if session != nil {
		r.notify.Notify(Notice{Level: NoticeInfo, Message: MsgSignUpSignedIn})
	} else {
		r.notify.Notify(Notice{Level: NoticeInfo, Message: MsgSignUpSucceeded})
	}
	return account, nil
}

// SignOut terminates the session remotely on a best-effort basis, always
// clears local state and returns home. The remote error is returned after
// cleanup.
func (r *Router) SignOut(ctx context.Context, scope identity.SignOutScope) error {
	err := r.auth.SignOut(ctx, scope)

	r.setProfile(nil)
	if r.nav.Location() != domain.RouteHome {
		r.nav.Navigate(domain.RouteHome)
	}

	if err != nil {
		r.log.Warn("remote sign-out failed", "error", err)
		r.notify.Notify(Notice{Level: NoticeError, Message: MsgSignOutIncomplete})
		return err
	}
	r.notify.Notify(Notice{Level: NoticeInfo, Message: MsgSignedOut})
	return nil
}
