package identity

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/repository/memory"
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, requireConfirmed bool, hooks ...RegistrationHook) (Service, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	svc := NewLocalService(accounts, NewMemoryRevocationStore(), Config{
		JWTSecret:             "test-secret",
		JWTExpiration:         time.Hour,
		RequireConfirmedEmail: requireConfirmed,
	}, logger.Nop(), hooks...)
	return svc, accounts
}

var customerMeta = domain.SignUpMetadata{FullName: "Dana Doe", Role: domain.RoleCustomer}

func TestRegisterRequiresConfirmationBeforeSignIn(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newTestService(t, true)

	account, session, err := svc.Register(ctx, " Dana@Example.com", "s3cret-pass", customerMeta)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session != nil {
		t.Fatal("registration opened a session before confirmation")
	}
	if account.PasswordHash != "" {
		t.Error("password hash leaked from Register")
	}

	if _, err := svc.Authenticate(ctx, "dana@example.com", "s3cret-pass"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("unconfirmed sign-in err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "dana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}

	stored, err := accounts.GetByEmail(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("stored account: %v", err)
	}
	if _, err := svc.ConfirmEmail(ctx, "not-a-token"); !errors.Is(err, ErrInvalidConfirmation) {
		t.Fatalf("bad token err = %v", err)
	}
	if _, err := svc.ConfirmEmail(ctx, stored.ConfirmationToken); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "DANA@example.com ", "s3cret-pass"); err != nil {
		t.Fatalf("confirmed sign-in: %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndRunsHooks(t *testing.T) {
	ctx := context.Background()
	var hooked []string
	hook := func(_ context.Context, a *domain.Account) error {
		hooked = append(hooked, a.Email)
		return nil
	}
	svc, _ := newTestService(t, false, hook)

	_, session, err := svc.Register(ctx, "p@clinic.io", "password1", domain.SignUpMetadata{FullName: "Pat", Role: domain.RolePartner})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session == nil {
		t.Fatal("no session without confirmation requirement")
	}
	if len(hooked) != 1 || hooked[0] != "p@clinic.io" {
		t.Errorf("hooks ran for %v", hooked)
	}
	if _, _, err := svc.Register(ctx, "P@Clinic.io", "password2", customerMeta); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
}

func TestRegisterRollsBackWhenHookFails(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	fail := true
	svc, accounts := newTestService(t, false, func(context.Context, *domain.Account) error {
		if fail {
			return boom
		}
		return nil
	})

	if _, _, err := svc.Register(ctx, "x@y.z", "password1", customerMeta); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want hook error", err)
	}
	if _, err := accounts.GetByEmail(ctx, "x@y.z"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("account left behind after failed hook: err = %v", err)
	}

	fail = false
	account, session, err := svc.Register(ctx, "x@y.z", "password1", customerMeta)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if account == nil || session == nil {
		t.Fatal("retry returned no account or session")
	}
}

type recordingMailer struct {
	email, token string
}

func (m *recordingMailer) SendConfirmation(_ context.Context, email, token string) error {
	m.email, m.token = email, token
	return nil
}

func TestRegisterSendsConfirmationThroughMailer(t *testing.T) {
	ctx := context.Background()
	mailer := &recordingMailer{}
	accounts := memory.NewAccountRepository()
	svc := NewLocalService(accounts, NewMemoryRevocationStore(), Config{
		JWTSecret:             "test-secret",
		RequireConfirmedEmail: true,
		Mailer:                mailer,
	}, logger.Nop())

	if _, _, err := svc.Register(ctx, "Mail@Example.com", "password1", customerMeta); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, err := accounts.GetByEmail(ctx, "mail@example.com")
	if err != nil {
		t.Fatalf("stored account: %v", err)
	}
	if mailer.email != "mail@example.com" || mailer.token == "" || mailer.token != stored.ConfirmationToken {
		t.Errorf("mailer got (%q, %q), want stored token %q", mailer.email, mailer.token, stored.ConfirmationToken)
	}
	if _, err := svc.ConfirmEmail(ctx, mailer.token); err != nil {
		t.Errorf("confirm with mailed token: %v", err)
	}
}

func TestVerifyAndTerminate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)
	if _, _, err := svc.Register(ctx, "c@d.e", "password1", customerMeta); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := svc.Authenticate(ctx, "c@d.e", "password1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	second, err := svc.Authenticate(ctx, "c@d.e", "password1")
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	got, err := svc.Verify(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != first.ID || got.AccountID != first.AccountID {
		t.Errorf("verified session = %+v", got)
	}
	if _, err := svc.Verify(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token err = %v", err)
	}

	if err := svc.TerminateSession(ctx, first, ScopeLocal); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, err := svc.Verify(ctx, first.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("revoked session err = %v", err)
	}
	if _, err := svc.Verify(ctx, second.AccessToken); err != nil {
		t.Errorf("local sign-out revoked another session: %v", err)
	}

	if err := svc.TerminateSession(ctx, second, ScopeGlobal); err != nil {
		t.Fatalf("global terminate: %v", err)
	}
	if _, err := svc.Verify(ctx, second.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("global sign-out left session valid: %v", err)
	}
	third, err := svc.Authenticate(ctx, "c@d.e", "password1")
	if err != nil {
		t.Fatalf("sign in after global sign-out: %v", err)
	}
	if _, err := svc.Verify(ctx, third.AccessToken); err != nil {
		t.Errorf("session issued after global sign-out rejected: %v", err)
	}
}

func TestClientEmitsCommittedState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)
	if _, _, err := svc.Register(ctx, "e@f.g", "password1", customerMeta); err != nil {
		t.Fatalf("register: %v", err)
	}

	client := NewClient(svc)
	var events []AuthEvent
	unsubscribe := client.OnAuthStateChange(func(_ context.Context, change AuthStateChange) {
		events = append(events, change.Event)
		// the client must already hold the session being announced
		if client.Session() != change.Session {
			t.Errorf("%s delivered before the session was committed", change.Event)
		}
	})

	session, err := client.SignInWithPassword(ctx, "e@f.g", "password1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := client.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := client.SignOut(ctx, ScopeLocal); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if client.Session() != nil {
		t.Error("session kept after sign-out")
	}

	restored := NewClient(svc)
	if _, err := restored.Restore(ctx, session.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("restore of signed-out token err = %v", err)
	}

	unsubscribe()
	unsubscribe()
	if _, err := client.SignInWithPassword(ctx, "e@f.g", "password1"); err != nil {
		t.Fatalf("sign in again: %v", err)
	}

	want := []AuthEvent{EventSignedIn, EventTokenRefreshed, EventSignedOut}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}
