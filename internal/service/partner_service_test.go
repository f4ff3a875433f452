package service

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository/memory"
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type partnerFixture struct {
	svc      PartnerService
	profiles *memory.ProfileRepository
	apps     *memory.PartnerApplicationRepository
}

func newPartnerFixture() *partnerFixture {
	f := &partnerFixture{profiles: memory.NewProfileRepository(), apps: memory.NewPartnerApplicationRepository()}
	f.svc = NewPartnerService(f.profiles, f.apps, logger.Nop())
	return f
}

func TestProvisionPartnerOpensApplication(t *testing.T) {
	ctx := context.Background()
	f := newPartnerFixture()
	account := &domain.Account{ID: primitive.NewObjectID(), Email: "clinic@x.io", Metadata: domain.SignUpMetadata{FullName: "Clinic", Role: domain.RolePartner}}

	if err := f.svc.ProvisionProfile(ctx, account); err != nil {
		t.Fatalf("provision: %v", err)
	}
	p, err := f.profiles.GetByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.ApprovalStatus == nil || *p.ApprovalStatus != domain.ApprovalPending {
		t.Errorf("approval mirror = %v", p.ApprovalStatus)
	}
	app, err := f.svc.LatestApplication(ctx, "Clinic@X.io")
	if err != nil || domain.NormalizeApplicationStatus(app.Status) != domain.ApplicationPending {
		t.Errorf("application = %+v, %v", app, err)
	}
}

func TestProvisionCustomerChecksLinkedPartner(t *testing.T) {
	ctx := context.Background()
	f := newPartnerFixture()
	bogus := primitive.NewObjectID()
	account := &domain.Account{ID: primitive.NewObjectID(), Email: "c@x.io", Metadata: domain.SignUpMetadata{FullName: "C", Role: domain.RoleCustomer, LinkedPartnerID: &bogus}}
	if err := f.svc.ProvisionProfile(ctx, account); !errors.Is(err, ErrLinkedPartnerInvalid) {
		t.Fatalf("err = %v", err)
	}

	partner := &domain.Profile{ID: primitive.NewObjectID(), Email: "p@x.io", Role: domain.RolePartner}
	if err := f.profiles.Create(ctx, partner); err != nil {
		t.Fatal(err)
	}
	account.Metadata.LinkedPartnerID = &partner.ID
	if err := f.svc.ProvisionProfile(ctx, account); err != nil {
		t.Fatalf("provision: %v", err)
	}
	p, _ := f.profiles.GetByID(ctx, account.ID)
	if p.LinkedPartnerID == nil || *p.LinkedPartnerID != partner.ID || p.ApprovalStatus != nil {
		t.Errorf("profile = %+v", p)
	}
	if _, err := f.svc.LatestApplication(ctx, "c@x.io"); !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("customer got an application: %v", err)
	}
}

func TestDecideAppendsAndMirrors(t *testing.T) {
	ctx := context.Background()
	f := newPartnerFixture()
	admin := primitive.NewObjectID()
	account := &domain.Account{ID: primitive.NewObjectID(), Email: "clinic@x.io", Metadata: domain.SignUpMetadata{FullName: "Clinic", Role: domain.RolePartner}}
	if err := f.svc.ProvisionProfile(ctx, account); err != nil {
		t.Fatal(err)
	}

	app, err := f.svc.Decide(ctx, admin, " CLINIC@x.io", domain.ApplicationApproved, "verified license")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if app.DecidedBy == nil || *app.DecidedBy != admin || app.Email != "clinic@x.io" {
		t.Errorf("decision = %+v", app)
	}
	p, _ := f.profiles.GetByID(ctx, account.ID)
	if *p.ApprovalStatus != domain.ApprovalApproved {
		t.Errorf("mirror = %s", *p.ApprovalStatus)
	}

	if _, err := f.svc.Decide(ctx, admin, "clinic@x.io", domain.ApplicationRejected, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	latest, _ := f.svc.LatestApplication(ctx, "clinic@x.io")
	if latest.Status != string(domain.ApplicationRejected) {
		t.Errorf("latest = %s", latest.Status)
	}
	p, _ = f.profiles.GetByID(ctx, account.ID)
	if *p.ApprovalStatus != domain.ApprovalPending {
		t.Errorf("mirror after rejection = %s", *p.ApprovalStatus)
	}
}

func TestDecideValidation(t *testing.T) {
	ctx := context.Background()
	f := newPartnerFixture()
	admin := primitive.NewObjectID()
	if _, err := f.svc.Decide(ctx, admin, "a@x.io", domain.ApplicationNotFound, ""); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("sentinel status accepted: %v", err)
	}
	if err := f.profiles.Create(ctx, &domain.Profile{ID: primitive.NewObjectID(), Email: "cust@x.io", Role: domain.RoleCustomer}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Decide(ctx, admin, "cust@x.io", domain.ApplicationApproved, ""); !errors.Is(err, ErrNotPartner) {
		t.Errorf("customer approved: %v", err)
	}
	if _, err := f.svc.Decide(ctx, admin, "future@x.io", domain.ApplicationApproved, ""); err != nil {
		t.Errorf("decision ahead of sign-up: %v", err)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	f := newPartnerFixture()
	accounts := memory.NewAccountRepository()
	svc := identity.NewLocalService(accounts, identity.NewMemoryRevocationStore(), identity.Config{
		JWTSecret:             "test-secret",
		JWTExpiration:         time.Hour,
		RequireConfirmedEmail: true,
	}, logger.Nop(), RegistrationHook(f.svc))

	if err := BootstrapAdmin(ctx, svc, "root@x.io", "s3cret-pass", "Root"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := BootstrapAdmin(ctx, svc, "root@x.io", "s3cret-pass", "Root"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "root@x.io", "s3cret-pass"); err != nil {
		t.Fatalf("admin cannot sign in: %v", err)
	}
	p, err := f.profiles.GetByEmail(ctx, "root@x.io")
	if err != nil || !p.IsAdmin() {
		t.Errorf("admin profile = %+v, %v", p, err)
	}
}
