package service

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidDecision      = errors.New("decision must be approved, rejected or pending")
	ErrNotPartner           = errors.New("profile is not a partner")
	ErrLinkedPartnerInvalid = errors.New("linked partner does not exist")
	ErrApplicationNotFound  = errors.New("partner application not found")
)

type PartnerService interface {
	// Decide appends an admin decision for the partner with email and mirrors
	// it onto the partner's profile.
	Decide(ctx context.Context, adminID primitive.ObjectID, email string, status domain.ApplicationStatus, note string) (*domain.PartnerApplication, error)
	LatestApplication(ctx context.Context, email string) (*domain.PartnerApplication, error)
	// ProvisionProfile materializes the profile of a freshly registered
	// account. It is installed as an identity registration hook.
	ProvisionProfile(ctx context.Context, account *domain.Account) error
}

type partnerService struct {
	profiles     repository.ProfileRepository
	applications repository.PartnerApplicationRepository
	log          *logger.Logger
}

func NewPartnerService(profiles repository.ProfileRepository, applications repository.PartnerApplicationRepository, log *logger.Logger) PartnerService {
	return &partnerService{
		profiles:     profiles,
		applications: applications,
		log:          log.With("component", "partner"),
	}
}

func (s *partnerService) Decide(ctx context.Context, adminID primitive.ObjectID, email string, status domain.ApplicationStatus, note string) (*domain.PartnerApplication, error) {
	var mirror domain.ApprovalStatus
	switch status {
	case domain.ApplicationApproved:
		mirror = domain.ApprovalApproved
	case domain.ApplicationRejected, domain.ApplicationPending:
		mirror = domain.ApprovalPending
	default:
		return nil, ErrInvalidDecision
	}

	email = domain.NormalizeEmail(email)
	profile, err := s.profiles.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		profile = nil // decisions may precede sign-up
	case err != nil:
		return nil, err
	case !profile.IsPartner():
		return nil, ErrNotPartner
	}

	app := &domain.PartnerApplication{
		Email:     email,
		Status:    string(status),
		DecidedBy: &adminID,
		Note:      note,
	}
	if _, err := s.applications.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}

	if profile != nil {
		if err := s.profiles.SetApprovalStatus(ctx, profile.ID, mirror); err != nil {
			// Routing reads the side table, so a stale mirror is only logged.
			s.log.Warn("approval mirror not updated", "profileId", profile.ID.Hex(), "error", err)
		}
	}
	s.log.Info("partner decision recorded", "email", email, "status", status, "adminId", adminID.Hex())
	return app, nil
}

func (s *partnerService) LatestApplication(ctx context.Context, email string) (*domain.PartnerApplication, error) {
	app, err := s.applications.LatestByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

func (s *partnerService) ProvisionProfile(ctx context.Context, account *domain.Account) error {
	meta := account.Metadata
	profile := &domain.Profile{
		ID:    account.ID,
		Email: account.Email,
		Name:  meta.FullName,
		Role:  meta.Role,
	}

	switch meta.Role {
	case domain.RoleCustomer:
		if meta.LinkedPartnerID != nil {
			partner, err := s.profiles.GetByID(ctx, *meta.LinkedPartnerID)
			if err != nil || !partner.IsPartner() {
				return ErrLinkedPartnerInvalid
			}
			profile.LinkedPartnerID = meta.LinkedPartnerID
		}
	case domain.RolePartner:
		pending := domain.ApprovalPending
		profile.ApprovalStatus = &pending
	case domain.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", meta.Role)
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if meta.Role == domain.RolePartner {
		app := &domain.PartnerApplication{Email: account.Email, Status: string(domain.ApplicationPending)}
		if _, err := s.applications.Create(ctx, app); err != nil {
			return fmt.Errorf("open partner application: %w", err)
		}
	}
	return nil
}

// RegistrationHook adapts ProvisionProfile to the identity service.
func RegistrationHook(s PartnerService) identity.RegistrationHook {
	return s.ProvisionProfile
}

// BootstrapAdmin registers a confirmed admin account when none exists for email.
func BootstrapAdmin(ctx context.Context, svc identity.Service, email, password, name string) error {
	account, _, err := svc.Register(ctx, email, password, domain.SignUpMetadata{FullName: name, Role: domain.RoleAdmin})
	if errors.Is(err, identity.ErrUserAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	if account.ConfirmationToken == "" {
		return nil
	}
	_, err = svc.ConfirmEmail(ctx, account.ConfirmationToken)
	return err
}
