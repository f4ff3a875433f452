package repository

import (
	"alcyxob/wellness-portal/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// AccountRepository stores identity accounts (credentials and confirmation state).
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error)
	GetByConfirmationToken(ctx context.Context, token string) (*domain.Account, error)
	MarkEmailConfirmed(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProfileRepository reads and writes the profile table.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	SetApprovalStatus(ctx context.Context, id primitive.ObjectID, status domain.ApprovalStatus) error
}

// PartnerApplicationRepository is the append-only partner approval side table.
type PartnerApplicationRepository interface {
	Create(ctx context.Context, app *domain.PartnerApplication) (primitive.ObjectID, error)
	// LatestByEmail returns the most recently created record for the normalized email,
	// or ErrNotFound.
	LatestByEmail(ctx context.Context, email string) (*domain.PartnerApplication, error)
}

// ProgramRepository persists each customer's program aggregate as one document.
type ProgramRepository interface {
	GetByCustomerID(ctx context.Context, customerID primitive.ObjectID) (*domain.Program, error)
	// Save inserts or replaces the customer's program.
	Save(ctx context.Context, program *domain.Program) error
}

// UploadRepository stores photo upload metadata.
type UploadRepository interface {
	Create(ctx context.Context, upload *domain.Upload) (primitive.ObjectID, error)
	GetByObjectKey(ctx context.Context, objectKey string) (*domain.Upload, error)
	DeleteByObjectKey(ctx context.Context, objectKey string) error
}
