// Package memory holds in-process implementations of the repository
// interfaces. They back the "memory" database driver and the tests.
package memory

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountRepository is an in-memory repository.AccountRepository.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]domain.Account
	// Err, when set, is returned by every call.
	Err error
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[primitive.ObjectID]domain.Account)}
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return primitive.NilObjectID, r.Err
	}
	email := domain.NormalizeEmail(account.Email)
	for _, a := range r.accounts {
		if a.Email == email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	account.ID = primitive.NewObjectID()
	account.Email = email
	now := time.Now().UTC()
	account.CreatedAt, account.UpdatedAt = now, now
	r.accounts[account.ID] = *account
	return account.ID, nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Email == domain.NormalizeEmail(email) })
}

func (r *AccountRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.ID == id })
}

func (r *AccountRepository) GetByConfirmationToken(_ context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(a domain.Account) bool { return a.ConfirmationToken == token })
}

func (r *AccountRepository) MarkEmailConfirmed(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.EmailConfirmed = true
	a.ConfirmationToken = ""
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return nil
}

func (r *AccountRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *AccountRepository) find(match func(domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, a := range r.accounts {
		if match(a) {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ProfileRepository is an in-memory repository.ProfileRepository.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]domain.Profile
	Err      error
	// Calls counts GetByID invocations.
	Calls int
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[primitive.ObjectID]domain.Profile)}
}

func (r *ProfileRepository) Create(_ context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.profiles[profile.ID]; ok {
		return repository.ErrDuplicate
	}
	profile.Email = domain.NormalizeEmail(profile.Email)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	r.profiles[profile.ID] = *profile
	return nil
}

func (r *ProfileRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProfileRepository) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, p := range r.profiles {
		if p.Email == domain.NormalizeEmail(email) {
			found := p
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ProfileRepository) SetApprovalStatus(_ context.Context, id primitive.ObjectID, status domain.ApprovalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	p, ok := r.profiles[id]
	if !ok || p.Role != domain.RolePartner {
		return repository.ErrNotFound
	}
	p.ApprovalStatus = &status
	r.profiles[id] = p
	return nil
}

// PartnerApplicationRepository is an in-memory append-only side table.
type PartnerApplicationRepository struct {
	mu   sync.Mutex
	apps []domain.PartnerApplication
	Err  error
}

func NewPartnerApplicationRepository() *PartnerApplicationRepository {
	return &PartnerApplicationRepository{}
}

func (r *PartnerApplicationRepository) Create(_ context.Context, app *domain.PartnerApplication) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return primitive.NilObjectID, r.Err
	}
	app.ID = primitive.NewObjectID()
	app.Email = domain.NormalizeEmail(app.Email)
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	r.apps = append(r.apps, *app)
	return app.ID, nil
}

// LatestByEmail picks the newest createdAt; ties go to the later insert.
func (r *PartnerApplicationRepository) LatestByEmail(_ context.Context, email string) (*domain.PartnerApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	email = domain.NormalizeEmail(email)
	var latest *domain.PartnerApplication
	for i := range r.apps {
		a := r.apps[i]
		if a.Email != email {
			continue
		}
		if latest == nil || !a.CreatedAt.Before(latest.CreatedAt) {
			latest = &a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

// ProgramRepository is an in-memory repository.ProgramRepository. It stores
// deep copies so callers never share slices with the store.
type ProgramRepository struct {
	mu       sync.Mutex
	programs map[primitive.ObjectID]*domain.Program
	Err      error
}

func NewProgramRepository() *ProgramRepository {
	return &ProgramRepository{programs: make(map[primitive.ObjectID]*domain.Program)}
}

func (r *ProgramRepository) GetByCustomerID(_ context.Context, customerID primitive.ObjectID) (*domain.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.programs[customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProgramRepository) Save(_ context.Context, program *domain.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	now := time.Now().UTC()
	if program.ID == primitive.NilObjectID {
		program.ID = primitive.NewObjectID()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	r.programs[program.CustomerID] = program.Clone()
	return nil
}

// UploadRepository is an in-memory repository.UploadRepository.
type UploadRepository struct {
	mu      sync.Mutex
	uploads map[string]domain.Upload
	Err     error
}

func NewUploadRepository() *UploadRepository {
	return &UploadRepository{uploads: make(map[string]domain.Upload)}
}

func (r *UploadRepository) Create(_ context.Context, upload *domain.Upload) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return primitive.NilObjectID, r.Err
	}
	if _, ok := r.uploads[upload.S3ObjectKey]; ok {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	upload.ID = primitive.NewObjectID()
	upload.CreatedAt = time.Now().UTC()
	r.uploads[upload.S3ObjectKey] = *upload
	return upload.ID, nil
}

func (r *UploadRepository) GetByObjectKey(_ context.Context, objectKey string) (*domain.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.uploads[objectKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UploadRepository) DeleteByObjectKey(_ context.Context, objectKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.uploads[objectKey]; !ok {
		return repository.ErrNotFound
	}
	delete(r.uploads, objectKey)
	return nil
}

var (
	_ repository.AccountRepository            = (*AccountRepository)(nil)
	_ repository.ProfileRepository            = (*ProfileRepository)(nil)
	_ repository.PartnerApplicationRepository = (*PartnerApplicationRepository)(nil)
	_ repository.ProgramRepository            = (*ProgramRepository)(nil)
	_ repository.UploadRepository             = (*UploadRepository)(nil)
)
