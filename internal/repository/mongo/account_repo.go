package mongo

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const accountCollectionName = "accounts"

// mongoAccountRepository implements repository.AccountRepository using MongoDB.
type mongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new account repository.
// It expects a connected *mongo.Database instance.
func NewMongoAccountRepository(db *mongo.Database) repository.AccountRepository {
	return &mongoAccountRepository{
		collection: db.Collection(accountCollectionName),
	}
}

// Create inserts a new account. The email is stored normalized.
func (r *mongoAccountRepository) Create(ctx context.Context, account *domain.Account) (primitive.ObjectID, error) {
	if account.Email == "" || account.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("account email and password hash are required")
	}

	account.ID = primitive.NewObjectID()
	account.Email = domain.NormalizeEmail(account.Email)
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByEmail retrieves an account by its (normalized) email address.
func (r *mongoAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

// GetByID retrieves an account by its ObjectID.
func (r *mongoAccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByConfirmationToken retrieves the account a confirmation link was issued for.
func (r *mongoAccountRepository) GetByConfirmationToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"confirmationToken": token})
}

// MarkEmailConfirmed flips the confirmation flag and burns the token.
func (r *mongoAccountRepository) MarkEmailConfirmed(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set":   bson.M{"emailConfirmed": true, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"confirmationToken": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an account. Used to roll back a registration whose follow-up steps failed.
func (r *mongoAccountRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrDeleteFailed, err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var account domain.Account
	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// EnsureAccountIndexes creates necessary indexes for the accounts collection.
// Call this once during application startup.
func EnsureAccountIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "confirmationToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
