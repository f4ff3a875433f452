package mongo

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCollectionName = "user_details"

type mongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a new profile repository.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

// Create inserts a profile. The caller sets ID to the owning account's ID.
func (r *mongoProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if profile.ID == primitive.NilObjectID || profile.Email == "" || !profile.Role.Valid() {
		return errors.New("profile id, email and a valid role are required")
	}
	profile.Email = domain.NormalizeEmail(profile.Email)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID is the single-row primary key lookup the session router relies on.
func (r *mongoProfileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

// SetApprovalStatus updates the approval mirror on a partner profile.
func (r *mongoProfileRepository) SetApprovalStatus(ctx context.Context, id primitive.ObjectID, status domain.ApprovalStatus) error {
	filter := bson.M{"_id": id, "role": domain.RolePartner}
	update := bson.M{"$set": bson.M{"approvalStatus": status}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoProfileRepository) findOne(ctx context.Context, filter bson.M) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureProfileIndexes creates necessary indexes for the profile collection.
func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "linkedPartnerId", Value: 1}},
			Options: options.Index().SetSparse(true), // customers only
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
