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

const partnerApplicationCollectionName = "partner_applications"

type mongoPartnerApplicationRepository struct {
	collection *mongo.Collection
}

// NewMongoPartnerApplicationRepository creates the partner application side table.
func NewMongoPartnerApplicationRepository(db *mongo.Database) repository.PartnerApplicationRepository {
	return &mongoPartnerApplicationRepository{
		collection: db.Collection(partnerApplicationCollectionName),
	}
}

// Create appends a record. Existing records for the same email are never touched.
func (r *mongoPartnerApplicationRepository) Create(ctx context.Context, app *domain.PartnerApplication) (primitive.ObjectID, error) {
	if app.Email == "" || app.Status == "" {
		return primitive.NilObjectID, errors.New("partner application requires email and status")
	}
	app.ID = primitive.NewObjectID()
	app.Email = domain.NormalizeEmail(app.Email)
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, app)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted application ID")
	}
	return insertedID, nil
}

// LatestByEmail returns the newest record for the normalized email.
func (r *mongoPartnerApplicationRepository) LatestByEmail(ctx context.Context, email string) (*domain.PartnerApplication, error) {
	var app domain.PartnerApplication
	filter := bson.M{"email": domain.NormalizeEmail(email)}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&app)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// EnsurePartnerApplicationIndexes backs the latest-by-email lookup.
func EnsurePartnerApplicationIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
