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

const programCollectionName = "programs"

type mongoProgramRepository struct {
	collection *mongo.Collection
}

// NewMongoProgramRepository creates a program repository. One document per customer.
func NewMongoProgramRepository(db *mongo.Database) repository.ProgramRepository {
	return &mongoProgramRepository{
		collection: db.Collection(programCollectionName),
	}
}

func (r *mongoProgramRepository) GetByCustomerID(ctx context.Context, customerID primitive.ObjectID) (*domain.Program, error) {
	var program domain.Program
	err := r.collection.FindOne(ctx, bson.M{"customerId": customerID}).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// Save upserts the whole aggregate keyed by customer.
func (r *mongoProgramRepository) Save(ctx context.Context, program *domain.Program) error {
	if program.CustomerID == primitive.NilObjectID {
		return errors.New("program requires customerId")
	}
	now := time.Now().UTC()
	if program.ID == primitive.NilObjectID {
		program.ID = primitive.NewObjectID()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now

	filter := bson.M{"customerId": program.CustomerID}
	_, err := r.collection.ReplaceOne(ctx, filter, program, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(repository.ErrUpdateFailed, err)
	}
	return nil
}

// EnsureProgramIndexes creates the unique customer index.
func EnsureProgramIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "customerId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
