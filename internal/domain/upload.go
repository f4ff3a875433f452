package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Upload stores metadata about a log photo uploaded by a customer.
// The actual file resides in S3.
type Upload struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CustomerID  primitive.ObjectID `bson:"customerId" json:"customerId"`
	WeekNumber  int                `bson:"weekNumber" json:"weekNumber"`
	S3ObjectKey string             `bson:"s3ObjectKey" json:"objectKey"`
	ContentType string             `bson:"contentType" json:"contentType"` // e.g. "image/jpeg"
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
