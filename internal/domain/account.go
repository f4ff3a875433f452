package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is the identity-service record behind a session: credentials and
// confirmation state. Profiles reference it by ID.
type Account struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email             string             `bson:"email" json:"email"`    // normalized, unique
	PasswordHash      string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	EmailConfirmed    bool               `bson:"emailConfirmed" json:"emailConfirmed"`
	ConfirmationToken string             `bson:"confirmationToken,omitempty" json:"-"`
	Metadata          SignUpMetadata     `bson:"metadata" json:"metadata"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SignUpMetadata travels with a registration and is materialized into the
// profile table by the post-registration hook.
type SignUpMetadata struct {
	FullName        string              `bson:"fullName" json:"fullName"`
	Role            Role                `bson:"role" json:"role"`
	LinkedPartnerID *primitive.ObjectID `bson:"linkedPartnerId,omitempty" json:"linkedPartnerId,omitempty"` // customers only
	ApprovalStatus  ApprovalStatus      `bson:"approvalStatus,omitempty" json:"approvalStatus,omitempty"`   // partners only
}
