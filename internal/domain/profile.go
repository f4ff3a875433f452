package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleAdmin    Role = "admin"
	RolePartner  Role = "partner"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePartner, RoleCustomer:
		return true
	}
	return false
}

// ApprovalStatus mirrors the latest partner application decision on the
// profile. Routing never reads it; see PartnerApplication.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// Profile is the application-level record for a signed-in identity.
// Its ID is the ID of the identity Account it belongs to.
type Profile struct {
	ID              primitive.ObjectID  `bson:"_id" json:"id"`
	Email           string              `bson:"email" json:"email"`
	Name            string              `bson:"name" json:"name"`
	Role            Role                `bson:"role" json:"role"`
	ApprovalStatus  *ApprovalStatus     `bson:"approvalStatus,omitempty" json:"approvalStatus,omitempty"`
	LinkedPartnerID *primitive.ObjectID `bson:"linkedPartnerId,omitempty" json:"linkedPartnerId,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p *Profile) IsPartner() bool {
	return p.Role == RolePartner
}

func (p *Profile) IsCustomer() bool {
	return p.Role == RoleCustomer
}
