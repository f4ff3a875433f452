package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApplicationStatus is the state of a partner application. Stored values are
// free-form strings; the constants below are the ones the router reasons about.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
	// ApplicationNotFound is returned when no application exists for an email.
	ApplicationNotFound ApplicationStatus = "not_found"
	// ApplicationLookupFailed is returned when the lookup itself failed.
	ApplicationLookupFailed ApplicationStatus = "lookup_failed"
)

// NormalizeApplicationStatus lower-cases and trims a stored status.
func NormalizeApplicationStatus(s string) ApplicationStatus {
	return ApplicationStatus(strings.ToLower(strings.TrimSpace(s)))
}

// PartnerApplication is an append-only record of a partner's approval state,
// keyed by normalized email. The most recently created record wins.
type PartnerApplication struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email     string              `bson:"email" json:"email"`
	Status    string              `bson:"status" json:"status"`
	DecidedBy *primitive.ObjectID `bson:"decidedBy,omitempty" json:"decidedBy,omitempty"`
	Note      string              `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// NormalizeEmail lower-cases and trims an email so that lookups are case and
// whitespace insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
