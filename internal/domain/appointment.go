package domain

import "time"

// AppointmentStatus tracks the reschedule workflow:
// booked -> pending (reschedule requested) -> rescheduled (approved).
type AppointmentStatus string

const (
	AppointmentBooked      AppointmentStatus = "booked"
	AppointmentPending     AppointmentStatus = "pending"
	AppointmentRescheduled AppointmentStatus = "rescheduled"
)

type Appointment struct {
	ID                string             `bson:"id" json:"id"`
	Title             string             `bson:"title" json:"title"`
	Date              string             `bson:"date" json:"date"`
	Time              string             `bson:"time" json:"time"`
	Status            AppointmentStatus  `bson:"status" json:"status"`
	RescheduleRequest *RescheduleRequest `bson:"rescheduleRequest,omitempty" json:"rescheduleRequest,omitempty"`
}

type RescheduleRequest struct {
	RequestedDate string    `bson:"requestedDate" json:"requestedDate"`
	RequestedTime string    `bson:"requestedTime" json:"requestedTime"`
	Reason        string    `bson:"reason" json:"reason"`
	RequestedAt   time.Time `bson:"requestedAt" json:"requestedAt"`
}
