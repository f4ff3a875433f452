package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeekStatus is derived from a week's number and the program's current week.
// It is never stored.
type WeekStatus string

const (
	WeekCompleted WeekStatus = "completed"
	WeekCurrent   WeekStatus = "current"
	WeekLocked    WeekStatus = "locked"
)

// AccessType controls when a video may be played.
type AccessType string

const (
	AccessOpen   AccessType = "open"
	AccessDaily  AccessType = "daily" // unlocked on DayRequired
	AccessLocked AccessType = "locked"
)

// Program is a customer's multi-week coaching program.
type Program struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CustomerID   primitive.ObjectID `bson:"customerId" json:"customerId"`
	PlanName     string             `bson:"planName" json:"planName"`
	TotalWeeks   int                `bson:"totalWeeks" json:"totalWeeks"`
	CurrentWeek  int                `bson:"currentWeek" json:"currentWeek"` // 1-indexed
	Finished     bool               `bson:"finished" json:"finished"`       // final week completed
	Weeks        []ProgramWeek      `bson:"weeks" json:"weeks"`
	Appointments []Appointment      `bson:"appointments" json:"appointments"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProgramWeek is one week of a Program. Number matches its position (1-indexed).
type ProgramWeek struct {
	Number     int         `bson:"number" json:"number"`
	Focus      string      `bson:"focus" json:"focus"`
	Videos     []Video     `bson:"videos" json:"videos"`
	MealLogs   []MealLog   `bson:"mealLogs" json:"mealLogs"`
	WeightLogs []WeightLog `bson:"weightLogs" json:"weightLogs"`
}

type Video struct {
	ID          string     `bson:"id" json:"id"`
	Title       string     `bson:"title" json:"title"`
	Duration    string     `bson:"duration" json:"duration"`
	Watched     bool       `bson:"watched" json:"watched"`
	AccessType  AccessType `bson:"accessType" json:"accessType"`
	DayRequired *int       `bson:"dayRequired,omitempty" json:"dayRequired,omitempty"`
	URL         string     `bson:"url" json:"url"`
}

type MealLog struct {
	ID          string `bson:"id" json:"id"`
	Day         int    `bson:"day" json:"day" validate:"min=1,max=7"`
	Date        string `bson:"date" json:"date" validate:"required"`
	MealType    string `bson:"mealType" json:"mealType" validate:"required,oneof=breakfast lunch dinner snack"`
	Description string `bson:"description" json:"description" validate:"required"`
	Time        string `bson:"time" json:"time"`
	Completed   bool   `bson:"completed" json:"completed"`
	Photo       string `bson:"photo,omitempty" json:"photo,omitempty"` // storage object key
}

type WeightLog struct {
	ID        string  `bson:"id" json:"id"`
	Day       int     `bson:"day" json:"day" validate:"min=1,max=7"`
	Date      string  `bson:"date" json:"date" validate:"required"`
	Weight    float64 `bson:"weight" json:"weight" validate:"gt=0"`
	Notes     string  `bson:"notes" json:"notes"`
	Completed bool    `bson:"completed" json:"completed"`
	Photo     string  `bson:"photo,omitempty" json:"photo,omitempty"` // storage object key
}

// MealLogUpdate carries the fields of a partial meal log edit. Nil fields are
// left untouched.
type MealLogUpdate struct {
	Date        *string `json:"date,omitempty" validate:"omitempty,min=1"`
	MealType    *string `json:"mealType,omitempty" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1"`
	Time        *string `json:"time,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Photo       *string `json:"photo,omitempty"`
}

// WeightLogUpdate carries the fields of a partial weight log edit.
type WeightLogUpdate struct {
	Date      *string  `json:"date,omitempty" validate:"omitempty,min=1"`
	Weight    *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Notes     *string  `json:"notes,omitempty"`
	Completed *bool    `json:"completed,omitempty"`
	Photo     *string  `json:"photo,omitempty"`
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	out := *p
	out.Weeks = make([]ProgramWeek, len(p.Weeks))
	for i, w := range p.Weeks {
		out.Weeks[i] = w.clone()
	}
	out.Appointments = make([]Appointment, len(p.Appointments))
	for i, a := range p.Appointments {
		if a.RescheduleRequest != nil {
			req := *a.RescheduleRequest
			a.RescheduleRequest = &req
		}
		out.Appointments[i] = a
	}
	return &out
}

func (w ProgramWeek) clone() ProgramWeek {
	out := w
	out.Videos = make([]Video, len(w.Videos))
	for i, v := range w.Videos {
		if v.DayRequired != nil {
			day := *v.DayRequired
			v.DayRequired = &day
		}
		out.Videos[i] = v
	}
	out.MealLogs = append([]MealLog{}, w.MealLogs...)
	out.WeightLogs = append([]WeightLog{}, w.WeightLogs...)
	return out
}
