package progression

import (
	"alcyxob/wellness-portal/internal/domain"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var weeklyFocus = []string{
	"Foundations: baseline habits and hydration",
	"Balanced plates and portion awareness",
	"Protein timing and recovery",
	"Mindful eating and hunger cues",
	"Sleep and stress",
	"Movement snacks and daily steps",
	"Meal prep for busy weeks",
	"Eating out without derailing",
	"Plateaus and metabolic adaptation",
	"Building sustainable routines",
	"Relapse prevention",
	"Maintenance and next steps",
}

// SeedProgram builds the default program for a new customer: totalWeeks weeks
// with three videos each, starting at week 1.
func SeedProgram(customerID primitive.ObjectID, planName string, totalWeeks int) *domain.Program {
	if totalWeeks < 1 {
		totalWeeks = 1
	}
	p := &domain.Program{
		CustomerID:   customerID,
		PlanName:     planName,
		TotalWeeks:   totalWeeks,
		CurrentWeek:  1,
		Weeks:        make([]domain.ProgramWeek, totalWeeks),
		Appointments: []domain.Appointment{},
	}
	for i := range p.Weeks {
		n := i + 1
		p.Weeks[i] = domain.ProgramWeek{
			Number:     n,
			Focus:      weeklyFocus[i%len(weeklyFocus)],
			Videos:     seedVideos(n),
			MealLogs:   []domain.MealLog{},
			WeightLogs: []domain.WeightLog{},
		}
	}
	return p
}

func seedVideos(week int) []domain.Video {
	day3, day5 := 3, 5
	return []domain.Video{
		{
			ID:         fmt.Sprintf("w%d-intro", week),
			Title:      fmt.Sprintf("Week %d kickoff", week),
			Duration:   "8:30",
			AccessType: domain.AccessOpen,
			URL:        fmt.Sprintf("/videos/week-%d/intro.mp4", week),
		},
		{
			ID:          fmt.Sprintf("w%d-midweek", week),
			Title:       "Midweek check-in",
			Duration:    "12:00",
			AccessType:  domain.AccessDaily,
			DayRequired: &day3,
			URL:         fmt.Sprintf("/videos/week-%d/midweek.mp4", week),
		},
		{
			ID:          fmt.Sprintf("w%d-review", week),
			Title:       "Weekly review",
			Duration:    "10:15",
			AccessType:  domain.AccessDaily,
			DayRequired: &day5,
			URL:         fmt.Sprintf("/videos/week-%d/review.mp4", week),
		},
	}
}
