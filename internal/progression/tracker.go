// Package progression holds the program aggregate of a customer and the
// reducers that mutate it. Derived state (week status, completion, gates)
// is always computed from the aggregate, never stored.
package progression

import (
	"alcyxob/wellness-portal/internal/domain"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrWeekNotFound        = errors.New("week not found")
	ErrWeekLocked          = errors.New("week is locked")
	ErrDayLocked           = errors.New("day is not accessible yet")
	ErrVideoNotFound       = errors.New("video not found")
	ErrVideoLocked         = errors.New("video is not available yet")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidEntry        = errors.New("invalid entry")
)

// Clock supplies wall-clock time to the day gate.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the local wall clock.
var SystemClock Clock = systemClock{}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithIDGenerator replaces the generator used for new log identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) { t.newID = gen }
}

// Tracker owns one program aggregate. Every operation runs under a single
// writer lock and touches only the week it names.
type Tracker struct {
	mu       sync.Mutex
	program  *domain.Program
	clock    Clock
	newID    func() string
	validate *validator.Validate
}

var sharedValidator = validator.New()

// NewTracker takes ownership of a copy of program.
func NewTracker(program *domain.Program, opts ...Option) *Tracker {
	t := &Tracker{
		program:  program.Clone(),
		clock:    SystemClock,
		newID:    uuid.NewString,
		validate: sharedValidator,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot returns a deep copy of the current aggregate.
func (t *Tracker) Snapshot() *domain.Program {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.program.Clone()
}

// View returns the aggregate with derived week state.
func (t *Tracker) View() ProgramView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return View(t.program, t.clock.Now())
}

// Week returns a single week with its derived state.
func (t *Tracker) Week(weekNumber int) (WeekView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return WeekView{}, err
	}
	p := t.program.Clone()
	return viewWeek(p, &p.Weeks[w.Number-1], t.clock.Now()), nil
}

// CanCompleteWeek reports the completion gate for a week.
func (t *Tracker) CanCompleteWeek(weekNumber int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return false, err
	}
	return CanCompleteWeek(w), nil
}

// WeekCompletion returns the completion percentage of a week.
func (t *Tracker) WeekCompletion(weekNumber int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return 0, err
	}
	return WeekCompletion(t.program, w), nil
}

// MarkVideoWatched flips a video to watched. Watching twice is a no-op.
func (t *Tracker) MarkVideoWatched(weekNumber int, videoID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return err
	}
	for i := range w.Videos {
		v := &w.Videos[i]
		if v.ID != videoID {
			continue
		}
		if v.Watched {
			return nil
		}
		if !CanWatch(t.program, weekNumber, v, t.clock.Now()) {
			return ErrVideoLocked
		}
		v.Watched = true
		return nil
	}
	return ErrVideoNotFound
}

// AddMealLog appends a meal entry under a fresh identifier and returns it.
func (t *Tracker) AddMealLog(weekNumber int, entry domain.MealLog) (domain.MealLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.openDay(weekNumber, entry.Day)
	if err != nil {
		return domain.MealLog{}, err
	}
	if err := t.validate.Struct(entry); err != nil {
		return domain.MealLog{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	entry.ID = t.newID()
	w.MealLogs = append(w.MealLogs, entry)
	return entry, nil
}

// AddWeightLog appends a weight entry under a fresh identifier and returns it.
func (t *Tracker) AddWeightLog(weekNumber int, entry domain.WeightLog) (domain.WeightLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.openDay(weekNumber, entry.Day)
	if err != nil {
		return domain.WeightLog{}, err
	}
	if err := t.validate.Struct(entry); err != nil {
		return domain.WeightLog{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	entry.ID = t.newID()
	w.WeightLogs = append(w.WeightLogs, entry)
	return entry, nil
}

// EditMealLog merges update into the entry with id. It reports false and
// changes nothing when the id is not in the week.
func (t *Tracker) EditMealLog(weekNumber int, id string, update domain.MealLogUpdate) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return false, err
	}
	if err := t.validate.Struct(update); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	for i := range w.MealLogs {
		if w.MealLogs[i].ID == id {
			applyMealUpdate(&w.MealLogs[i], update)
			return true, nil
		}
	}
	return false, nil
}

// EditWeightLog merges update into the entry with id; see EditMealLog.
func (t *Tracker) EditWeightLog(weekNumber int, id string, update domain.WeightLogUpdate) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return false, err
	}
	if err := t.validate.Struct(update); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	for i := range w.WeightLogs {
		if w.WeightLogs[i].ID == id {
			applyWeightUpdate(&w.WeightLogs[i], update)
			return true, nil
		}
	}
	return false, nil
}

// DeleteMealLog removes the entry with id and returns it. Unknown ids are a no-op.
func (t *Tracker) DeleteMealLog(weekNumber int, id string) (*domain.MealLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return nil, err
	}
	for i := range w.MealLogs {
		if w.MealLogs[i].ID == id {
			removed := w.MealLogs[i]
			w.MealLogs = append(w.MealLogs[:i:i], w.MealLogs[i+1:]...)
			return &removed, nil
		}
	}
	return nil, nil
}

// DeleteWeightLog removes the entry with id and returns it. Unknown ids are a no-op.
func (t *Tracker) DeleteWeightLog(weekNumber int, id string) (*domain.WeightLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, err := t.week(weekNumber)
	if err != nil {
		return nil, err
	}
	for i := range w.WeightLogs {
		if w.WeightLogs[i].ID == id {
			removed := w.WeightLogs[i]
			w.WeightLogs = append(w.WeightLogs[:i:i], w.WeightLogs[i+1:]...)
			return &removed, nil
		}
	}
	return nil, nil
}

// CompleteWeek closes the current week and makes the next one current.
//
// It does not check CanCompleteWeek: callers decide whether to expose the
// action and must check the gate first. Weeks already completed are a
// no-op, locked weeks are rejected, and completing the final week marks
// the program finished without moving CurrentWeek past TotalWeeks.
func (t *Tracker) CompleteWeek(weekNumber int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.week(weekNumber); err != nil {
		return err
	}
	switch WeekStatus(t.program, weekNumber) {
	case domain.WeekCompleted:
		return nil
	case domain.WeekLocked:
		return ErrWeekLocked
	}
	if weekNumber >= t.program.TotalWeeks {
		t.program.Finished = true
		return nil
	}
	t.program.CurrentWeek = weekNumber + 1
	return nil
}

func (t *Tracker) week(weekNumber int) (*domain.ProgramWeek, error) {
	if weekNumber < 1 || weekNumber > len(t.program.Weeks) {
		return nil, ErrWeekNotFound
	}
	return &t.program.Weeks[weekNumber-1], nil
}

func (t *Tracker) openDay(weekNumber, day int) (*domain.ProgramWeek, error) {
	w, err := t.week(weekNumber)
	if err != nil {
		return nil, err
	}
	if WeekStatus(t.program, weekNumber) == domain.WeekLocked {
		return nil, ErrWeekLocked
	}
	if !IsDayAccessible(t.program, weekNumber, day, t.clock.Now()) {
		return nil, ErrDayLocked
	}
	return w, nil
}

func applyMealUpdate(m *domain.MealLog, u domain.MealLogUpdate) {
	if u.Date != nil {
		m.Date = *u.Date
	}
	if u.MealType != nil {
		m.MealType = *u.MealType
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if u.Time != nil {
		m.Time = *u.Time
	}
	if u.Completed != nil {
		m.Completed = *u.Completed
	}
	if u.Photo != nil {
		m.Photo = *u.Photo
	}
}

func applyWeightUpdate(w *domain.WeightLog, u domain.WeightLogUpdate) {
	if u.Date != nil {
		w.Date = *u.Date
	}
	if u.Weight != nil {
		w.Weight = *u.Weight
	}
	if u.Notes != nil {
		w.Notes = *u.Notes
	}
	if u.Completed != nil {
		w.Completed = *u.Completed
	}
	if u.Photo != nil {
		w.Photo = *u.Photo
	}
}
