package service

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/progression"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrWeekIncomplete       = errors.New("week requirements are not met yet")
	ErrLogNotFound          = errors.New("log entry not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrCustomerNotManaged   = errors.New("customer is not managed by this partner")
	ErrPhotoNotOwned        = errors.New("photo does not belong to this customer")
	ErrUploadURLError       = errors.New("failed to generate upload URL")
	ErrDownloadURLError     = errors.New("failed to generate download URL")
	ErrRescheduleNotPending = errors.New("appointment has no pending reschedule request")
	ErrPartnerNotApproved   = errors.New("partner application is not approved")
)

// UploadURLResponse carries a presigned PUT URL and the key the client
// reports back on the log entry.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// Actor is the authenticated caller of an operation on someone else's program.
type Actor struct {
	ID   primitive.ObjectID
	Role domain.Role
}

type ProgramService interface {
	GetProgram(ctx context.Context, customerID primitive.ObjectID) (*progression.ProgramView, error)
	GetWeek(ctx context.Context, customerID primitive.ObjectID, week int) (*progression.WeekView, error)

	MarkVideoWatched(ctx context.Context, customerID primitive.ObjectID, week int, videoID string) (*progression.WeekView, error)
	AddMealLog(ctx context.Context, customerID primitive.ObjectID, week int, entry domain.MealLog) (*domain.MealLog, error)
	AddWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, entry domain.WeightLog) (*domain.WeightLog, error)
	EditMealLog(ctx context.Context, customerID primitive.ObjectID, week int, id string, update domain.MealLogUpdate) (*progression.WeekView, error)
	EditWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, id string, update domain.WeightLogUpdate) (*progression.WeekView, error)
	DeleteMealLog(ctx context.Context, customerID primitive.ObjectID, week int, id string) error
	DeleteWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, id string) error
	CompleteWeek(ctx context.Context, customerID primitive.ObjectID, week int) (*progression.ProgramView, error)

	GetCustomerProgram(ctx context.Context, actor Actor, customerID primitive.ObjectID) (*progression.ProgramView, error)
	BookAppointment(ctx context.Context, actor Actor, customerID primitive.ObjectID, title, date, timeOfDay string) (*domain.Appointment, error)
	RequestReschedule(ctx context.Context, customerID primitive.ObjectID, appointmentID, date, timeOfDay, reason string) (*domain.Appointment, error)
	ApproveReschedule(ctx context.Context, actor Actor, customerID primitive.ObjectID, appointmentID string) (*domain.Appointment, error)

	RequestPhotoUploadURL(ctx context.Context, customerID primitive.ObjectID, week int, contentType string) (*UploadURLResponse, error)
	PhotoDownloadURL(ctx context.Context, customerID primitive.ObjectID, objectKey string) (string, error)
}

// ProgramServiceConfig shapes programs seeded on first access.
type ProgramServiceConfig struct {
	PlanName   string
	TotalWeeks int
	// Clock drives the day gate; nil means the system clock.
	Clock progression.Clock
}

type programService struct {
	programs     repository.ProgramRepository
	profiles     repository.ProfileRepository
	applications repository.PartnerApplicationRepository
	uploads      repository.UploadRepository
	fileStorage  storage.FileStorage
	cfg          ProgramServiceConfig
	log          *logger.Logger

	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

// NewProgramService creates a new instance of programService.
func NewProgramService(
	programs repository.ProgramRepository,
	profiles repository.ProfileRepository,
	applications repository.PartnerApplicationRepository,
	uploads repository.UploadRepository,
	fileStorage storage.FileStorage,
	cfg ProgramServiceConfig,
	log *logger.Logger,
) ProgramService {
	if cfg.Clock == nil {
		cfg.Clock = progression.SystemClock
	}
	return &programService{
		programs:     programs,
		profiles:     profiles,
		applications: applications,
		uploads:      uploads,
		fileStorage:  fileStorage,
		cfg:          cfg,
		log:          log.With("component", "program"),
		locks:        make(map[primitive.ObjectID]*sync.Mutex),
	}
}

func (s *programService) customerLock(customerID primitive.ObjectID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[customerID] = l
	}
	return l
}

// load returns a tracker over the customer's program, seeding and saving a
// new program on first access. Callers hold the customer lock.
func (s *programService) load(ctx context.Context, customerID primitive.ObjectID) (*progression.Tracker, error) {
	program, err := s.programs.GetByCustomerID(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		program = progression.SeedProgram(customerID, s.cfg.PlanName, s.cfg.TotalWeeks)
		if err := s.programs.Save(ctx, program); err != nil {
			return nil, fmt.Errorf("seed program: %w", err)
		}
		s.log.Info("seeded program", "customerId", customerID.Hex(), "weeks", program.TotalWeeks)
	} else if err != nil {
		return nil, err
	}
	return progression.NewTracker(program, progression.WithClock(s.cfg.Clock)), nil
}

// mutate applies op to the customer's program and persists the result when
// op reports a change. Operations on one customer are serialized.
func (s *programService) mutate(ctx context.Context, customerID primitive.ObjectID, op func(t *progression.Tracker) (bool, error)) (*progression.Tracker, error) {
	l := s.customerLock(customerID)
	l.Lock()
	defer l.Unlock()

	t, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	changed, err := op(t)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.programs.Save(ctx, t.Snapshot()); err != nil {
			return nil, fmt.Errorf("save program: %w", err)
		}
	}
	return t, nil
}

func (s *programService) read(ctx context.Context, customerID primitive.ObjectID) (*progression.Tracker, error) {
	return s.mutate(ctx, customerID, func(*progression.Tracker) (bool, error) { return false, nil })
}

func (s *programService) GetProgram(ctx context.Context, customerID primitive.ObjectID) (*progression.ProgramView, error) {
	t, err := s.read(ctx, customerID)
	if err != nil {
		return nil, err
	}
	view := t.View()
	return &view, nil
}

func (s *programService) GetWeek(ctx context.Context, customerID primitive.ObjectID, week int) (*progression.WeekView, error) {
	t, err := s.read(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return weekView(t, week)
}

func weekView(t *progression.Tracker, week int) (*progression.WeekView, error) {
	v, err := t.Week(week)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *programService) MarkVideoWatched(ctx context.Context, customerID primitive.ObjectID, week int, videoID string) (*progression.WeekView, error) {
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		return true, t.MarkVideoWatched(week, videoID)
	})
	if err != nil {
		return nil, err
	}
	return weekView(t, week)
}

func (s *programService) AddMealLog(ctx context.Context, customerID primitive.ObjectID, week int, entry domain.MealLog) (*domain.MealLog, error) {
	if entry.Photo != "" && !storage.OwnsObjectKey(customerID, entry.Photo) {
		return nil, ErrPhotoNotOwned
	}
	var added domain.MealLog
	_, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		var err error
		added, err = t.AddMealLog(week, entry)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *programService) AddWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, entry domain.WeightLog) (*domain.WeightLog, error) {
	if entry.Photo != "" && !storage.OwnsObjectKey(customerID, entry.Photo) {
		return nil, ErrPhotoNotOwned
	}
	var added domain.WeightLog
	_, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		var err error
		added, err = t.AddWeightLog(week, entry)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *programService) EditMealLog(ctx context.Context, customerID primitive.ObjectID, week int, id string, update domain.MealLogUpdate) (*progression.WeekView, error) {
	if update.Photo != nil && *update.Photo != "" && !storage.OwnsObjectKey(customerID, *update.Photo) {
		return nil, ErrPhotoNotOwned
	}
	var replaced string
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		var previous string
		if update.Photo != nil {
			if p := t.Snapshot(); week >= 1 && week <= len(p.Weeks) {
				for _, entry := range p.Weeks[week-1].MealLogs {
					if entry.ID == id {
						previous = entry.Photo
					}
				}
			}
		}
		found, err := t.EditMealLog(week, id, update)
		if err == nil && !found {
			err = ErrLogNotFound
		}
		if err == nil && update.Photo != nil && previous != *update.Photo {
			replaced = previous
		}
		return found, err
	})
	if err != nil {
		return nil, err
	}
	s.discardPhoto(ctx, replaced)
	return weekView(t, week)
}

func (s *programService) EditWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, id string, update domain.WeightLogUpdate) (*progression.WeekView, error) {
	if update.Photo != nil && *update.Photo != "" && !storage.OwnsObjectKey(customerID, *update.Photo) {
		return nil, ErrPhotoNotOwned
	}
	var replaced string
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		var previous string
		if update.Photo != nil {
			if p := t.Snapshot(); week >= 1 && week <= len(p.Weeks) {
				for _, entry := range p.Weeks[week-1].WeightLogs {
					if entry.ID == id {
						previous = entry.Photo
					}
				}
			}
		}
		found, err := t.EditWeightLog(week, id, update)
		if err == nil && !found {
			err = ErrLogNotFound
		}
		if err == nil && update.Photo != nil && previous != *update.Photo {
			replaced = previous
		}
		return found, err
	})
	if err != nil {
		return nil, err
	}
	s.discardPhoto(ctx, replaced)
	return weekView(t, week)
}

// DeleteMealLog removes the entry; unknown ids succeed without a change.
func (s *programService) DeleteMealLog(ctx context.Context, customerID primitive.ObjectID, week int, id string) error {
	var photo string
	_, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		removed, err := t.DeleteMealLog(week, id)
		if removed != nil {
			photo = removed.Photo
		}
		return removed != nil, err
	})
	if err != nil {
		return err
	}
	s.discardPhoto(ctx, photo)
	return nil
}

func (s *programService) DeleteWeightLog(ctx context.Context, customerID primitive.ObjectID, week int, id string) error {
	var photo string
	_, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		removed, err := t.DeleteWeightLog(week, id)
		if removed != nil {
			photo = removed.Photo
		}
		return removed != nil, err
	})
	if err != nil {
		return err
	}
	s.discardPhoto(ctx, photo)
	return nil
}

// discardPhoto removes a deleted entry's photo. Failures are logged only:
// the entry is already gone.
func (s *programService) discardPhoto(ctx context.Context, objectKey string) {
	if objectKey == "" {
		return
	}
	if err := s.fileStorage.DeleteObject(ctx, objectKey); err != nil {
		s.log.Warn("photo object not deleted", "key", objectKey, "error", err)
	}
	if err := s.uploads.DeleteByObjectKey(ctx, objectKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("photo metadata not deleted", "key", objectKey, "error", err)
	}
}

// CompleteWeek checks the completion gate before advancing the program.
func (s *programService) CompleteWeek(ctx context.Context, customerID primitive.ObjectID, week int) (*progression.ProgramView, error) {
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		ok, err := t.CanCompleteWeek(week)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrWeekIncomplete
		}
		return true, t.CompleteWeek(week)
	})
	if err != nil {
		return nil, err
	}
	view := t.View()
	return &view, nil
}

// authorize lets admins act on any customer and partners on their linked customers.
func (s *programService) authorize(ctx context.Context, actor Actor, customerID primitive.ObjectID) error {
	customer, err := s.profiles.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}
	if !customer.IsCustomer() {
		return ErrCustomerNotFound
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RolePartner:
		if customer.LinkedPartnerID == nil || *customer.LinkedPartnerID != actor.ID {
			return ErrCustomerNotManaged
		}
		return s.requireApprovedPartner(ctx, actor.ID)
	default:
		return ErrCustomerNotManaged
	}
}

// requireApprovedPartner checks the partner's latest application; the
// profile's own approval field is not consulted.
func (s *programService) requireApprovedPartner(ctx context.Context, partnerID primitive.ObjectID) error {
	partner, err := s.profiles.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPartnerNotApproved
		}
		return err
	}
	app, err := s.applications.LatestByEmail(ctx, domain.NormalizeEmail(partner.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPartnerNotApproved
		}
		return err
	}
	if domain.NormalizeApplicationStatus(app.Status) != domain.ApplicationApproved {
		return ErrPartnerNotApproved
	}
	return nil
}

// GetCustomerProgram lets an admin or the linked partner view a customer's program.
func (s *programService) GetCustomerProgram(ctx context.Context, actor Actor, customerID primitive.ObjectID) (*progression.ProgramView, error) {
	if err := s.authorize(ctx, actor, customerID); err != nil {
		return nil, err
	}
	return s.GetProgram(ctx, customerID)
}

func (s *programService) BookAppointment(ctx context.Context, actor Actor, customerID primitive.ObjectID, title, date, timeOfDay string) (*domain.Appointment, error) {
	if err := s.authorize(ctx, actor, customerID); err != nil {
		return nil, err
	}
	var booked domain.Appointment
	_, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		booked = t.AddAppointment(title, date, timeOfDay)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &booked, nil
}

func (s *programService) RequestReschedule(ctx context.Context, customerID primitive.ObjectID, appointmentID, date, timeOfDay, reason string) (*domain.Appointment, error) {
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		return true, t.RequestReschedule(appointmentID, date, timeOfDay, reason)
	})
	if err != nil {
		return nil, err
	}
	return findAppointment(t, appointmentID)
}

func (s *programService) ApproveReschedule(ctx context.Context, actor Actor, customerID primitive.ObjectID, appointmentID string) (*domain.Appointment, error) {
	if err := s.authorize(ctx, actor, customerID); err != nil {
		return nil, err
	}
	t, err := s.mutate(ctx, customerID, func(t *progression.Tracker) (bool, error) {
		applied, err := t.ApproveReschedule(appointmentID)
		if err == nil && !applied {
			err = ErrRescheduleNotPending
		}
		return applied, err
	})
	if err != nil {
		return nil, err
	}
	return findAppointment(t, appointmentID)
}

func findAppointment(t *progression.Tracker, id string) (*domain.Appointment, error) {
	for _, a := range t.Snapshot().Appointments {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, progression.ErrAppointmentNotFound
}

// RequestPhotoUploadURL records the upload and returns a presigned PUT URL.
// Photos may be attached to any unlocked week.
func (s *programService) RequestPhotoUploadURL(ctx context.Context, customerID primitive.ObjectID, week int, contentType string) (*UploadURLResponse, error) {
	t, err := s.read(ctx, customerID)
	if err != nil {
		return nil, err
	}
	v, err := t.Week(week)
	if err != nil {
		return nil, err
	}
	if v.Status == domain.WeekLocked {
		return nil, progression.ErrWeekLocked
	}

	objectKey, err := storage.PhotoObjectKey(customerID, week, contentType)
	if err != nil {
		return nil, err
	}
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		s.log.Error("upload url failed", "customerId", customerID.Hex(), "error", err)
		return nil, ErrUploadURLError
	}
	upload := &domain.Upload{
		CustomerID:  customerID,
		WeekNumber:  week,
		S3ObjectKey: objectKey,
		ContentType: contentType,
	}
	if _, err := s.uploads.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

func (s *programService) PhotoDownloadURL(ctx context.Context, customerID primitive.ObjectID, objectKey string) (string, error) {
	upload, err := s.uploads.GetByObjectKey(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if upload.CustomerID != customerID {
		return "", ErrPhotoNotOwned
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, 5*time.Minute)
	if err != nil {
		s.log.Error("download url failed", "key", objectKey, "error", err)
		return "", ErrDownloadURLError
	}
	return url, nil
}
