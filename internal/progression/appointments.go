package progression

import "alcyxob/wellness-portal/internal/domain"

// RequestReschedule moves an appointment to pending and attaches the request,
// stamped with the tracker's clock.
func (t *Tracker) RequestReschedule(appointmentID, date, timeOfDay, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.appointment(appointmentID)
	if a == nil {
		return ErrAppointmentNotFound
	}
	a.Status = domain.AppointmentPending
	a.RescheduleRequest = &domain.RescheduleRequest{
		RequestedDate: date,
		RequestedTime: timeOfDay,
		Reason:        reason,
		RequestedAt:   t.clock.Now().UTC(),
	}
	return nil
}

// ApproveReschedule applies a pending request: the requested date and time
// become the appointment's, and the request is cleared. It reports false and
// changes nothing when there is no pending request.
func (t *Tracker) ApproveReschedule(appointmentID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.appointment(appointmentID)
	if a == nil {
		return false, ErrAppointmentNotFound
	}
	if a.RescheduleRequest == nil {
		return false, nil
	}
	a.Date = a.RescheduleRequest.RequestedDate
	a.Time = a.RescheduleRequest.RequestedTime
	a.Status = domain.AppointmentRescheduled
	a.RescheduleRequest = nil
	return true, nil
}

// AddAppointment books a new appointment under a fresh identifier.
func (t *Tracker) AddAppointment(title, date, timeOfDay string) domain.Appointment {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := domain.Appointment{
		ID:     t.newID(),
		Title:  title,
		Date:   date,
		Time:   timeOfDay,
		Status: domain.AppointmentBooked,
	}
	t.program.Appointments = append(t.program.Appointments, a)
	return a
}

func (t *Tracker) appointment(id string) *domain.Appointment {
	for i := range t.program.Appointments {
		if t.program.Appointments[i].ID == id {
			return &t.program.Appointments[i]
		}
	}
	return nil
}
