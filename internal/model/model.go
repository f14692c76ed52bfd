// Package model defines the core domain types for the donation camp scheduler.
package model

import "time"

// Role tags an authenticated caller.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleOrganizer Role = "organizer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleOrganizer
}

// RegistrationStatus is the lifecycle state of a Registration.
// active → cancelled is the only transition.
type RegistrationStatus string

const (
	StatusActive    RegistrationStatus = "active"
	StatusCancelled RegistrationStatus = "cancelled"
)

// Slot is one capacity unit of one period inside a camp's time window.
type Slot struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Booked  bool   `json:"booked"`
	DonorID string `json:"donor_id,omitempty"`
}

// Camp is a donation event with a bounded window of bookable slots.
type Camp struct {
	ID           string    `json:"id"`
	OrganizerID  string    `json:"organizer_id"`
	Title        string    `json:"title"`
	Venue        string    `json:"venue"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotInterval int       `json:"slot_interval"`
	SlotCapacity int       `json:"slot_capacity"`
	Slots        []Slot    `json:"slots"`
	CreatedAt    time.Time `json:"created_at"`
}

// AvailableSlots returns the number of unbooked slots.
func (c *Camp) AvailableSlots() int {
	n := 0
	for _, s := range c.Slots {
		if !s.Booked {
			n++
		}
	}
	return n
}

// IsFull returns true when every slot is booked.
func (c *Camp) IsFull() bool {
	return c.AvailableSlots() == 0
}

// Registration is a donor's claim on exactly one slot of one camp.
type Registration struct {
	ID        string             `json:"id"`
	DonorID   string             `json:"donor_id"`
	CampID    string             `json:"camp_id"`
	Token     string             `json:"token"`
	SlotStart string             `json:"slot_start"`
	SlotEnd   string             `json:"slot_end"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// Active reports whether the registration still holds its slot.
func (r *Registration) Active() bool {
	return r.Status == StatusActive
}

// CampFilter narrows ListCamps. Zero values mean "no filter".
type CampFilter struct {
	OrganizerID string
	// FromDate keeps camps whose date is on or after it (YYYY-MM-DD).
	FromDate string
}

// CreateCampRequest is the payload for creating a new camp.
type CreateCampRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Venue        string `json:"venue" validate:"required,max=200"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"required,datetime=15:04"`
	SlotInterval int    `json:"slot_interval" validate:"gt=0,lte=1440"`
	SlotCapacity int    `json:"slot_capacity" validate:"gt=0,lte=1000"`
}

// UpdateCampRequest edits display fields of a camp. Slot shape fields are
// immutable after creation, so they are not accepted here.
type UpdateCampRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Venue *string `json:"venue,omitempty" validate:"omitempty,min=1,max=200"`
	Date  *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Empty reports whether the update carries no fields.
func (u UpdateCampRequest) Empty() bool {
	return u.Title == nil && u.Venue == nil && u.Date == nil
}

// CampSummary is the organizer dashboard view of one camp.
type CampSummary struct {
	Camp                Camp    `json:"camp"`
	TotalSlots          int     `json:"total_slots"`
	BookedSlots         int     `json:"booked_slots"`
	ActiveRegistrations int     `json:"active_registrations"`
	FillRate            float64 `json:"fill_rate"`
}

// Dashboard groups an organizer's camp summaries with totals across them.
type Dashboard struct {
	Camps               []CampSummary `json:"camps"`
	TotalCamps          int           `json:"total_camps"`
	ActiveRegistrations int           `json:"active_registrations"`
	AverageFillRate     float64       `json:"average_fill_rate"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
