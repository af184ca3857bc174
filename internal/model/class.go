package model

import "time"

// ClassStatus is the lifecycle state of a class. It is derived from the
// calendar and session progress by DeriveClassStatus and is never stored,
// except for the cancelled flag which an admin sets explicitly.
type ClassStatus string

const (
	ClassUpcoming  ClassStatus = "upcoming"
	ClassOngoing   ClassStatus = "ongoing"
	ClassCompleted ClassStatus = "completed"
	ClassCancelled ClassStatus = "cancelled"
)

// Valid reports whether s names a known class status.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassUpcoming, ClassOngoing, ClassCompleted, ClassCancelled:
		return true
	}
	return false
}

// Class is a recurring course offering with a fixed number of sessions
// and a member cap.
//
// Fields:
//
//	ID             - primary key identifier.
//	Name           - display name of the course.
//	Description    - free text.
//	InstructorID   - optional user id of the instructor.
//	MaxMembers     - capacity.
//	CurrentMembers - number of enrollments currently holding a seat.
//	TotalSessions  - number of sessions in the course.
//	CurrentSession - highest session number recorded so far.
//	StartDate      - first day of the course.
//	EndDate        - last day of the course.
//	Price          - enrollment price in VND.
//	IsCancelled    - sticky cancellation flag.
type Class struct {
	ID             uint64         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	InstructorID   *uint64        `json:"instructor_id,omitempty"`
	MaxMembers     int            `json:"max_members"`
	CurrentMembers int            `json:"current_members"`
	TotalSessions  int            `json:"total_sessions"`
	CurrentSession int            `json:"current_session"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	Price          int64          `json:"price"`
	IsCancelled    bool           `json:"-"`
	Schedule       []ScheduleSlot `json:"schedule"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ScheduleSlot is one weekly occurrence of a class. Weekday follows
// time.Weekday (0 = Sunday). Times are wall-clock "HH:MM" strings.
type ScheduleSlot struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room,omitempty"`
}

// HasCapacity reports whether another member fits in the class.
func (c Class) HasCapacity() bool { return c.CurrentMembers < c.MaxMembers }

// Status returns the class status at the given instant.
func (c Class) Status(now time.Time) ClassStatus { return DeriveClassStatus(now, c) }

// DeriveClassStatus computes the status of c at now. A cancelled class
// stays cancelled. Otherwise the class is upcoming before its start date,
// ongoing while inside its date range with sessions left, and completed
// once the range has passed or every session has been held.
func DeriveClassStatus(now time.Time, c Class) ClassStatus {
	if c.IsCancelled {
		return ClassCancelled
	}
	if now.Before(c.StartDate) {
		return ClassUpcoming
	}
	if !now.After(c.EndDate) && c.CurrentSession < c.TotalSessions {
		return ClassOngoing
	}
	if now.After(c.EndDate) || c.CurrentSession >= c.TotalSessions {
		return ClassCompleted
	}
	return ClassUpcoming
}

// ClassView is a class together with its status at read time.
type ClassView struct {
	Class
	Status ClassStatus `json:"status"`
}

// View returns c with its status derived at now.
func (c Class) View(now time.Time) ClassView {
	return ClassView{Class: c, Status: DeriveClassStatus(now, c)}
}
