package model

import "time"

// EnrollmentStatus is the lifecycle state of a class enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Enrollment joins a user to a class. A user holds at most one
// enrollment per class (unique on user_id, class_id).
type Enrollment struct {
	ID                uint64            `json:"id"`
	UserID            uint64            `json:"user_id"`
	ClassID           uint64            `json:"class_id"`
	PaymentStatus     bool              `json:"payment_status"`
	Status            EnrollmentStatus  `json:"status"`
	RemainingSessions int               `json:"remaining_sessions"`
	EnrolledAt        time.Time         `json:"enrolled_at"`
	Attendance        []AttendanceEntry `json:"attendance,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AttendanceEntry is the enrollment-side mirror of a session attendee row.
type AttendanceEntry struct {
	SessionID     uint64    `json:"session_id"`
	SessionNumber int       `json:"session_number"`
	AttendedAt    time.Time `json:"attended_at"`
	Note          string    `json:"note,omitempty"`
}

// EnrollmentView is an enrollment together with its class and the
// class status derived at read time.
type EnrollmentView struct {
	Enrollment
	ClassName   string      `json:"class_name"`
	ClassStatus ClassStatus `json:"class_status"`
}
