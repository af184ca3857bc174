package model

import "time"

// AttendanceSession records one held session of a class. TotalEnrolled is
// a snapshot of active enrollments taken when the session is created.
type AttendanceSession struct {
	ID            uint64     `json:"id"`
	ClassID       uint64     `json:"class_id"`
	SessionNumber int        `json:"session_number"`
	SessionDate   time.Time  `json:"session_date"`
	InstructorID  *uint64    `json:"instructor_id,omitempty"`
	TotalEnrolled int        `json:"total_enrolled"`
	TotalPresent  int        `json:"total_present"`
	Attendees     []Attendee `json:"attendees,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Attendee is a member marked present for a session.
type Attendee struct {
	EnrollmentID uint64    `json:"enrollment_id"`
	UserID       uint64    `json:"user_id"`
	Note         string    `json:"note,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
}

// AttendanceReport summarises one member's attendance in one class.
type AttendanceReport struct {
	UserID            uint64            `json:"user_id"`
	ClassID           uint64            `json:"class_id"`
	TotalSessions     int               `json:"total_sessions"`
	AttendedCount     int               `json:"attended_count"`
	RemainingSessions int               `json:"remaining_sessions"`
	AttendanceRate    float64           `json:"attendance_rate"`
	Entries           []AttendanceEntry `json:"entries"`
}

// AttendanceRate returns attended/total as a percentage. A class with
// no sessions has a rate of zero.
func AttendanceRate(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(attended) / float64(total) * 100
}
