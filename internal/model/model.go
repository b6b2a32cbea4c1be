// Package model holds the core data shapes shared by every service:
// users, daily codes, attendance records and their audit comments.
package model

import "time"

// Canonical renderings for the calendar day and time-of-day a record is
// stamped with. Both are produced from the submitter's local clock and are
// stored as strings so later edits to identity or timezone data can never
// rewrite history.
const (
	DateLayout = "2/1/2006"
	TimeLayout = "15:04:05"
)

// Role restricts what a directory user may do.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User is a directory entry. The password is an opaque secret compared by
// equality and never serialized. Hashing is a known gap: a salted-hash
// verifier would change directory.Authenticate and nothing else.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
}

// DailyToken is the 4-digit numeric code admitting check-ins for one
// calendar day. Exactly one exists per date, created lazily on first
// request and immutable afterwards; old tokens accumulate as history.
type DailyToken struct {
	Date string `json:"date"`
	Code string `json:"code"`
}

// Location is a single geolocation reading captured at submission.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Comment is one administrator annotation on an attendance record.
// Comments are immutable and ordered by append time.
type Comment struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	Text      string    `json:"text"`
	At        time.Time `json:"timestamp"`
}

// AttendanceRecord is one check-in event. UserName and Position are
// snapshots of the submitter at submission time and are intentionally not
// kept in sync with later directory changes or removals.
type AttendanceRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Position    string    `json:"position"`
	Photo       string    `json:"photo"`
	Description string    `json:"description"`
	Location    Location  `json:"location"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
}
