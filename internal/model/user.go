// Package model defines the data structures used throughout the application.
package model

import "strings"

// Usertype controls what a user may do.
type Usertype string

const (
	UsertypeCandidate Usertype = "candidate"
	UsertypeMember    Usertype = "member"
	UsertypeAdmin     Usertype = "admin"
)

// Decision values recorded by staff.
const DecisionPending = "pending"

// User represents one registrant.
//
// FIELD NAMES:
// The json tags double as item attribute names in the key-value store, so
// they match the records already written by earlier versions of the portal
// (lowercase "userid", "firstname", ...). Timestamps are unix milliseconds
// for the same reason.
//
// WHY *string FOR Password AND GoogleID?
// A user who signed up with Google has no password hash, and a password user
// has no Google subject. nil (stored as null) says "not set" explicitly.
type User struct {
	UserID              string   `json:"userid"`
	FirstName           string   `json:"firstname"`
	LastName            string   `json:"lastname"`
	Email               string   `json:"email"`
	Password            *string  `json:"password"`
	GoogleID            *string  `json:"googleId"`
	Usertype            Usertype `json:"usertype"`
	HeadshotURL         *string  `json:"headshotUrl"`
	InternalHeadshotURL *string  `json:"internalHeadshotUrl"`
	UserData            UserData `json:"userData"`
	Decision            string   `json:"decision,omitempty"`
	Conflict            []string `json:"conflict"`

	OnboardingCompleteAt int64 `json:"onboardingCompleteAt,omitempty"`
	AppsheetSyncedAt     int64 `json:"appsheetSyncedAt,omitempty"`
	CreatedAt            int64 `json:"createdAt,omitempty"`
	UpdatedAt            int64 `json:"updatedAt,omitempty"`
}

// UserData is the nested application record.
//
// Events maps event id → checked in. Application is nil until the candidate
// submits. ClassYear may be set from the profile screen before submission.
type UserData struct {
	Events      map[string]bool `json:"events"`
	Application *Application    `json:"application,omitempty"`
	ClassYear   string          `json:"classYear,omitempty"`
	Feedback    []Feedback      `json:"feedback"`
}

// Application is a submitted application.
//
// The resume is either kept inline as a data URL (small files) or uploaded
// to object storage, in which case ResumeURL/ResumeKey are set.
type Application struct {
	ClassYear     string `json:"classYear"`
	Opt1          string `json:"opt1"`
	SubmittedAt   int64  `json:"submittedAt"`
	Resume        string `json:"resume,omitempty"`
	ResumeStorage string `json:"resumeStorage,omitempty"` // "inline" or "s3"
	ResumeURL     string `json:"resumeUrl,omitempty"`
	ResumeKey     string `json:"resumeKey,omitempty"`
	ResumeType    string `json:"resumeType,omitempty"`
}

// Feedback is one staff note about a candidate.
type Feedback struct {
	SubmittedBy string `json:"submittedBy"`
	Event       string `json:"event"`
	Comments    string `json:"comments"`
	Commitment  string `json:"commitment"`
	SocialFit   string `json:"socialfit"`
	Challenge   string `json:"challenge"`
	Tact        string `json:"tact"`
	SubmittedAt int64  `json:"submittedAt,omitempty"`
}

// NewUserData returns the empty nested record every new account starts with.
func NewUserData() UserData {
	return UserData{
		Events:   map[string]bool{},
		Feedback: []Feedback{},
	}
}

// NormalizeEmail trims and lowercases an address. Emails are compared
// case-insensitively everywhere, so every lookup and write goes through here.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ClassYear returns the class year from the profile or, failing that, from
// the submitted application.
func (u *User) ClassYear() string {
	if u.UserData.ClassYear != "" {
		return u.UserData.ClassYear
	}
	if u.UserData.Application != nil {
		return u.UserData.Application.ClassYear
	}
	return ""
}

// Photo returns the best headshot URL: the onboarding headshot first, then
// the public one (Google picture or self-upload). Empty when neither is set.
func (u *User) Photo() string {
	if u.InternalHeadshotURL != nil && *u.InternalHeadshotURL != "" {
		return *u.InternalHeadshotURL
	}
	if u.HeadshotURL != nil && *u.HeadshotURL != "" {
		return *u.HeadshotURL
	}
	return ""
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole reports whether the user's type is one of roles.
func (u *User) HasRole(roles ...Usertype) bool {
	for _, r := range roles {
		if u.Usertype == r {
			return true
		}
	}
	return false
}
