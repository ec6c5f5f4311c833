// Package service holds the portal's business rules.
//
// LAYERING:
//
//	handler (HTTP) → service (rules) → repository (storage)
//	                               ↘ objects (S3), mirror (AppSheet / Sheets)
//
// Services never see an http.Request. They return apperror values, which the
// handler layer maps to status codes, and they hand every external sync to a
// Mirror so a slow or broken AppSheet never holds up a candidate's request.
package service

import (
	"context"

	"github.com/sakif/recruiting-portal/internal/mirror"
	"github.com/sakif/recruiting-portal/internal/model"
)

// Mirror receives local state changes for best-effort external sync.
// *mirror.Syncer implements it.
type Mirror interface {
	UserSignedIn(u *model.User)
	ClassYearChanged(email, classYear string)
	HeadshotChanged(email, photoURL string)
	ApplicationSubmitted(u *model.User, sub mirror.Submission)
	EventCheckedIn(u *model.User, events map[string]bool, firstTime bool)
	EventsRewritten(u *model.User, events map[string]bool)
}

// ObjectStore is the file storage the portal writes uploads to.
// *objects.Store implements it.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	URLFor(key string) string
	S3URL(key string) string
	HeadshotKey(contentType string) string
	InternalHeadshotKey(userID, ext string) string
	ResumeKey(userID, ext string) string
}

// Metrics counts business events. *metrics.Metrics implements it.
type Metrics interface {
	Signup(method string)
	CheckIn(event string, repeat bool)
	ApplicationSubmitted()
}

type nopMetrics struct{}

func (nopMetrics) Signup(string)         {}
func (nopMetrics) CheckIn(string, bool)  {}
func (nopMetrics) ApplicationSubmitted() {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// copyEvents returns a new map so callers can change it without touching the
// user's.
func copyEvents(events map[string]bool) map[string]bool {
	out := make(map[string]bool, len(events)+1)
	for k, v := range events {
		out[k] = v
	}
	return out
}
