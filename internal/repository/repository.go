package repository

import (
	"context"

	"github.com/sakif/recruiting-portal/internal/model"
)

// Filter selects one user, by id or by email. UserID wins when both are set.
type Filter struct {
	UserID string
	Email  string
}

// Set is a partial update: attribute path → new value. Paths may be dotted
// ("userData.events") to replace one nested field and leave its siblings.
type Set map[string]any

// UserRepository is the document-style surface over user items.
//
// Lookups that find nothing return an error matching apperror.ErrNotFound.
type UserRepository interface {
	// Create writes a new user. The caller supplies UserID and is expected to
	// have checked the email is free; Create itself does not.
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID string) (*model.User, error)
	FindOne(ctx context.Context, filter Filter) (*model.User, error)
	// UpdateOne applies set plus an updatedAt stamp. An empty set does nothing.
	UpdateOne(ctx context.Context, filter Filter, set Set) error
	// Put overwrites the whole user, keeping CreatedAt if already set.
	Put(ctx context.Context, user *model.User) error
	DeleteOne(ctx context.Context, filter Filter) error
	// ListAll returns every user ordered by email.
	ListAll(ctx context.Context) ([]model.User, error)
}

// ConfigRepository stores the singleton app config record.
type ConfigRepository interface {
	// Get returns nil, nil when no config has been saved yet.
	Get(ctx context.Context) (*model.AppConfig, error)
	// Save replaces the record wholesale.
	Save(ctx context.Context, cfg *model.AppConfig) error
}

// Counters holds the atomic primitives used to mint external ids.
type Counters interface {
	// NextID increments the named counter and returns the new value.
	NextID(ctx context.Context, name string) (int64, error)
	// ClaimOnce reports whether this call was the first to claim key within
	// namespace. Every later or concurrent call gets false.
	ClaimOnce(ctx context.Context, namespace, key string) (bool, error)
}
