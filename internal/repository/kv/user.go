package kv

import (
	"context"
	"fmt"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
	"github.com/sakif/recruiting-portal/internal/store"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

const (
	userSK        = "PROFILE"
	emailIndexPK  = "USER#EMAIL"
	userPKPrefix  = "USER#"
	attrUpdatedAt = "updatedAt"
)

// UserStore maps users onto items.
type UserStore struct {
	db *DB
}

func userKey(userID string) store.Key {
	return store.Key{PK: userPKPrefix + userID, SK: userSK}
}

func (s *UserStore) toItem(u *model.User) (store.Item, error) {
	item, err := encodeItem(u, userKey(u.UserID))
	if err != nil {
		return nil, err
	}
	item[store.AttrGSI1PK] = emailIndexPK
	item[store.AttrGSI1SK] = u.Email
	return item, nil
}

func fromItem(item store.Item) (*model.User, error) {
	var u model.User
	if err := decodeItem(item, &u); err != nil {
		return nil, err
	}
	if u.UserData.Events == nil {
		u.UserData.Events = map[string]bool{}
	}
	if u.UserData.Feedback == nil {
		u.UserData.Feedback = []model.Feedback{}
	}
	return &u, nil
}

// Create writes the user unconditionally. Email is normalized and the nested
// userData gets its empty events map and feedback list, so later dotted-path
// updates always have a parent document to land in.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	if u.UserID == "" {
		return fmt.Errorf("kv: creating user: userid is required")
	}
	u.Email = model.NormalizeEmail(u.Email)
	if u.UserData.Events == nil {
		u.UserData.Events = map[string]bool{}
	}
	if u.UserData.Feedback == nil {
		u.UserData.Feedback = []model.Feedback{}
	}
	if u.Conflict == nil {
		u.Conflict = []string{}
	}
	now := s.db.nowMillis()
	u.CreatedAt = now
	u.UpdatedAt = now

	item, err := s.toItem(u)
	if err != nil {
		return err
	}
	if err := s.db.table.Put(ctx, item); err != nil {
		return fmt.Errorf("kv: creating user %s: %w", u.UserID, err)
	}
	return nil
}

// FindByID loads a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, userID string) (*model.User, error) {
	item, err := s.db.table.Get(ctx, userKey(userID))
	if err != nil {
		return nil, fmt.Errorf("kv: finding user %s: %w", userID, err)
	}
	if item == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return fromItem(item)
}

// FindOne looks a user up by id or, through the email index, by email.
func (s *UserStore) FindOne(ctx context.Context, f repository.Filter) (*model.User, error) {
	switch {
	case f.UserID != "":
		return s.FindByID(ctx, f.UserID)
	case f.Email != "":
		email := model.NormalizeEmail(f.Email)
		items, err := s.db.table.QueryIndex(ctx, store.IndexQuery{
			PartitionValue: emailIndexPK,
			SortValue:      email,
			Limit:          1,
		})
		if err != nil {
			return nil, fmt.Errorf("kv: finding user by email: %w", err)
		}
		if len(items) == 0 {
			return nil, apperror.NotFoundMsg("user not found")
		}
		return fromItem(items[0])
	default:
		return nil, apperror.ValidationFailed("filter", "user filter needs userid or email")
	}
}

// resolveID returns the user id a filter points at. An id filter is trusted
// as-is; an email filter costs one index read.
func (s *UserStore) resolveID(ctx context.Context, f repository.Filter) (string, error) {
	if f.UserID != "" {
		return f.UserID, nil
	}
	u, err := s.FindOne(ctx, f)
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}

// UpdateOne applies a partial update and stamps updatedAt.
//
// There is no existence check for an id filter: updating an unknown id
// creates a partial item. Callers load the user first.
func (s *UserStore) UpdateOne(ctx context.Context, f repository.Filter, set repository.Set) error {
	if len(set) == 0 {
		return nil
	}
	userID, err := s.resolveID(ctx, f)
	if err != nil {
		return err
	}

	sets := make(map[string]any, len(set)+1)
	for path, v := range set {
		sets[path] = v
	}
	sets[attrUpdatedAt] = s.db.nowMillis()

	if err := s.db.table.Update(ctx, userKey(userID), sets); err != nil {
		return fmt.Errorf("kv: updating user %s: %w", userID, err)
	}
	return nil
}

// Put overwrites the whole user record.
func (s *UserStore) Put(ctx context.Context, u *model.User) error {
	if u.UserID == "" {
		return fmt.Errorf("kv: putting user: userid is required")
	}
	now := s.db.nowMillis()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	item, err := s.toItem(u)
	if err != nil {
		return err
	}
	if err := s.db.table.Put(ctx, item); err != nil {
		return fmt.Errorf("kv: putting user %s: %w", u.UserID, err)
	}
	return nil
}

// DeleteOne removes the user.
func (s *UserStore) DeleteOne(ctx context.Context, f repository.Filter) error {
	userID, err := s.resolveID(ctx, f)
	if err != nil {
		return err
	}
	if err := s.db.table.Delete(ctx, userKey(userID)); err != nil {
		return fmt.Errorf("kv: deleting user %s: %w", userID, err)
	}
	return nil
}

// ListAll reads every user through the email index partition.
func (s *UserStore) ListAll(ctx context.Context) ([]model.User, error) {
	items, err := s.db.table.QueryIndex(ctx, store.IndexQuery{PartitionValue: emailIndexPK})
	if err != nil {
		return nil, fmt.Errorf("kv: listing users: %w", err)
	}

	users := make([]model.User, 0, len(items))
	for _, item := range items {
		u, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}
