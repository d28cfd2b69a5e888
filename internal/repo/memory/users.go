package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/accounthub/internal/domain/user"
)

// UsersRepo is an in-memory credential store. Used by tests and local runs
// without postgres; the mutex gives the same per-record read-modify-write
// atomicity the postgres store gets from row locks.
type UsersRepo struct {
	mu   sync.Mutex
	byID map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID: make(map[string]user.User),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.ErrEmailTaken
		}
	}

	r.byID[u.ID] = clone(u)

	return nil
}

// Update runs mutate against the stored record under the lock and persists
// the result. A mutate error aborts the write and is returned unchanged.
func (r *UsersRepo) Update(ctx context.Context, id string, mutate func(*user.User) error) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	working := clone(u)

	if err := mutate(&working); err != nil {
		return user.User{}, err
	}

	r.byID[id] = clone(working)

	return working, nil
}

// clone deep-copies the record so callers never alias stored pointers.
func clone(u user.User) user.User {
	out := u
	out.RefreshToken = copyString(u.RefreshToken)
	out.RefreshTokenExpiry = copyTime(u.RefreshTokenExpiry)
	out.PhoneNumber = copyString(u.PhoneNumber)
	out.ProfilePicture = copyString(u.ProfilePicture)
	out.Department = copyString(u.Department)
	out.StudentID = copyString(u.StudentID)
	out.UpdatedAt = copyTime(u.UpdatedAt)
	out.LastLogin = copyTime(u.LastLogin)
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
