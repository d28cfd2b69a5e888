package user

import "time"

// User is one credential record. The refresh token pair on it is the only
// live-session marker: set together on login/refresh, cleared together on
// logout.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	RefreshToken *string    `json:"-"` // opaque session secret, never serialized
	RefreshTokenExpiry *time.Time `json:"-"`

	PhoneNumber    *string `json:"phoneNumber,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	Department     *string `json:"department,omitempty"`
	StudentID      *string `json:"studentId,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type SessionState int

const (
	SessionAnonymous SessionState = iota
	SessionAuthenticated
)

// SessionState derives the two-state session machine from the refresh
// token pair. This is the single "is the session live" predicate; the
// refresh and logout paths both go through it.
func (u *User) SessionState(now time.Time) SessionState {
	if u.RefreshToken == nil || u.RefreshTokenExpiry == nil {
		return SessionAnonymous
	}

	if !u.RefreshTokenExpiry.After(now) {
		return SessionAnonymous
	}

	return SessionAuthenticated
}

// SetRefreshToken installs a new refresh token and its expiry as a pair.
func (u *User) SetRefreshToken(token string, expiresAt time.Time) {
	u.RefreshToken = &token
	u.RefreshTokenExpiry = &expiresAt
}

// ClearRefreshToken drops the pair together. Safe to call when no session
// exists.
func (u *User) ClearRefreshToken() {
	u.RefreshToken = nil
	u.RefreshTokenExpiry = nil
}

// ProfilePatch is a partial update: nil means leave the field unchanged,
// a non-nil value is applied verbatim.
type ProfilePatch struct {
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	PhoneNumber    *string `json:"phoneNumber,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	Department     *string `json:"department,omitempty"`
	StudentID      *string `json:"studentId,omitempty"`
}

// Apply copies the present patch fields onto the record and stamps
// UpdatedAt.
func (u *User) Apply(p ProfilePatch, now time.Time) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = p.PhoneNumber
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = p.ProfilePicture
	}
	if p.Department != nil {
		u.Department = p.Department
	}
	if p.StudentID != nil {
		u.StudentID = p.StudentID
	}

	u.UpdatedAt = &now
}

// Profile is the public projection of a record. It excludes the password
// hash and refresh token unconditionally.
type Profile struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"isActive"`
	PhoneNumber    *string    `json:"phoneNumber,omitempty"`
	ProfilePicture *string    `json:"profilePicture,omitempty"`
	Department     *string    `json:"department,omitempty"`
	StudentID      *string    `json:"studentId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		IsActive:       u.IsActive,
		PhoneNumber:    u.PhoneNumber,
		ProfilePicture: u.ProfilePicture,
		Department:     u.Department,
		StudentID:      u.StudentID,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		LastLogin:      u.LastLogin,
	}
}
