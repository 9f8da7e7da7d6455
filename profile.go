package blogflow

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinDisplayNameLength is the shortest accepted display name.
	MinDisplayNameLength = 2
	// MaxBioLength is the longest accepted bio.
	MaxBioLength = 500
)

// RoleReader is the role given to profiles created on first sign-in.
const RoleReader = "reader"

var twitterHandle = regexp.MustCompile(`^@?[A-Za-z0-9_]{1,15}$`)

// ProfileFields are the editable fields of a profile.
type ProfileFields struct {
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatarURL"`
	Bio         string    `json:"bio"`
	Website     string    `json:"website"`
	Twitter     string    `json:"twitter"`
	Location    string    `json:"location"`
	Role        string    `json:"role"`
	ProviderID  string    `json:"providerID"`
	LastLogin   time.Time `json:"lastLogin"`
}

// Profile is the stored record of a signed-in user.
type Profile struct {
	UserID string `json:"userID"`
	ProfileFields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileStore reads and writes user profiles.
type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// UpsertProfile creates the profile or replaces its fields and returns the stored profile.
	UpsertProfile(ctx context.Context, userID string, fields ProfileFields) (*Profile, error)
}

// Validate returns a *ValidationError naming every invalid field the user can edit.
func (pf ProfileFields) Validate() error {
	ve := &ValidationError{}

	name := strings.TrimSpace(pf.DisplayName)
	switch {
	case name == "":
		ve.add("displayName", "display name is required")
	case utf8.RuneCountInString(name) < MinDisplayNameLength:
		ve.add("displayName", fmt.Sprintf("display name must be at least %d characters", MinDisplayNameLength))
	}

	if utf8.RuneCountInString(pf.Bio) > MaxBioLength {
		ve.add("bio", fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
	}

	if pf.Website != "" && !isAbsoluteURL(pf.Website) {
		ve.add("website", "website must be a valid URL")
	}

	if pf.Twitter != "" && !twitterHandle.MatchString(pf.Twitter) {
		ve.add("twitter", "twitter handle is not valid")
	}

	return ve.errOrNil()
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
