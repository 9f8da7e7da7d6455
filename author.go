package blogflow

import "github.com/gosimple/slug"

// Author is the byline attached to a post.
type Author struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	Name      string `json:"name" yaml:"name" toml:"name"`
	AvatarURL string `json:"avatarURL" yaml:"avatarURL" toml:"avatarURL"`
}

// Slug returns the URL slug of the author's name, e.g. "Michael Chen" becomes "michael-chen".
func (a Author) Slug() string {
	return slug.Make(a.Name)
}

// Matches returns true if key is the author's ID or name slug.
func (a Author) Matches(key string) bool {
	return key != "" && (a.ID == key || a.Slug() == key)
}
