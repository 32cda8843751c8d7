// Package querykeys is the application's registry of query cache keys. Every
// cached read and every mutation intent in apikit takes its key from here.
package querykeys

import "github.com/samhoque/apikit/pkg/querycache"

var (
	Users = querycache.NewDomain("users")
	Posts = querycache.NewDomain("posts")
	Auth  = authKeys{}
)

// PostFilter narrows a posts list.
type PostFilter struct {
	UserID int    `json:"userId,omitempty"`
	Status string `json:"status,omitempty"`
}

type authKeys struct{}

func (authKeys) All() querycache.Key {
	return querycache.NewKey("auth")
}

func (a authKeys) CurrentUser() querycache.Key {
	return a.All().Append("current-user")
}

func (a authKeys) Profile() querycache.Key {
	return a.All().Append("profile")
}
