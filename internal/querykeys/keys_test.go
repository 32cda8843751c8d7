package querykeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"users all", Users.All().Hash(), `["users"]`},
		{"users lists", Users.Lists().Hash(), `["users","list"]`},
		{"users list", Users.List(map[string]any{"q": "ann", "_page": 1}).Hash(), `["users","list",{"_page":1,"q":"ann"}]`},
		{"users detail", Users.Detail(7).Hash(), `["users","detail",7]`},
		{"posts list", Posts.List(PostFilter{UserID: 3}).Hash(), `["posts","list",{"userId":3}]`},
		{"posts list nil", Posts.List(nil).Hash(), `["posts","list",null]`},
		{"auth current user", Auth.CurrentUser().Hash(), `["auth","current-user"]`},
		{"auth profile", Auth.Profile().Hash(), `["auth","profile"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestKeys_Hierarchy(t *testing.T) {
	assert.True(t, Users.Detail(1).HasPrefix(Users.All()))
	assert.True(t, Users.List(nil).HasPrefix(Users.All()))
	assert.True(t, Auth.Profile().HasPrefix(Auth.All()))
	assert.False(t, Posts.Detail(1).HasPrefix(Users.All()))
	assert.False(t, Auth.CurrentUser().HasPrefix(Users.All()))

	// filters serialise the same regardless of how they were built
	assert.True(t, Posts.List(PostFilter{UserID: 3, Status: "open"}).Equal(
		Posts.List(map[string]any{"status": "open", "userId": 3})))
}
