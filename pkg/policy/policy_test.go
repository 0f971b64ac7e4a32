package policy

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
)

var (
	admin    = media.Identity{UserID: "root", Roles: []string{"admin"}}
	alice    = media.Identity{UserID: "alice", Roles: []string{"user"}}
	bob      = media.Identity{UserID: "bob", Roles: []string{"user"}}
	stranger = media.Identity{UserID: "eve", Roles: []string{"guest"}}
)

func item(owner string, scope media.AccessScope) *media.Item {
	return &media.Item{ID: "x", CreatedBy: owner, AccessScope: scope}
}

func TestHighestLevel(t *testing.T) {
	e := Evaluator{}

	tests := []struct {
		name string
		who  media.Identity
		want Level
	}{
		{"no roles", media.Identity{UserID: "a"}, LevelNone},
		{"unknown role", stranger, LevelNone},
		{"user", alice, LevelUser},
		{"admin", admin, LevelAdmin},
		{"both picks admin", media.Identity{UserID: "a", Roles: []string{"user", "admin"}}, LevelAdmin},
		{"anonymous user", media.Identity{Roles: []string{"user"}}, LevelNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.HighestLevel(tt.who))
		})
	}
}

func TestCustomRoleNames(t *testing.T) {
	e := New("vault-admin", "vault-user")

	assert.Equal(t, LevelNone, e.HighestLevel(admin))
	assert.Equal(t, LevelAdmin, e.HighestLevel(media.Identity{UserID: "r", Roles: []string{"vault-admin"}}))
	assert.Equal(t, LevelUser, e.HighestLevel(media.Identity{UserID: "u", Roles: []string{"vault-user"}}))
}

func TestCanRead(t *testing.T) {
	e := Evaluator{}
	private := item("alice", media.ScopePrivate)
	public := item("alice", media.ScopePublic)

	assert.True(t, e.CanRead(admin, private))
	assert.True(t, e.CanRead(alice, private))
	assert.False(t, e.CanRead(bob, private))
	assert.True(t, e.CanRead(bob, public))
	assert.False(t, e.CanRead(stranger, public))
}

func TestCanWrite(t *testing.T) {
	e := Evaluator{}
	public := item("alice", media.ScopePublic)

	assert.True(t, e.CanWrite(admin, public))
	assert.True(t, e.CanWrite(alice, public))
	assert.False(t, e.CanWrite(bob, public))
	assert.False(t, e.CanWrite(stranger, item("eve", media.ScopePrivate)))
}

func TestCanCreate(t *testing.T) {
	e := Evaluator{}
	assert.True(t, e.CanCreate(alice))
	assert.True(t, e.CanCreate(admin))
	assert.False(t, e.CanCreate(stranger))
}

func TestVisibility(t *testing.T) {
	e := Evaluator{}

	assert.Equal(t, metadata.Visibility{All: true}, e.Visibility(admin))
	assert.Equal(t, metadata.Visibility{Owner: "alice", IncludePublic: true}, e.Visibility(alice))
	assert.True(t, e.Visibility(stranger).None())

	assert.Equal(t, metadata.Visibility{Owner: "alice"}, e.TrashVisibility(alice))
	assert.True(t, e.TrashVisibility(stranger).None())
}

func TestVisibilityMatchesCanRead(t *testing.T) {
	e := Evaluator{}
	items := []*media.Item{
		item("alice", media.ScopePrivate),
		item("alice", media.ScopePublic),
		item("bob", media.ScopePrivate),
		item("bob", media.ScopePublic),
	}
	for _, who := range []media.Identity{admin, alice, bob, stranger} {
		vis := e.Visibility(who)
		for _, it := range items {
			assert.Equal(t, e.CanRead(who, it), vis.Allows(it), "who=%s owner=%s scope=%s", who.UserID, it.CreatedBy, it.AccessScope)
		}
	}
}
