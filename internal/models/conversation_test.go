package models_test

import (
	"testing"

	"whisperchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestConversation_ZeroValueIsNone(t *testing.T) {
	var c models.Conversation

	assert.Equal(t, models.NoConversation, c.Kind())
	_, ok := c.Target()
	assert.False(t, ok)
	_, ok = c.Group()
	assert.False(t, ok)
}

func TestConversation_DirectAndGroupAreExclusive(t *testing.T) {
	direct := models.Direct("bob")
	target, ok := direct.Target()
	assert.True(t, ok)
	assert.Equal(t, models.UserID("bob"), target)
	_, ok = direct.Group()
	assert.False(t, ok)
	assert.True(t, direct.IsDirectWith("bob"))
	assert.False(t, direct.IsDirectWith("carol"))

	group := models.InGroup("cat-falcon")
	name, ok := group.Group()
	assert.True(t, ok)
	assert.Equal(t, "cat-falcon", name)
	_, ok = group.Target()
	assert.False(t, ok)
	assert.False(t, group.IsDirectWith(""))
}

func TestGroup_HasMember(t *testing.T) {
	g := models.Group{Name: "apple-grape", Owner: "u1", Members: []models.UserID{"u1", "u2"}}

	assert.True(t, g.HasMember("u2"))
	assert.False(t, g.HasMember("u3"))
}
