package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystal-mush/hubportal/pkg/color"
)

func TestSuggestRootAndSubcommands(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, []string{"hubportal"}, env.hub.Suggest("hub"))
	assert.Equal(t, []string{"color", "create"}, env.hub.Suggest("/hubportal c"))
	assert.Len(t, env.hub.Suggest("hubportal "), len(env.hub.Commands))
	assert.Nil(t, env.hub.Suggest("tp "))
}

func TestSuggestPortalNames(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create spawn")
	env.mustRun(t, "hubportal create shop")
	env.mustRun(t, "hubportal create arena")

	assert.Equal(t, []string{"shop", "spawn"}, env.hub.Suggest("hubportal link S"))
	assert.Equal(t, []string{"arena"}, env.hub.Suggest("hubportal link spawn a"))
	assert.Nil(t, env.hub.Suggest("hubportal link spawn arena "))
	assert.Len(t, env.hub.Suggest("hubportal info "), 3)
	assert.Equal(t, []string{"name", "color", "scale"}, env.hub.Suggest("hubportal edit spawn "))
}

func TestSuggestListAndEdit(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create spawn")
	assert.Equal(t, []string{"links"}, env.hub.Suggest("hubportal list l"))
	assert.Equal(t, color.ScaleSuggestions, env.hub.Suggest("hubportal edit spawn scale "))
	assert.Equal(t, []string{"light_blue", "lime", "light_gray"}, env.hub.Suggest("hubportal edit spawn color LI"))
}

func TestSuggestColorOrScale(t *testing.T) {
	env := newTestEnv(t)
	_, ok := env.run("hubportal color add ember 1,0.3,0")
	require.True(t, ok)

	all := env.hub.SuggestColorOrScale("")
	assert.Contains(t, all, "red")
	assert.Contains(t, all, "ember")
	assert.Contains(t, all, "2.5")

	assert.Equal(t, []string{"1.5 red"}, env.hub.SuggestColorOrScale("1.5 re"))
	assert.Equal(t, []string{"red 2.0", "red 2.5"}, env.hub.SuggestColorOrScale("red 2"))
	assert.Equal(t, []string{"ember"}, env.hub.SuggestColorOrScale("EM"))

	assert.Contains(t, env.hub.Suggest("hubportal create spawn "), "white")
	assert.Equal(t, []string{"ember"}, env.hub.Suggest("hubportal color edit e"))
}
