package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

func TestPlayerBlockFloors(t *testing.T) {
	p := Player{Pos: gamedb.Vec3{X: -0.5, Y: 65.99, Z: 10.5}}
	assert.Equal(t, gamedb.BlockPos{X: -1, Y: 65, Z: 10}, p.Block())
}

func TestMemWorldLifecycle(t *testing.T) {
	w := NewMemWorld(Overworld)
	id := uuid.New()
	w.Join(Player{ID: id, Name: "steve"})

	require.True(t, w.Teleport(id, gamedb.Vec3{X: 10.5, Y: 64, Z: 0.5}))
	p, ok := w.Player(id)
	require.True(t, ok)
	assert.Equal(t, gamedb.Vec3{X: 10.5, Y: 64, Z: 0.5}, p.Pos)

	assert.True(t, w.Leave(id))
	assert.False(t, w.Teleport(id, gamedb.Vec3{}))
	assert.Empty(t, w.Players())
}

func TestMemWorldPlayersOrdered(t *testing.T) {
	w := NewMemWorld(Overworld)
	w.Join(Player{ID: uuid.New(), Name: "zed"})
	w.Join(Player{ID: uuid.New(), Name: "alex"})
	players := w.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "alex", players[0].Name)
}

func TestWorldsGetCreatesOnce(t *testing.T) {
	ws := NewWorlds()
	a := ws.Get("world:the_nether")
	b := ws.Get("world:the_nether")
	assert.Same(t, a, b)
	ws.Get(Overworld)
	all := ws.All()
	require.Len(t, all, 2)
	assert.Equal(t, "world:overworld", all[0].ID())
}
