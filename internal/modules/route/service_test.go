package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/types"
)

func seedRoute(t *testing.T, store Store) Route {
	t.Helper()
	r, err := New([]Stop{
		{Address: "Knez Mihailova 1", Point: types.Point{Lat: 44.8176, Lng: 20.4569}},
		{Address: "Airport", Point: types.Point{Lat: 44.8184, Lng: 20.3091}},
	}, Path{DistanceKm: 17.2, DurationSeconds: 1380, Geometry: "_p~iF~ps|U_ulLnnqC"})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &r))
	return r
}

func TestNew_RequiresGeometry(t *testing.T) {
	stops := []Stop{{Address: "a"}, {Address: "b"}}

	_, err := New(stops, Path{DistanceKm: 3})
	assert.ErrorIs(t, err, ErrNoRouteGeometry)

	_, err = New(stops[:1], Path{Geometry: "x"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestService_AddFavorite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)
	r := seedRoute(t, store)

	require.NoError(t, svc.AddFavorite(ctx, AddFavoriteCommand{PassengerID: "p1", RouteID: r.ID, Name: " home "}))

	err := svc.AddFavorite(ctx, AddFavoriteCommand{PassengerID: "p1", RouteID: r.ID})
	assert.ErrorIs(t, err, ErrFavoriteExists)

	// another passenger may save the same route
	require.NoError(t, svc.AddFavorite(ctx, AddFavoriteCommand{PassengerID: "p2", RouteID: r.ID}))

	favs, err := svc.ListFavorites(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "home", favs[0].Name)
	assert.Equal(t, r.Geometry, favs[0].Route.Geometry)
}

func TestService_AddFavorite_UnknownRoute(t *testing.T) {
	svc := NewService(NewMemoryStore())
	err := svc.AddFavorite(context.Background(), AddFavoriteCommand{PassengerID: "p1", RouteID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RemoveFavorite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)
	r := seedRoute(t, store)

	require.NoError(t, svc.AddFavorite(ctx, AddFavoriteCommand{PassengerID: "p1", RouteID: r.ID}))
	require.NoError(t, svc.RemoveFavorite(ctx, "p1", r.ID))
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, "p1", r.ID), ErrNotFound)

	favs, err := svc.ListFavorites(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, favs)
}
