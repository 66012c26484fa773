package directory

import (
	"context"
	"testing"
	"time"

	"guardian-relay/internal/models"
	"guardian-relay/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestMirror(t *testing.T) (*miniredis.Miniredis, *RedisMirror) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisMirror(redisClient, "guardian:directory:snapshot", time.Hour, zap.NewNop())
}

func TestRedisMirror_SaveLoad(t *testing.T) {
	mr, m := setupTestMirror(t)
	ctx := context.Background()

	units := []models.UnitRecord{testUnit("42", "EE Central")}
	require.NoError(t, m.Save(ctx, units, []string{"900"}))
	assert.True(t, mr.Exists("guardian:directory:snapshot"))
	assert.Equal(t, time.Hour, mr.TTL("guardian:directory:snapshot"))

	gotUnits, gotAdmins, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, units, gotUnits)
	assert.Equal(t, []string{"900"}, gotAdmins)
}

func TestRedisMirror_LoadMissing(t *testing.T) {
	_, m := setupTestMirror(t)

	_, _, err := m.Load(context.Background())

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCache_RefreshWritesMirror(t *testing.T) {
	_, m := setupTestMirror(t)
	c := NewCache(seededStore(t), m, 0, zap.NewNop())

	require.NoError(t, c.Refresh(context.Background()))

	units, admins, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Equal(t, []string{"900", "901"}, admins)
}

func TestCache_LoadFallsBackToMirror(t *testing.T) {
	_, m := setupTestMirror(t)
	require.NoError(t, m.Save(context.Background(), []models.UnitRecord{testUnit("42", "EE Central")}, []string{"900"}))

	st := store.NewMemoryStore(store.DefaultSchemas())
	st.SetUnavailable(true)
	c := NewCache(st, m, 0, zap.NewNop())

	err := c.Load(context.Background())

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	_, err = c.LookupUnit("42")
	assert.NoError(t, err)
	assert.True(t, c.IsAdministrator("900"))
}
