package store

import (
	"context"
	"testing"

	"guardian-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendUpdateDelete(t *testing.T) {
	s := NewMemoryStore(DefaultSchemas())
	ctx := context.Background()

	require.NoError(t, s.AppendRow(ctx, models.SheetUnits, models.Row{models.ColumnUserID: "1", models.ColumnPhone: "111"}))
	require.NoError(t, s.AppendRow(ctx, models.SheetUnits, models.Row{models.ColumnUserID: "2", models.ColumnPhone: "222"}))

	require.NoError(t, s.UpdateCell(ctx, models.SheetUnits, 3, "telefone", "999"))

	rows, err := s.ReadAllRows(ctx, models.SheetUnits)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "999", rows[1][models.ColumnPhone])

	require.NoError(t, s.DeleteRow(ctx, models.SheetUnits, 2))
	rows, err = s.ReadAllRows(ctx, models.SheetUnits)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0][models.ColumnUserID])
}

func TestMemoryStore_ReadReturnsCopies(t *testing.T) {
	s := NewMemoryStore(DefaultSchemas())
	ctx := context.Background()
	require.NoError(t, s.AppendRow(ctx, models.SheetAdmins, models.Row{models.ColumnUserID: "7"}))

	rows, err := s.ReadAllRows(ctx, models.SheetAdmins)
	require.NoError(t, err)
	rows[0][models.ColumnUserID] = "changed"

	rows, err = s.ReadAllRows(ctx, models.SheetAdmins)
	require.NoError(t, err)
	assert.Equal(t, "7", rows[0][models.ColumnUserID])
}

func TestMemoryStore_Errors(t *testing.T) {
	s := NewMemoryStore(DefaultSchemas())
	ctx := context.Background()

	assert.ErrorIs(t, s.DeleteRow(ctx, models.SheetUnits, 1), models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRow(ctx, models.SheetUnits, 2), models.ErrNotFound)

	require.NoError(t, s.AppendRow(ctx, models.SheetUnits, models.Row{models.ColumnUserID: "1"}))
	assert.ErrorIs(t, s.UpdateCell(ctx, models.SheetUnits, 2, "Fax", "x"), models.ErrNotFound)

	s.SetUnavailable(true)
	_, err := s.ReadAllRows(ctx, models.SheetUnits)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.ErrorIs(t, s.AppendRow(ctx, models.SheetUnits, models.Row{}), models.ErrStoreUnavailable)
}
