package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/parkway/internal/account/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDirectory(t *testing.T) domain.Directory {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Vehicle{}))
	return NewDirectory(db)
}

func TestDirectoryRegisterAndResolve(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	_, err := dir.ResolveAccount(ctx, "ABC123")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, dir.Register(ctx, "ABC123", snowflake.ID(500)))
	accountID, err := dir.ResolveAccount(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(500), accountID)

	require.NoError(t, dir.Register(ctx, "ABC123", snowflake.ID(501)))
	accountID, err = dir.ResolveAccount(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(501), accountID)

	assert.ErrorIs(t, dir.Register(ctx, "  ", snowflake.ID(1)), domain.ErrInvalidVehicle)
	assert.ErrorIs(t, dir.Register(ctx, "XYZ", 0), domain.ErrInvalidAccount)
}

type directoryMock struct {
	mock.Mock
}

func (m *directoryMock) ResolveAccount(ctx context.Context, plate string) (snowflake.ID, error) {
	args := m.Called(ctx, plate)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *directoryMock) Register(ctx context.Context, plate string, accountID snowflake.ID) error {
	args := m.Called(ctx, plate, accountID)
	return args.Error(0)
}

func TestCachedDirectoryMemoisesHits(t *testing.T) {
	inner := new(directoryMock)
	dir := NewCachedDirectory(inner, time.Minute)
	ctx := context.Background()

	inner.On("ResolveAccount", ctx, "ABC123").Return(snowflake.ID(9), nil).Once()

	for i := 0; i < 3; i++ {
		accountID, err := dir.ResolveAccount(ctx, "ABC123")
		require.NoError(t, err)
		assert.Equal(t, snowflake.ID(9), accountID)
	}
	inner.AssertNumberOfCalls(t, "ResolveAccount", 1)
}

func TestCachedDirectoryDoesNotCacheMisses(t *testing.T) {
	inner := new(directoryMock)
	dir := NewCachedDirectory(inner, time.Minute)
	ctx := context.Background()

	inner.On("ResolveAccount", ctx, "NEW1").Return(snowflake.ID(0), domain.ErrNotFound).Once()
	inner.On("Register", ctx, "NEW1", snowflake.ID(3)).Return(nil).Once()
	inner.On("ResolveAccount", ctx, "NEW1").Return(snowflake.ID(3), nil).Once()

	_, err := dir.ResolveAccount(ctx, "NEW1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, dir.Register(ctx, "NEW1", snowflake.ID(3)))

	accountID, err := dir.ResolveAccount(ctx, "NEW1")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(3), accountID)
	inner.AssertExpectations(t)
}
