package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyShape(t *testing.T) {
	k := Key("cache", SeatsScope("2026-10-15"), "route:/v1/external/seats:q:date=2026-10-15")
	assert.Regexp(t, `^cache:seats:2026-10-15:[0-9a-f]{40}$`, k)
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, Key("cache", "", "x"))
	assert.NotEqual(t, Key("cache", ShowsScope, "a"), Key("cache", ShowsScope, "b"))
}

func TestInvalidateWalksAllPages(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inv := NewInvalidator(db, "cache")
	ctx := context.Background()

	mock.ExpectScan(0, "cache:seats:2026-10-15:*", scanCount).SetVal([]string{"k1", "k2"}, 7)
	mock.ExpectDel("k1", "k2").SetVal(2)
	mock.ExpectScan(7, "cache:seats:2026-10-15:*", scanCount).SetVal([]string{}, 0)
	mock.ExpectScan(0, "cache:shows:*", scanCount).SetVal([]string{"k3"}, 0)
	mock.ExpectDel("k3").SetVal(1)

	require.NoError(t, inv.Invalidate(ctx, SeatsScope("2026-10-15"), ShowsScope))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateSurfacesErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inv := NewInvalidator(db, "cache")

	mock.ExpectScan(0, "cache:shows:*", scanCount).SetErr(errors.New("connection refused"))

	err := inv.Invalidate(context.Background(), ShowsScope)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNilClientIsNoop(t *testing.T) {
	assert.NoError(t, NewInvalidator(nil, "cache").Invalidate(context.Background(), ShowsScope))
	var inv *Invalidator
	assert.NoError(t, inv.Invalidate(context.Background(), ShowsScope))
}
