package crisisalertdispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crisis-alerts/internal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKeyPrefix + "job-1").RedisNil()

	result, ok, err := NewResultCache(db).Get(context.Background(), "job-1")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultCache_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKeyPrefix + "job-1").
		SetVal(`{"email":{"provider":"ses"},"sms":{"sent":true,"configured":true,"responses":[]}}`)

	result, ok, err := NewResultCache(db).Get(context.Background(), "job-1")

	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, result.SMS.Sent)
	assert.JSONEq(t, `{"provider":"ses"}`, string(result.Email))
}

func TestResultCache_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKeyPrefix + "job-1").SetErr(errors.New("READONLY"))
	mock.ExpectGet(cacheKeyPrefix + "job-2").SetVal(`not json`)

	cache := NewResultCache(db)

	_, _, err := cache.Get(context.Background(), "job-1")
	assert.EqualError(t, err, "READONLY")

	_, ok, err := cache.Get(context.Background(), "job-2")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestResultCache_Set(t *testing.T) {
	result := &models.DispatchResult{Email: []byte(`{"probe":true}`)}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	mock.ExpectSet(cacheKeyPrefix+"job-1", data, time.Minute).SetVal("OK")

	err = NewResultCache(db).Set(context.Background(), "job-1", result, time.Minute)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
