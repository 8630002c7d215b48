package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/model"
)

const profileMissing = `{"detail":"Profile not found"}`

func TestProfileLoad_Existing(t *testing.T) {
	backend := newMockBackend()
	backend.on(http.MethodGet, profilePath, http.StatusOK,
		`{"id":"u1","username":"sakif","avatar_url":null,"bio":"hi"}`)
	svc := NewProfileService(backend, discardLogger())

	p, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Profile{Username: "sakif", Bio: "hi"}, p)
	assert.Equal(t, 0, backend.count(http.MethodPut, profilePath))
}

func TestProfileLoad_CreatesOnFirstVisit(t *testing.T) {
	backend := newMockBackend()
	backend.on(http.MethodGet, profilePath, http.StatusNotFound, profileMissing)
	backend.on(http.MethodGet, profilePath, http.StatusOK,
		`{"id":"u1","username":null,"avatar_url":null,"bio":null}`)
	svc := NewProfileService(backend, discardLogger())

	p, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())

	assert.Equal(t, 2, backend.count(http.MethodGet, profilePath))
	require.Equal(t, 1, backend.count(http.MethodPut, profilePath))
	assert.JSONEq(t, `{"username":"","avatar_url":"","bio":""}`, backend.calls[1].Body)
}

func TestProfileLoad_NoRecursion(t *testing.T) {
	backend := newMockBackend()
	backend.on(http.MethodGet, profilePath, http.StatusNotFound, profileMissing)
	backend.on(http.MethodGet, profilePath, http.StatusNotFound, profileMissing)
	backend.on(http.MethodGet, profilePath, http.StatusNotFound, profileMissing)
	svc := NewProfileService(backend, discardLogger())

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Equal(t, 2, backend.count(http.MethodGet, profilePath))
	assert.Equal(t, 1, backend.count(http.MethodPut, profilePath))
}

func TestProfileLoad_OtherErrorsDoNotCreate(t *testing.T) {
	backend := newMockBackend()
	backend.on(http.MethodGet, profilePath, http.StatusUnauthorized, `{"detail":"Missing token"}`)
	svc := NewProfileService(backend, discardLogger())

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Missing token", apperror.Message(err))
	assert.Equal(t, 0, backend.count(http.MethodPut, profilePath))
}

func TestProfileLoad_CreateFails(t *testing.T) {
	backend := newMockBackend()
	backend.on(http.MethodGet, profilePath, http.StatusNotFound, profileMissing)
	backend.on(http.MethodPut, profilePath, http.StatusInternalServerError, "boom")
	svc := NewProfileService(backend, discardLogger())

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, "boom", apperror.Message(err))
	assert.Equal(t, 1, backend.count(http.MethodGet, profilePath))
}

func TestProfileSave_SendsAllFields(t *testing.T) {
	backend := newMockBackend()
	svc := NewProfileService(backend, discardLogger())

	err := svc.Save(context.Background(), model.Profile{Bio: "runner"})
	require.NoError(t, err)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, http.MethodPut, backend.calls[0].Method)
	assert.JSONEq(t, `{"username":"","avatar_url":"","bio":"runner"}`, backend.calls[0].Body)
}
