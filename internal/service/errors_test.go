package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

func TestErrorIsMatchesKind(t *testing.T) {
	assert.ErrorIs(t, ErrRentalClosed, ErrRentalNotFound)
	assert.NotErrorIs(t, ErrAssetUnavailable, ErrUserAlreadyRenting)

	wrapped := fmt.Errorf("handler: %w", ErrUserNotFound)
	assert.ErrorIs(t, wrapped, ErrUserNotFound)
	assert.Equal(t, KindUserNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrAssetUnavailable, classify("open", fmt.Errorf("commit: %w", domain.ErrAssetRented)))
	assert.Equal(t, ErrUserAlreadyRenting, classify("open", domain.ErrUserRenting))
	assert.Equal(t, ErrInvalidReturnWindow, classify("open", ErrInvalidReturnWindow))

	e := classify("open", context.DeadlineExceeded)
	assert.Equal(t, KindCollaboratorFailure, e.Kind)
	assert.True(t, e.Transient())
	assert.ErrorIs(t, e, context.DeadlineExceeded)
	assert.ErrorIs(t, e, ErrCollaborator)
	assert.Contains(t, e.Error(), "open failed")
}
