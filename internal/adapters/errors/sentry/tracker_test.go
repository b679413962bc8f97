package sentry

import (
	"context"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navfund/pkg/errors"
)

func TestConvertLevel(t *testing.T) {
	assert.Equal(t, sentry.LevelWarning, convertLevel(errors.LevelWarning))
	assert.Equal(t, sentry.LevelFatal, convertLevel(errors.LevelFatal))
	assert.Equal(t, sentry.LevelInfo, convertLevel(errors.Level("bogus")))
}

func TestTracker_WithoutDSNDropsEvents(t *testing.T) {
	tracker, err := New(Options{Environment: "test"})
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, tracker.CaptureError(ctx, errors.ErrFundPaused, map[string]string{"operation": "subscribe"}))
	assert.NoError(t, tracker.CaptureMessage(ctx, "hello", errors.LevelInfo, nil))
}
