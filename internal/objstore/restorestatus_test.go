package objstore

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
)

func TestParseRestoreHeader(t *testing.T) {
	t.Run("no header means not started", func(t *testing.T) {
		got := parseRestoreHeader(nil)
		assert.Equal(t, RestoreNotStarted, got.State)
	})

	t.Run("ongoing", func(t *testing.T) {
		got := parseRestoreHeader(aws.String(`ongoing-request="true"`))
		assert.Equal(t, RestoreInProgress, got.State)
		assert.True(t, got.Expiry.IsZero())
	})

	t.Run("ready with expiry", func(t *testing.T) {
		got := parseRestoreHeader(aws.String(
			`ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"`))
		assert.Equal(t, RestoreReady, got.State)
		assert.Equal(t, time.Date(2012, 12, 21, 0, 0, 0, 0, time.UTC), got.Expiry.UTC())
	})

	t.Run("garbage header is unknown, raw preserved", func(t *testing.T) {
		got := parseRestoreHeader(aws.String(`ongoing-request=maybe`))
		assert.Equal(t, RestoreStateUnknown, got.State)
		assert.Equal(t, `ongoing-request=maybe`, got.Raw)
	})
}
