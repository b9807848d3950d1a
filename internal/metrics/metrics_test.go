package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint", 200)
		ObserveHTTP("test_endpoint", 15*time.Millisecond)
		IncMail("sent")
		IncJob("backup", nil)
	})
}

func TestBookingCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingTransitions.WithLabelValues("booking_accepted"))
	IncTransition("booking_accepted")
	IncTransition("booking_accepted")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingTransitions.WithLabelValues("booking_accepted")))

	conflicts := testutil.ToFloat64(bookingConflicts)
	IncConflict()
	assert.Equal(t, conflicts+1, testutil.ToFloat64(bookingConflicts))

	failed := testutil.ToFloat64(jobRuns.WithLabelValues("reminders", "error"))
	IncJob("reminders", errors.New("boom"))
	assert.Equal(t, failed+1, testutil.ToFloat64(jobRuns.WithLabelValues("reminders", "error")))
}
