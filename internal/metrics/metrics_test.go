package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Checkout(t *testing.T) {
	before := testutil.ToFloat64(checkouts.WithLabelValues(OutcomeCommitted))

	Prometheus{}.Checkout(OutcomeCommitted)

	assert.Equal(t, before+1, testutil.ToFloat64(checkouts.WithLabelValues(OutcomeCommitted)))
}

func TestPrometheus_ActiveSessions(t *testing.T) {
	before := testutil.ToFloat64(activeSessions)

	var r Recorder = Prometheus{}
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()

	assert.Equal(t, before+1, testutil.ToFloat64(activeSessions))
}

func TestPrometheus_CartMutation(t *testing.T) {
	before := testutil.ToFloat64(cartMutations.WithLabelValues("add_item"))

	Prometheus{}.CartMutation("add_item")
	Prometheus{}.SubmitDuration(120 * time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(cartMutations.WithLabelValues("add_item")))
}
