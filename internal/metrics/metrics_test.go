package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassResolutionsArePerPhase(t *testing.T) {
	before := testutil.ToFloat64(ClassResolutions.WithLabelValues(PhaseStubs))

	ClassResolutions.WithLabelValues(PhaseStubs).Inc()
	ClassResolutions.WithLabelValues(PhaseMiss).Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(ClassResolutions.WithLabelValues(PhaseStubs)))
}
