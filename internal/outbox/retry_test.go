package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyHoldsAtMaxAfterFailure(t *testing.T) {
	r := newRetryPolicy(2*time.Second, 60*time.Second)
	require.Equal(t, 60*time.Second, r.hint(false))
	require.Equal(t, 60*time.Second, r.hint(false))
}

func TestRetryPolicyResetsToMinAfterSuccess(t *testing.T) {
	r := newRetryPolicy(2*time.Second, 60*time.Second)
	r.hint(false)
	require.Equal(t, 2*time.Second, r.hint(true))
}
