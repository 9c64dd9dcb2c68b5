package outbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePASVExtractsPort(t *testing.T) {
	port, err := parsePASV("227 Entering Passive Mode (192,168,1,10,200,50).")
	require.NoError(t, err)
	require.Equal(t, 200*256+50, port)
}

func TestParsePASVRejectsMalformedResponse(t *testing.T) {
	_, err := parsePASV("227 Entering Passive Mode")
	require.Error(t, err)
}
