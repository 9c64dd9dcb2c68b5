package outbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/reading"
)

func TestFileSinkSerializeRoundTrips(t *testing.T) {
	var sink FileSink
	d := decision.New("cam1", "AB123", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")

	data, err := sink.Serialize(d)
	require.NoError(t, err)

	var got decision.Decision
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "AB123", got.Plate)

	require.NoError(t, sink.Send(data))
	require.Equal(t, ".yod", sink.FileExtension())
}
