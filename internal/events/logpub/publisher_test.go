package logpub

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	var buf bytes.Buffer
	p := NewPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := p.Publish(context.Background(), "bob", &events.DividendsPaid{Shareholder: "bob", Value: 13500})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "bob", record["key"])
	event, ok := record["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(13500), event["value"])
}
