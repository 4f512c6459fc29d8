package storage

import (
	"testing"
	"time"

	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	tests := []struct {
		name   string
		record *core.ChunkRecord
	}{
		{
			name:   "without vector",
			record: &core.ChunkRecord{Id: 1, SourceID: 2, Position: 0, Content: "Hello"},
		},
		{
			name: "with vector",
			record: &core.ChunkRecord{
				Id:       core.IDFromContent("chunk"),
				SourceID: core.IDFromContent("https://example.com"),
				Position: 12,
				Content:  "Bitcoin is a peer-to-peer electronic cash system.",
				Vector:   []float32{0.1, -0.2, 0.3, 0.0, 1e-7},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalChunk(tt.record)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, decoded)
		})
	}
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	info := &core.DocumentInfo{
		SourceID:   core.IDFromContent("https://example.com/a"),
		Title:      "Bitcoin explained",
		URL:        "https://example.com/a",
		Category:   "crypto",
		Chunks:     7,
		IngestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalDocument(MarshalDocument(info))
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := UnmarshalChunk([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalDocument([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
