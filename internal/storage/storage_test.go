package storage_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"whisperchat/backend/internal/models"
	"whisperchat/backend/internal/storage"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAuditRecord(t *testing.T) {
	rec := models.AuditRecord{
		ID:         "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Kind:       models.TypeDM,
		SenderID:   "a",
		SenderName: "Alice",
		Recipients: pq.StringArray{"Bob"},
		Content:    "hi",
		SentAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	decoded, err := storage.DecodeAuditRecord(string(payload))

	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeAuditRecord_Invalid(t *testing.T) {
	_, err := storage.DecodeAuditRecord("{not json")

	assert.Error(t, err)
}

func TestPublishAuditRecord_WithoutRedisIsNoop(t *testing.T) {
	s := storage.NewStorageService(nil, nil)

	assert.NoError(t, s.PublishAuditRecord(context.Background(), models.AuditRecord{Kind: models.TypeDM}))
}
