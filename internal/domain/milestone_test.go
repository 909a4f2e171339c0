package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeMilestone(t *testing.T) {
	t.Run("kind with detail", func(t *testing.T) {
		update := EncodeMilestone(IngestionCompleted, "4820 rows")
		assert.Equal(t, "ingestion.completed: 4820 rows", update)

		kind, detail := DecodeMilestone(update)
		assert.Equal(t, IngestionCompleted, kind)
		assert.Equal(t, "4820 rows", detail)
	})

	t.Run("kind without detail", func(t *testing.T) {
		update := EncodeMilestone(ClassificationStarted, "")
		assert.Equal(t, "classification.started", update)

		kind, detail := DecodeMilestone(update)
		assert.Equal(t, ClassificationStarted, kind)
		assert.Empty(t, detail)
	})

	t.Run("foreign log entry decodes to non-matching kind", func(t *testing.T) {
		kind, _ := DecodeMilestone("manual backfill by ops")
		assert.NotEqual(t, IngestionCompleted, kind)
		assert.NotEqual(t, ClassificationCompleted, kind)
	})
}
