package main

import (
	"bytes"
	"testing"
	"time"

	"listraksync/internal/models"
	"listraksync/internal/queue"

	"github.com/stretchr/testify/assert"
)

func TestWriteDeadLetters(t *testing.T) {
	t.Run("EmptyInProcessQueueExplains", func(t *testing.T) {
		var out bytes.Buffer
		writeDeadLetters(&out, nil, true)
		assert.Contains(t, out.String(), "no dead letters")
		assert.Contains(t, out.String(), "only when redis is configured")
	})

	t.Run("EmptyRedisQueue", func(t *testing.T) {
		var out bytes.Buffer
		writeDeadLetters(&out, nil, false)
		assert.Equal(t, "no dead letters\n", out.String())
	})

	t.Run("Listed", func(t *testing.T) {
		var out bytes.Buffer
		letters := []queue.DeadLetter{{
			Job:      models.SyncJob{Entity: models.EntityOrder, ScopeID: "s1", Offset: 40},
			Error:    "flush failed",
			FailedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		}}
		writeDeadLetters(&out, letters, true)
		assert.Equal(t, "2025-03-01 12:00:00\torder\ts1\toffset=40\tflush failed\n", out.String())
	})
}
