package tasks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCategorizeMemoryTask(t *testing.T) {
	id := uuid.New()
	task, err := NewCategorizeMemoryTask(id)
	require.NoError(t, err)
	assert.Equal(t, TypeCategorizeMemory, task.Type())
	assert.JSONEq(t, `{"memory_id": "`+id.String()+`"}`, string(task.Payload()))

	p, err := ParseCategorizeMemoryPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, id, p.MemoryID)
}

func TestParseCategorizeMemoryPayload_Invalid(t *testing.T) {
	for _, raw := range []string{``, `{`, `{}`, `{"memory_id": "not-a-uuid"}`, `{"memory_id": 7}`} {
		_, err := ParseCategorizeMemoryPayload([]byte(raw))
		assert.Error(t, err, "payload %q", raw)
	}
}
