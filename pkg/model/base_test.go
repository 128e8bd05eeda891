package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseModelJSONKeys(t *testing.T) {
	b := BaseModel{ID: "id-1", CreatedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "created_at")
	assert.Contains(t, out, "updated_at")
	assert.NotContains(t, out, "createdAt")
	assert.NotContains(t, out, "deleted_at")
}

func TestBeforeCreateAssignsID(t *testing.T) {
	b := &BaseModel{}
	require.NoError(t, b.BeforeCreate(nil))
	assert.Len(t, b.ID, 36)

	kept := &BaseModel{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed", kept.ID)
}
