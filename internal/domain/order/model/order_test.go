package model

import (
	"testing"
	"time"
	"ustp_things/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestOrder_CanCancel(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status string
		now    time.Time
		want   bool
	}{
		{"processing within window", StatusProcessing, created.Add(30 * time.Minute), true},
		{"processing at exactly one hour", StatusProcessing, created.Add(time.Hour), true},
		{"processing after window", StatusProcessing, created.Add(time.Hour + time.Second), false},
		{"ready for pickup", StatusReadyForPickup, created.Add(time.Minute), false},
		{"already cancelled", StatusCancelled, created.Add(time.Minute), false},
		{"completed", StatusCompleted, created.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{BaseModel: model.BaseModel{CreatedAt: created}, Status: tt.status}
			assert.Equal(t, tt.want, o.CanCancel(tt.now))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusProcessing, StatusReadyForPickup))
	assert.True(t, CanTransition(StatusProcessing, StatusCancelled))
	assert.True(t, CanTransition(StatusReadyForPickup, StatusCompleted))

	assert.False(t, CanTransition(StatusProcessing, StatusCompleted))
	assert.False(t, CanTransition(StatusReadyForPickup, StatusCancelled))
	assert.False(t, CanTransition(StatusCompleted, StatusProcessing))
	assert.False(t, CanTransition(StatusCancelled, StatusProcessing))
}
