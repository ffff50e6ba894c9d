package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncStatus_InProgress(t *testing.T) {
	tests := []struct {
		name   string
		status SyncStatus
		want   bool
	}{
		{name: "never synced", status: StatusNone, want: false},
		{name: "completed", status: StatusCompleted, want: false},
		{name: "paused", status: StatusPaused, want: false},
		{name: "failed", status: StatusFailed, want: false},
		{name: "processing", status: StatusProcessing, want: true},
		{name: "partial", status: StatusPartial, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.InProgress())
		})
	}
}

func TestSyncStatus_Resumable(t *testing.T) {
	tests := []struct {
		name   string
		status SyncStatus
		want   bool
	}{
		{name: "paused", status: StatusPaused, want: true},
		{name: "failed", status: StatusFailed, want: true},
		{name: "never synced", status: StatusNone, want: false},
		{name: "completed", status: StatusCompleted, want: false},
		{name: "processing", status: StatusProcessing, want: false},
		{name: "partial", status: StatusPartial, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Resumable())
		})
	}
}
