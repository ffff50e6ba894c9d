package worker

import (
	"errors"
	"testing"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/stretchr/testify/assert"
)

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "retryable",
			err:  domain.NewRetryableError(errors.New("db down")),
			want: true,
		},
		{
			name: "wrapped retryable",
			err:  errors.Join(errors.New("context"), domain.NewRetryableError(errors.New("db down"))),
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}
