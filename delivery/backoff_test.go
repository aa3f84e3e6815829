package delivery_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowenginer/meta-hub/delivery"
)

func TestBackoffDuration(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 1 * time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{5, 16 * time.Minute},
		{6, 32 * time.Minute},
		{7, 60 * time.Minute},
		{20, 60 * time.Minute},
	}
	for _, c := range cases {
		got := delivery.BackoffDuration(c.attempts)
		assert.Equal(t, c.want, got, "attempts=%d", c.attempts)
	}
}
