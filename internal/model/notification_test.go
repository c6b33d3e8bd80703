package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-1 * time.Minute), "1 minute ago"},
		{now.Add(-45 * time.Minute), "45 minutes ago"},
		{now.Add(-1 * time.Hour), "1 hour ago"},
		{now.Add(-23 * time.Hour), "23 hours ago"},
		{now.Add(-24 * time.Hour), "1 day ago"},
		{now.Add(-72 * time.Hour), "3 days ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TimeAgo(tc.at, now))
	}
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeProjectUpdate.Valid())
	assert.True(t, TypeContactMessage.Valid())
	assert.False(t, Type("telegram").Valid())
	assert.False(t, Type("").Valid())
}
