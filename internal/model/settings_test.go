package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleFor(t *testing.T) {
	c := ChannelSettings{
		Enabled:        true,
		ProjectUpdates: true,
		EventReminders: false,
		SecurityAlerts: true,
	}

	enabled, mapped := c.ToggleFor(TypeProjectApproved)
	assert.True(t, mapped)
	assert.True(t, enabled, "approval and rejection share the project updates toggle")

	enabled, mapped = c.ToggleFor(TypeEventReminder)
	assert.True(t, mapped)
	assert.False(t, enabled)

	_, mapped = c.ToggleFor(TypeUserActivity)
	assert.False(t, mapped, "no toggle governs user activity")

	_, mapped = c.ToggleFor(TypeContactMessage)
	assert.False(t, mapped)
}

func TestSettingsPatchApplyToNil(t *testing.T) {
	s := DefaultSettings(uuid.New())
	before := *s

	var p *SettingsPatch
	p.ApplyTo(s)

	assert.Equal(t, before, *s)
}

func TestSettingsPatchFromJSON(t *testing.T) {
	// The shape a console PUT actually carries: one nested leaf.
	var patch SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"push":{"newsletters":false}}`), &patch))

	s := DefaultSettings(uuid.New())
	patch.ApplyTo(s)

	assert.False(t, s.Push.Newsletters)
	assert.True(t, s.Push.Enabled)
	assert.True(t, s.Push.NewsUpdates)
	assert.True(t, s.Email.Newsletters, "sibling channel untouched")
}

func TestSettingsPatchMultipleSections(t *testing.T) {
	f := false
	tz := "Europe/Berlin"
	patch := SettingsPatch{
		Email:      &ChannelSettingsPatch{SystemAlerts: &f},
		QuietHours: &QuietHoursPatch{Timezone: &tz},
		Frequency:  &FrequencyPatch{Immediate: &f},
	}

	s := DefaultSettings(uuid.New())
	patch.ApplyTo(s)

	assert.False(t, s.Email.SystemAlerts)
	assert.Equal(t, "Europe/Berlin", s.QuietHours.Timezone)
	assert.Equal(t, "22:00", s.QuietHours.StartTime)
	assert.False(t, s.Frequency.Immediate)
	assert.False(t, s.Frequency.Daily)
}

func TestParseChannelWireForms(t *testing.T) {
	for _, in := range []string{"in_app", "inApp"} {
		ch, err := ParseChannel(in)
		require.NoError(t, err)
		assert.Equal(t, ChannelInApp, ch)
	}

	_, err := ParseChannel("fax")
	assert.Error(t, err)
}
