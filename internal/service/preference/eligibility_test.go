package preference

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/roboclub/notification-api/internal/model"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return parsed
}

func TestChannelEligibleNilSettings(t *testing.T) {
	eligible := ChannelEligible(nil, model.ChannelEmail, model.TypeProjectUpdate, time.Now())
	assert.False(t, eligible)
}

func TestChannelEligibleUnknownChannel(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	// Never an error, just ineligible.
	assert.False(t, ChannelEligible(settings, model.Channel("carrier_pigeon"), model.TypeProjectUpdate, mustTime(t, "2026-03-01T12:00:00Z")))
}

func TestChannelEligibleMasterSwitch(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	at := mustTime(t, "2026-03-01T12:00:00Z")

	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, at))

	settings.Email.Enabled = false
	assert.False(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, at),
		"disabled master switch must win over per-type toggles")
	assert.True(t, settings.Email.ProjectUpdates, "toggles stay stored even while the switch is off")
}

func TestChannelEligiblePerTypeToggle(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.Push.EventReminders = false
	at := mustTime(t, "2026-03-01T12:00:00Z")

	assert.False(t, ChannelEligible(settings, model.ChannelPush, model.TypeEventReminder, at))
	assert.True(t, ChannelEligible(settings, model.ChannelPush, model.TypeProjectUpdate, at))
}

func TestChannelEligibleUnmappedTypeFailsOpen(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	at := mustTime(t, "2026-03-01T12:00:00Z")

	// user_activity and contact_message have no per-channel toggle; the
	// engine must not silently drop them.
	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeUserActivity, at))
	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeContactMessage, at))
}

func TestChannelEligibleQuietHoursWrapMidnight(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.QuietHours = model.QuietHours{
		Enabled:   true,
		StartTime: "22:00",
		EndTime:   "08:00",
		Timezone:  "UTC",
	}

	inside := []time.Time{
		mustTime(t, "2026-03-01T23:30:00Z"),
		mustTime(t, "2026-03-02T03:00:00Z"),
		mustTime(t, "2026-03-02T07:59:00Z"),
		mustTime(t, "2026-03-01T22:00:00Z"), // start boundary is inside
	}
	outside := []time.Time{
		mustTime(t, "2026-03-02T08:00:00Z"), // end boundary is outside
		mustTime(t, "2026-03-01T12:00:00Z"),
		mustTime(t, "2026-03-01T21:59:00Z"),
	}

	for _, at := range inside {
		assert.False(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, at), "expected %v to be suppressed", at)
		assert.False(t, ChannelEligible(settings, model.ChannelPush, model.TypeProjectUpdate, at))
	}
	for _, at := range outside {
		assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, at), "expected %v to be deliverable", at)
	}
}

func TestChannelEligibleQuietHoursNeverSilenceInApp(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	at := mustTime(t, "2026-03-01T23:30:00Z") // inside default 22:00-08:00 window

	assert.False(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, at))
	assert.True(t, ChannelEligible(settings, model.ChannelInApp, model.TypeProjectUpdate, at),
		"console mailbox keeps filling through quiet hours")
}

func TestChannelEligibleQuietHoursSameDayWindow(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.QuietHours = model.QuietHours{
		Enabled:   true,
		StartTime: "12:00",
		EndTime:   "14:00",
		Timezone:  "UTC",
	}

	assert.False(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T13:00:00Z")))
	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T15:00:00Z")))
}

func TestChannelEligibleQuietHoursTimezone(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.QuietHours = model.QuietHours{
		Enabled:   true,
		StartTime: "22:00",
		EndTime:   "08:00",
		Timezone:  "America/New_York",
	}

	// 03:00 UTC is 22:00 or 23:00 in New York depending on DST; either way
	// inside the window. 16:00 UTC is the late morning there.
	assert.False(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T04:00:00Z")))
	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T16:00:00Z")))
}

func TestChannelEligibleQuietHoursMalformedClock(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.QuietHours = model.QuietHours{
		Enabled:   true,
		StartTime: "late",
		EndTime:   "early",
		Timezone:  "UTC",
	}

	// An unparseable window suppresses nothing.
	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T23:30:00Z")))
}

func TestChannelEligibleDisabledQuietHours(t *testing.T) {
	settings := model.DefaultSettings(uuid.New())
	settings.QuietHours.Enabled = false

	assert.True(t, ChannelEligible(settings, model.ChannelEmail, model.TypeProjectUpdate, mustTime(t, "2026-03-01T23:30:00Z")))
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"08:30", 510, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseClock(tc.in)
		assert.Equal(t, tc.ok, ok, "parseClock(%q)", tc.in)
		if tc.ok {
			assert.Equal(t, tc.minutes, got, "parseClock(%q)", tc.in)
		}
	}
}
