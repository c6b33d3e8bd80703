package preference

import (
	"strconv"
	"strings"
	"time"

	"github.com/roboclub/notification-api/internal/model"
)

// ChannelEligible decides whether a notification of the given type may be
// delivered on the channel at the given instant, under the user's settings.
//
// The checks run in order: channel master switch, per-type toggle (absent
// toggles fail open so new notification types are never silently dropped),
// then quiet hours. Quiet hours silence email, push and SMS but never in-app:
// the console mailbox keeps filling while active delivery is suppressed.
//
// Eligibility never errors. An unrecognized channel is simply ineligible, so
// a bad preference document can never block notification creation.
func ChannelEligible(settings *model.NotificationSettings, channel model.Channel, notificationType model.Type, at time.Time) bool {
	if settings == nil {
		return false
	}

	ch, ok := settings.Channel(channel)
	if !ok {
		return false
	}
	if !ch.Enabled {
		return false
	}

	if enabled, mapped := ch.ToggleFor(notificationType); mapped && !enabled {
		return false
	}

	if channel != model.ChannelInApp && inQuietHours(settings.QuietHours, at) {
		return false
	}

	return true
}

// inQuietHours reports whether at falls inside the suppression window,
// evaluated in the window's own timezone. A window whose start is later than
// its end wraps past midnight.
func inQuietHours(q model.QuietHours, at time.Time) bool {
	if !q.Enabled {
		return false
	}

	start, ok := parseClock(q.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(q.EndTime)
	if !ok {
		return false
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start <= end {
		return minute >= start && minute < end
	}
	// 22:00-08:00 style window: tonight or the small hours.
	return minute >= start || minute < end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
