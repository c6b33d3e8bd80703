package model

import (
	"time"

	"github.com/google/uuid"
)

// ChannelSettings is the per-channel preference sub-record: a master switch
// plus one toggle per notification class the channel supports. The individual
// toggles are only meaningful while Enabled is true.
type ChannelSettings struct {
	Enabled         bool `json:"enabled"`
	ProjectUpdates  bool `json:"projectUpdates"`
	EventReminders  bool `json:"eventReminders"`
	NewsUpdates     bool `json:"newsUpdates"`
	Newsletters     bool `json:"newsletters"`
	InventoryAlerts bool `json:"inventoryAlerts"`
	SystemAlerts    bool `json:"systemAlerts"`
	SecurityAlerts  bool `json:"securityAlerts"`
}

// ToggleFor maps a notification type onto the channel toggle that governs it.
// The second return is false when the schema has no toggle for the type; the
// preference engine treats that as eligible so new types are never silently
// dropped.
func (c ChannelSettings) ToggleFor(t Type) (bool, bool) {
	switch t {
	case TypeProjectUpdate, TypeProjectApproved, TypeProjectRejected:
		return c.ProjectUpdates, true
	case TypeEventReminder:
		return c.EventReminders, true
	case TypeNewsPublished, TypeMediaUpload:
		return c.NewsUpdates, true
	case TypeNewsletterIssue:
		return c.Newsletters, true
	case TypeInventoryAlert:
		return c.InventoryAlerts, true
	case TypeSystemAlert:
		return c.SystemAlerts, true
	case TypeSecurityAlert:
		return c.SecurityAlerts, true
	}
	return false, false
}

// Frequency describes digest cadence. Immediate means deliver as generated;
// the others imply batching, which an external job executes.
type Frequency struct {
	Immediate bool `json:"immediate"`
	Daily     bool `json:"daily"`
	Weekly    bool `json:"weekly"`
	Monthly   bool `json:"monthly"`
}

// QuietHours is a suppression window. When StartTime > EndTime the window
// wraps past midnight.
type QuietHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Timezone  string `json:"timezone"`
}

// AdminSettings gates admin-only alert classes. Stored uniformly for every
// user, consulted only for admin-role accounts.
type AdminSettings struct {
	CriticalAlerts bool `json:"criticalAlerts"`
	SystemHealth   bool `json:"systemHealth"`
	UserActivity   bool `json:"userActivity"`
	Security       bool `json:"security"`
	Backup         bool `json:"backup"`
	Performance    bool `json:"performance"`
}

// NotificationSettings is the one-per-user preference document, created
// lazily with DefaultSettings on first access.
type NotificationSettings struct {
	UserID        uuid.UUID       `json:"userId"`
	Email         ChannelSettings `json:"email"`
	Push          ChannelSettings `json:"push"`
	SMS           ChannelSettings `json:"sms"`
	InApp         ChannelSettings `json:"inApp"`
	Frequency     Frequency       `json:"frequency"`
	QuietHours    QuietHours      `json:"quietHours"`
	AdminSettings AdminSettings   `json:"adminSettings"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Channel returns the sub-record for a delivery channel. ok is false for an
// unrecognized channel.
func (s *NotificationSettings) Channel(ch Channel) (ChannelSettings, bool) {
	switch ch {
	case ChannelEmail:
		return s.Email, true
	case ChannelPush:
		return s.Push, true
	case ChannelSMS:
		return s.SMS, true
	case ChannelInApp:
		return s.InApp, true
	}
	return ChannelSettings{}, false
}

// DefaultSettings is the documented default document for a user with no prior
// record: every channel enabled except SMS, quiet hours 22:00-08:00 UTC,
// immediate delivery.
func DefaultSettings(userID uuid.UUID) *NotificationSettings {
	allOn := ChannelSettings{
		Enabled:         true,
		ProjectUpdates:  true,
		EventReminders:  true,
		NewsUpdates:     true,
		Newsletters:     true,
		InventoryAlerts: true,
		SystemAlerts:    true,
		SecurityAlerts:  true,
	}
	smsOff := allOn
	smsOff.Enabled = false

	return &NotificationSettings{
		UserID: userID,
		Email:  allOn,
		Push:   allOn,
		SMS:    smsOff,
		InApp:  allOn,
		Frequency: Frequency{
			Immediate: true,
		},
		QuietHours: QuietHours{
			Enabled:   true,
			StartTime: "22:00",
			EndTime:   "08:00",
			Timezone:  "UTC",
		},
		AdminSettings: AdminSettings{
			CriticalAlerts: true,
			SystemHealth:   true,
			UserActivity:   false,
			Security:       true,
			Backup:         false,
			Performance:    false,
		},
	}
}

// ChannelSettingsPatch mirrors ChannelSettings with optional leaves.
type ChannelSettingsPatch struct {
	Enabled         *bool `json:"enabled,omitempty"`
	ProjectUpdates  *bool `json:"projectUpdates,omitempty"`
	EventReminders  *bool `json:"eventReminders,omitempty"`
	NewsUpdates     *bool `json:"newsUpdates,omitempty"`
	Newsletters     *bool `json:"newsletters,omitempty"`
	InventoryAlerts *bool `json:"inventoryAlerts,omitempty"`
	SystemAlerts    *bool `json:"systemAlerts,omitempty"`
	SecurityAlerts  *bool `json:"securityAlerts,omitempty"`
}

func (p *ChannelSettingsPatch) applyTo(c *ChannelSettings) {
	if p == nil {
		return
	}
	setBool(&c.Enabled, p.Enabled)
	setBool(&c.ProjectUpdates, p.ProjectUpdates)
	setBool(&c.EventReminders, p.EventReminders)
	setBool(&c.NewsUpdates, p.NewsUpdates)
	setBool(&c.Newsletters, p.Newsletters)
	setBool(&c.InventoryAlerts, p.InventoryAlerts)
	setBool(&c.SystemAlerts, p.SystemAlerts)
	setBool(&c.SecurityAlerts, p.SecurityAlerts)
}

// FrequencyPatch mirrors Frequency with optional leaves.
type FrequencyPatch struct {
	Immediate *bool `json:"immediate,omitempty"`
	Daily     *bool `json:"daily,omitempty"`
	Weekly    *bool `json:"weekly,omitempty"`
	Monthly   *bool `json:"monthly,omitempty"`
}

func (p *FrequencyPatch) applyTo(f *Frequency) {
	if p == nil {
		return
	}
	setBool(&f.Immediate, p.Immediate)
	setBool(&f.Daily, p.Daily)
	setBool(&f.Weekly, p.Weekly)
	setBool(&f.Monthly, p.Monthly)
}

// QuietHoursPatch mirrors QuietHours with optional leaves.
type QuietHoursPatch struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	StartTime *string `json:"startTime,omitempty" binding:"omitempty,clock"`
	EndTime   *string `json:"endTime,omitempty" binding:"omitempty,clock"`
	Timezone  *string `json:"timezone,omitempty"`
}

func (p *QuietHoursPatch) applyTo(q *QuietHours) {
	if p == nil {
		return
	}
	setBool(&q.Enabled, p.Enabled)
	setString(&q.StartTime, p.StartTime)
	setString(&q.EndTime, p.EndTime)
	setString(&q.Timezone, p.Timezone)
}

// AdminSettingsPatch mirrors AdminSettings with optional leaves.
type AdminSettingsPatch struct {
	CriticalAlerts *bool `json:"criticalAlerts,omitempty"`
	SystemHealth   *bool `json:"systemHealth,omitempty"`
	UserActivity   *bool `json:"userActivity,omitempty"`
	Security       *bool `json:"security,omitempty"`
	Backup         *bool `json:"backup,omitempty"`
	Performance    *bool `json:"performance,omitempty"`
}

func (p *AdminSettingsPatch) applyTo(a *AdminSettings) {
	if p == nil {
		return
	}
	setBool(&a.CriticalAlerts, p.CriticalAlerts)
	setBool(&a.SystemHealth, p.SystemHealth)
	setBool(&a.UserActivity, p.UserActivity)
	setBool(&a.Security, p.Security)
	setBool(&a.Backup, p.Backup)
	setBool(&a.Performance, p.Performance)
}

// SettingsPatch is a partial settings document. ApplyTo merges only the
// leaves that were provided; every other stored value is preserved. The merge
// walks the fixed schema recursively rather than shallow-copying sections, so
// updating one toggle never clobbers its siblings.
type SettingsPatch struct {
	Email         *ChannelSettingsPatch `json:"email,omitempty"`
	Push          *ChannelSettingsPatch `json:"push,omitempty"`
	SMS           *ChannelSettingsPatch `json:"sms,omitempty"`
	InApp         *ChannelSettingsPatch `json:"inApp,omitempty"`
	Frequency     *FrequencyPatch       `json:"frequency,omitempty"`
	QuietHours    *QuietHoursPatch      `json:"quietHours,omitempty"`
	AdminSettings *AdminSettingsPatch   `json:"adminSettings,omitempty"`
}

// ApplyTo deep-merges the patch into an existing settings document.
func (p *SettingsPatch) ApplyTo(s *NotificationSettings) {
	if p == nil {
		return
	}
	p.Email.applyTo(&s.Email)
	p.Push.applyTo(&s.Push)
	p.SMS.applyTo(&s.SMS)
	p.InApp.applyTo(&s.InApp)
	p.Frequency.applyTo(&s.Frequency)
	p.QuietHours.applyTo(&s.QuietHours)
	p.AdminSettings.applyTo(&s.AdminSettings)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
