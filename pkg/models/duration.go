package models

import "fmt"

// DurationKind is the wire tag for a mute length.
type DurationKind string

const (
	DurationForever    DurationKind = "forever"
	DurationTenMinutes DurationKind = "10m"
	DurationOneHour    DurationKind = "1h"
	DurationCustom     DurationKind = "custom"
)

// MuteDuration is the tagged mute length selected in the mute dialog.
// Minutes is meaningful only when Kind is DurationCustom.
type MuteDuration struct {
	Kind    DurationKind
	Minutes int
}

// MuteForever mutes until a moderator lifts it.
func MuteForever() MuteDuration { return MuteDuration{Kind: DurationForever} }

// MuteTenMinutes mutes for ten minutes.
func MuteTenMinutes() MuteDuration { return MuteDuration{Kind: DurationTenMinutes} }

// MuteOneHour mutes for one hour.
func MuteOneHour() MuteDuration { return MuteDuration{Kind: DurationOneHour} }

// MuteCustom mutes for an arbitrary number of minutes.
func MuteCustom(minutes int) MuteDuration {
	return MuteDuration{Kind: DurationCustom, Minutes: minutes}
}

// Validate rejects durations that must never reach the server. A custom
// duration requires at least one minute.
func (d MuteDuration) Validate() error {
	switch d.Kind {
	case DurationForever, DurationTenMinutes, DurationOneHour:
		return nil
	case DurationCustom:
		if d.Minutes < 1 {
			return fmt.Errorf("custom mute requires at least one minute, got %d", d.Minutes)
		}
		return nil
	default:
		return fmt.Errorf("unknown mute duration %q", d.Kind)
	}
}
