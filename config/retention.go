package config

import (
	"fmt"
	"time"
)

// SchedulePolicy defines how a schedule request is resolved when a periodic
// job already exists under the same logical name.
type SchedulePolicy string

const (
	SchedulePolicyKeep    SchedulePolicy = "keep"    // Ignore the new request if a job is already active
	SchedulePolicyReplace SchedulePolicy = "replace" // Cancel and recreate, losing accumulated period phase
	SchedulePolicyUpdate  SchedulePolicy = "update"  // Recreate while preserving the existing period phase
)

// RetentionConfig holds the retention window and sweep scheduling settings.
// Both the window and the schedule conflict policy are deployment-time
// configuration, not constants.
type RetentionConfig struct {
	Duration           time.Duration  `json:"duration,omitempty" yaml:"duration,omitempty" toml:"duration,omitempty"`                                  // Lifetime of a shared artifact
	SweepInterval      time.Duration  `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty" toml:"sweep_interval,omitempty"`                // Period of the background sweep
	Policy             SchedulePolicy `json:"schedule_policy,omitempty" yaml:"schedule_policy,omitempty" toml:"schedule_policy,omitempty"`             // Conflict policy for the periodic schedule
	Timezone           string         `json:"timezone,omitempty" yaml:"timezone,omitempty" toml:"timezone,omitempty"`                                  // Fixed IANA zone all persisted timestamps are formatted in
	SkipRemoteDeletion bool           `json:"skip_remote_deletion,omitempty" yaml:"skip_remote_deletion,omitempty" toml:"skip_remote_deletion,omitempty"` // If true, sweeps only delete local records
}

// Validate validates the retention configuration
func (rc *RetentionConfig) Validate() error {
	if rc.Duration < 0 {
		return fmt.Errorf("retention duration cannot be negative")
	}
	if rc.SweepInterval < 0 {
		return fmt.Errorf("sweep interval cannot be negative")
	}
	switch rc.Policy {
	case SchedulePolicyKeep, SchedulePolicyReplace, SchedulePolicyUpdate:
		// Valid policies
	case "":
		// Empty is OK, will be set to default in ApplyDefaults
	default:
		return fmt.Errorf("invalid schedule policy: %s (must be one of: keep, replace, update)", rc.Policy)
	}
	if rc.Timezone != "" {
		if _, err := time.LoadLocation(rc.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", rc.Timezone, err)
		}
	}
	return nil
}

// ApplyDefaults sets default values for retention configuration
func (rc *RetentionConfig) ApplyDefaults() {
	if rc.Duration == 0 {
		rc.Duration = 7 * 24 * time.Hour
	}
	if rc.SweepInterval == 0 {
		rc.SweepInterval = 15 * time.Minute
	}
	if rc.Policy == "" {
		rc.Policy = SchedulePolicyKeep
	}
	if rc.Timezone == "" {
		rc.Timezone = "Asia/Tokyo"
	}
}

// Location resolves the configured timezone. Must be called after Validate.
func (rc *RetentionConfig) Location() *time.Location {
	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
