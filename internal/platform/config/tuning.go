package config

import (
	"fmt"
	"time"
)

// Tuning profile names accepted in tuning.profile.
const (
	ProfileDefault = "default"
	ProfileStress  = "stress"
	ProfileLow     = "low"
)

// Tuning holds buffer sizes and limits for high load.
type Tuning struct {
	Profile string `yaml:"profile" validate:"omitempty,oneof=default stress low"`

	// Channel buffer sizes
	EventChannelBuffer int `yaml:"event_channel_buffer" validate:"gt=0"`
	ClientSendBuffer   int `yaml:"client_send_buffer" validate:"gt=0"`

	// Journal connection pool
	DBMaxOpenConns int `yaml:"db_max_open_conns" validate:"gt=0"`

	// Rate limiting
	MaxMessagesPerSecond int `yaml:"max_messages_per_second" validate:"gt=0"`
	MaxSessions          int `yaml:"max_sessions" validate:"gt=0"`

	// Sessions idle for longer than this are closed by the reaper.
	IdleSessionTTL time.Duration `yaml:"idle_session_ttl" validate:"gte=0"`
	ReapInterval   time.Duration `yaml:"reap_interval" validate:"gt=0"`
}

// DefaultTuning returns sensible defaults for production.
func DefaultTuning() Tuning {
	return Tuning{
		Profile:              ProfileDefault,
		EventChannelBuffer:   1024, // Handle bursts
		ClientSendBuffer:     64,   // Per WebSocket
		DBMaxOpenConns:       1,    // :memory: databases live on a single connection
		MaxMessagesPerSecond: 20,   // Per client
		MaxSessions:          256,
		IdleSessionTTL:       30 * time.Minute,
		ReapInterval:         time.Minute,
	}
}

// StressTuning returns aggressive settings for the agitator.
func StressTuning() Tuning {
	t := DefaultTuning()
	t.Profile = ProfileStress
	t.EventChannelBuffer = 8192
	t.ClientSendBuffer = 256
	t.MaxMessagesPerSecond = 500
	t.MaxSessions = 4096
	t.IdleSessionTTL = 5 * time.Minute
	return t
}

// LowTuning returns minimal settings for development.
func LowTuning() Tuning {
	t := DefaultTuning()
	t.Profile = ProfileLow
	t.EventChannelBuffer = 64
	t.ClientSendBuffer = 8
	t.MaxMessagesPerSecond = 10
	t.MaxSessions = 16
	return t
}

// TuningProfile resolves a profile name.
func TuningProfile(name string) (Tuning, error) {
	switch name {
	case "", ProfileDefault:
		return DefaultTuning(), nil
	case ProfileStress:
		return StressTuning(), nil
	case ProfileLow:
		return LowTuning(), nil
	default:
		return Tuning{}, fmt.Errorf("unknown tuning profile %q", name)
	}
}

// overlayTuning starts from a profile and keeps any value the file changed
// away from the default.
func overlayTuning(profile, fromFile Tuning) Tuning {
	def := DefaultTuning()
	out := profile
	if fromFile.EventChannelBuffer != def.EventChannelBuffer {
		out.EventChannelBuffer = fromFile.EventChannelBuffer
	}
	if fromFile.ClientSendBuffer != def.ClientSendBuffer {
		out.ClientSendBuffer = fromFile.ClientSendBuffer
	}
	if fromFile.DBMaxOpenConns != def.DBMaxOpenConns {
		out.DBMaxOpenConns = fromFile.DBMaxOpenConns
	}
	if fromFile.MaxMessagesPerSecond != def.MaxMessagesPerSecond {
		out.MaxMessagesPerSecond = fromFile.MaxMessagesPerSecond
	}
	if fromFile.MaxSessions != def.MaxSessions {
		out.MaxSessions = fromFile.MaxSessions
	}
	if fromFile.IdleSessionTTL != def.IdleSessionTTL {
		out.IdleSessionTTL = fromFile.IdleSessionTTL
	}
	if fromFile.ReapInterval != def.ReapInterval {
		out.ReapInterval = fromFile.ReapInterval
	}
	return out
}
