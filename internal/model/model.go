// Package model defines the domain models for TimeScribe.
package model

// Model is the interface that all database models must implement.
type Model interface {
	// SetKey sets the database key for this model.
	SetKey(key string)
	// GetKey returns the database key for this model.
	GetKey() string
}

// KeyPrefix constants for database key generation.
const (
	PrefixInterval    = "interval"
	PrefixSchedule    = "schedule"
	PrefixAbsence     = "absence"
	PrefixWeekBalance = "weekbalance"
)

// DateLayout is the civil date layout used in keys and JSON payloads.
const DateLayout = "2006-01-02"
