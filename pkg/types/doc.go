// Package types defines the domain model, tagged metadata values, typed
// errors, and configuration for the vasostore persistence engine.
package types
