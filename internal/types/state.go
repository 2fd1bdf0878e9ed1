package types

// Mode is the single operating state of the teach button workflow.
// Exactly one mode is active at any time.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeTeaching  Mode = "teaching"
	ModeReplaying Mode = "replaying"
)
