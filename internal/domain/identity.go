package domain

import "time"

// Identity is the canonical result of resolving a user-supplied name.
type Identity struct {
	// UUID is 32 lower-case hex characters without separators.
	UUID        string
	DisplayName string
	Profiles    []ProfileSummary
}

// ProfileSummary describes one game-mode profile of a player, most recent first.
type ProfileSummary struct {
	ID          string
	Name        string
	LastSave    time.Time
	Purse       float64
	BankBalance float64
}
