package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	Token string
	Debug bool
	// Long polling timeout in seconds
	UpdateTimeout int
	// Number of attempts shown by /history
	HistoryLimit int
	// How long an unfinished registration is remembered
	StateTTL time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		UpdateTimeout: 60,
		HistoryLimit:  10,
		StateTTL:      time.Hour * 24,
	}
}
