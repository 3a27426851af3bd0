package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyRealtimeEvents is the pub/sub channel carrying broadcast envelopes between instances
func (kb *KeyBuilder) KeyRealtimeEvents() string {
	return kb.BuildKey(KeyRealtimeEvents)
}

func (kb *KeyBuilder) KeySweepLock(job string) string {
	return kb.BuildKey(fmt.Sprintf(KeySweepLock, job))
}

func (kb *KeyBuilder) KeySweepLastRun(job string) string {
	return kb.BuildKey(fmt.Sprintf(KeySweepLastRun, job))
}

func (kb *KeyBuilder) KeyLeaderboard() string {
	return kb.BuildKey(KeyLeaderboard)
}

func (kb *KeyBuilder) KeyLeaderboardGeneration() string {
	return kb.BuildKey(KeyLeaderboardGeneration)
}
