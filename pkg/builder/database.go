package builder

import "github.com/signalwork-ai/agent-relay/internal/models"

// WithDatabase enables usage persistence backed by the given database.
func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

// WithRedis points the relay at a shared Redis instance so rate-limit
// windows span every instance.
func (b *Builder) WithRedis(cfg models.RedisConfig) *Builder {
	b.cfg.Redis = &cfg
	return b
}
