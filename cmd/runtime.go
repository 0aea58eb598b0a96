package cmd

import (
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/spf13/viper"

	"github.com/botburrow/cli/internal/cache"
	"github.com/botburrow/cli/internal/repo"
	"github.com/botburrow/cli/internal/resolver"
)

// newManager wires the repository manager from the viper configuration.
func newManager(log logger.Logger) (*repo.Manager, error) {
	sources, err := repo.LoadSources(viper.GetString("repos.file"))
	if err != nil {
		return nil, err
	}
	return repo.NewManager(sources, repo.ManagerOptions{
		SecretsDir: viper.GetString("repos.secrets_dir"),
		Timeout:    viper.GetDuration("git.timeout"),
		CloneDepth: viper.GetInt("git.depth"),
		Workers:    viper.GetInt("git.workers"),
	}, log), nil
}

func newCache(log logger.Logger) *cache.TieredCache {
	return cache.New(cache.Config{
		RedisURL:   viper.GetString("cache.redis_url"),
		DefaultTTL: viper.GetDuration("cache.ttl"),
		Disabled:   !viper.GetBool("cache.enabled"),
	}, log)
}

func newResolver(manager *repo.Manager, c cache.Cache, log logger.Logger) *resolver.Resolver {
	ttl := viper.GetDuration("cache.ttl")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return resolver.New(manager, c, ttl, log)
}
