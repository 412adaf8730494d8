package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var S store.StoreInterface

func NewCache() error {
	if addr := viper.GetString("cache.redis_addr"); len(addr) > 0 {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("cache.redis_password"),
			DB:       viper.GetInt("cache.redis_db"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("unable to reach redis: %v", err)
		}
		S = redis_store.NewRedis(client)
		log.Info().Str("addr", addr).Msg("Cache is backed by redis.")
		return nil
	}

	S = NewMemoryStore()
	log.Info().Msg("Cache is backed by process memory.")
	return nil
}

func NewMemoryStore() store.StoreInterface {
	return gocache_store.NewGoCache(gocache.New(5*time.Minute, 10*time.Minute))
}
