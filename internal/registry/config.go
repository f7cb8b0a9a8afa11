package registry

import (
	"fmt"

	"github.com/patrickwarner/adbroker/internal/db"
)

// NewStore selects the store named by kind ("file", "memory", "redis",
// "postgres"). The redis and postgres connections are only consulted for
// their own kind.
func NewStore(kind, path string, rdb *db.RedisStore, pg *db.Postgres) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("registry store redis: no redis connection")
		}
		return db.NewRedisRegistryStore(rdb), nil
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("registry store postgres: no postgres connection")
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown REGISTRY_STORE %q", kind)
}
