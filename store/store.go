package store

import (
	"fmt"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/store/mongo"
	"github.com/Code-trac/aito-dep/store/sqlite"
	"github.com/Code-trac/aito-dep/utils/config"
)

var (
	_ entity.ISink = (*Memory)(nil)
	_ entity.ISink = (*sqlite.Store)(nil)
	_ entity.ISink = (*mongo.Store)(nil)
)

// Open 根据配置创建持久化实现
// 参数：cfg-已填充默认值的存储配置
// 返回：持久化实现，未知驱动或打开失败时返回错误
func Open(cfg config.Store) (entity.ISink, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "mongo":
		return mongo.Open(cfg.URI, cfg.DB), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
