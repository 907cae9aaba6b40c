package data

import (
	"context"
	"errors"

	"pricing-service/internal/biz"
	"pricing-service/internal/constants"

	"github.com/go-redis/redis/v8"
)

// catalogVersionRepo 基于 Redis 计数器的价目表版本号
type catalogVersionRepo struct {
	data *Data
}

// NewCatalogVersionRepo 创建版本号 repo
func NewCatalogVersionRepo(data *Data) biz.CatalogVersionRepo {
	return &catalogVersionRepo{data: data}
}

func (r *catalogVersionRepo) CurrentVersion(ctx context.Context) (int64, error) {
	v, err := r.data.rdb.Get(ctx, constants.RedisKeyCatalogVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *catalogVersionRepo) BumpVersion(ctx context.Context) (int64, error) {
	return r.data.rdb.Incr(ctx, constants.RedisKeyCatalogVersion).Result()
}
