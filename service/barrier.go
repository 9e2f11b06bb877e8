package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SceneCounter 栅栏计数器：剧本阶段把计数置为场景数，每个场景视频
// 完成时原子减一。整条规则是——只有把计数减到恰好 0 的那次完成
// 才触发配音阶段。读计数再比较的写法在两个场景同时完成时会把配音
// 任务提交两次，这里必须用原子减。
//
// 场景重生成不会重新置数，后补的完成把计数减成负数，不可能再次
// 触发配音。
type SceneCounter interface {
	Reset(ctx context.Context, projectID string, n int) error
	Decrement(ctx context.Context, projectID string) (int64, error)
}

// RedisSceneCounter 用 Redis DECR 实现，进程重启后计数仍然有效
type RedisSceneCounter struct {
	rdb *redis.Client
}

func NewRedisSceneCounter(addr, password string) *RedisSceneCounter {
	return &RedisSceneCounter{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func counterKey(projectID string) string {
	return fmt.Sprintf("project:%s:scenes_remaining", projectID)
}

func (c *RedisSceneCounter) Reset(ctx context.Context, projectID string, n int) error {
	// 过期时间远大于整条流水线的最长耗时即可
	return c.rdb.Set(ctx, counterKey(projectID), n, 48*time.Hour).Err()
}

func (c *RedisSceneCounter) Decrement(ctx context.Context, projectID string) (int64, error) {
	return c.rdb.Decr(ctx, counterKey(projectID)).Result()
}
