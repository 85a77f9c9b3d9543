// Package fleetstate mirrors engine snapshots into Redis for external readers.
// It is write-only from the engine's point of view; nothing is read back at
// startup.
package fleetstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"fleetnav/engine"
	"fleetnav/robot"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func robotKey(id string) string {
	return fmt.Sprintf("fleetnav:robot:%s", id)
}

func laneField(start, end int) string {
	return fmt.Sprintf("%d->%d", start, end)
}

const (
	allRobotsKey = "fleetnav:robots"
	occupancyKey = "fleetnav:occupancy"
	tickKey      = "fleetnav:tick"
)

// WriteSnapshot stores every robot and replaces the occupancy hash in one
// transaction.
func (r *RedisStore) WriteSnapshot(ctx context.Context, snap engine.Snapshot) error {
	pipe := r.client.TxPipeline()
	for _, st := range snap.Robots {
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		pipe.Set(ctx, robotKey(st.ID), data, 0)
		pipe.SAdd(ctx, allRobotsKey, st.ID)
	}
	pipe.Del(ctx, occupancyKey)
	if len(snap.Occupancy) > 0 {
		fields := make([]any, 0, 2*len(snap.Occupancy))
		for _, o := range snap.Occupancy {
			fields = append(fields, laneField(o.Start, o.End), o.RobotID)
		}
		pipe.HSet(ctx, occupancyKey, fields...)
	}
	pipe.Set(ctx, tickKey, snap.Tick, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetRobot(ctx context.Context, id string) (*robot.Status, error) {
	data, err := r.client.Get(ctx, robotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st robot.Status
	return &st, json.Unmarshal(data, &st)
}

func (r *RedisStore) ListRobotIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, allRobotsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// GetOccupancy returns lane ("s->e") to robot id.
func (r *RedisStore) GetOccupancy(ctx context.Context) (map[string]string, error) {
	return r.client.HGetAll(ctx, occupancyKey).Result()
}

func (r *RedisStore) GetTick(ctx context.Context) (uint64, error) {
	val, err := r.client.Get(ctx, tickKey).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// FlushAll removes every key this package writes.
func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.ListRobotIDs(ctx)
	if err != nil {
		return err
	}
	keys := []string{allRobotsKey, occupancyKey, tickKey}
	for _, id := range ids {
		keys = append(keys, robotKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}
