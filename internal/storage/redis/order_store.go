package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/redis/go-redis/v9"
)

type orderStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RecordOrder stores a finalized order and folds it into the daily sales
func (s *orderStore) RecordOrder(ctx context.Context, order storage.Order) error {
	if order.ID == "" {
		return fmt.Errorf("order ID is required")
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	date := order.Date()
	crossSell := 0
	if order.CrossSellType != "" {
		crossSell = 1
	}

	script := redis.NewScript(recordOrderScript)
	recorded, err := script.Run(ctx, s.client,
		[]string{orderKey(order.ID), orderIndexKey(date), dailySalesKey(date)},
		order.ID,
		string(payload),
		date,
		int64(order.Total),
		order.ExtraCopies,
		crossSell,
		int64(s.ttl.Seconds()),
	).Int()
	if err != nil {
		return err
	}

	if recorded == 0 {
		return storage.ErrAlreadyRecorded
	}
	return nil
}

// GetOrder retrieves an order by ID
func (s *orderStore) GetOrder(ctx context.Context, id string) (*storage.Order, error) {
	payload, err := s.client.Get(ctx, orderKey(id)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return parseOrder(payload)
}

// ListOrders returns the orders recorded on date, oldest first
func (s *orderStore) ListOrders(ctx context.Context, date string) ([]storage.Order, error) {
	ids, err := s.client.SMembers(ctx, orderIndexKey(date)).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Order{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, orderKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	orders := make([]storage.Order, 0, len(ids))
	for _, cmd := range cmds {
		payload, err := cmd.Result()
		if err != nil {
			continue // expired between SMEMBERS and GET
		}

		order, err := parseOrder(payload)
		if err == nil {
			orders = append(orders, *order)
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })

	return orders, nil
}

// GetDailySales retrieves the sales aggregate for date
func (s *orderStore) GetDailySales(ctx context.Context, date string) (*storage.DailySales, error) {
	data, err := s.client.HGetAll(ctx, dailySalesKey(date)).Result()
	if err != nil {
		return nil, err
	}
	return parseDailySales(data)
}

// DeleteOrdersBefore removes orders, indexes and aggregates dated before cutoffDate
func (s *orderStore) DeleteOrdersBefore(ctx context.Context, cutoffDate string) (int, error) {
	prefix := orderIndexKey("")
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		indexKey := iter.Val()
		date := strings.TrimPrefix(indexKey, prefix)

		// Date keys sort lexically
		if date >= cutoffDate {
			continue
		}

		ids, err := s.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return deleted, err
		}

		keys := make([]string, 0, len(ids)+2)
		for _, id := range ids {
			keys = append(keys, orderKey(id))
		}
		keys = append(keys, indexKey, dailySalesKey(date))

		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return deleted, err
		}
		deleted += len(ids)
	}

	if err := iter.Err(); err != nil {
		return deleted, err
	}

	return deleted, nil
}
