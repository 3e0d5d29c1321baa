package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// RedisCartRepository reads carts written by the cart service. Checkout
// never writes to the cart store.
type RedisCartRepository struct {
	client *redis.Client
}

func NewRedisCartRepository(client *redis.Client) *RedisCartRepository {
	return &RedisCartRepository{client: client}
}

func (r *RedisCartRepository) key(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// Snapshot returns the user's current cart. A missing cart is an empty
// snapshot, not an error.
func (r *RedisCartRepository) Snapshot(ctx context.Context, userID string) (*models.CartSnapshot, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.CartSnapshot{UserID: userID, Items: []models.CartLine{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.CartSnapshot
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart for user %s: %w", userID, err)
	}
	cart.UserID = userID
	cart.Items = mergeLines(cart.Items)
	return &cart, nil
}

// mergeLines folds lines sharing a key into one, keeping first-seen order,
// and drops lines with no quantity.
func mergeLines(lines []models.CartLine) []models.CartLine {
	merged := make([]models.CartLine, 0, len(lines))
	index := make(map[models.CartLineKey]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.Key()]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.Key()] = len(merged)
		merged = append(merged, l)
	}
	return merged
}
