package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// sessionVersion is the schema version written by Save. Bump it when a
// change to CheckoutSession cannot be read by plain JSON decoding, and add
// an upgrade case to decodeSession.
const sessionVersion = 1

var (
	ErrSessionNotFound           = errors.New("checkout session not found")
	ErrUnsupportedSessionVersion = errors.New("checkout session written by a newer version")
)

// SessionRepository stores checkout sessions by id.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*models.CheckoutSession, error)
	Save(ctx context.Context, session *models.CheckoutSession) error
	Delete(ctx context.Context, id string) error
}

// RedisSessionRepository keeps each session as a versioned JSON envelope
// under checkout:session:<id>. Every save refreshes the TTL, so a session
// expires ttl after its last change.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

type sessionEnvelope struct {
	Version int             `json:"version"`
	Session json.RawMessage `json:"session"`
}

func (r *RedisSessionRepository) key(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(id, data)
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *models.CheckoutSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err()
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func encodeSession(session *models.CheckoutSession) ([]byte, error) {
	body, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionEnvelope{Version: sessionVersion, Session: body})
}

// decodeSession reads any version this build understands. Version 0 is the
// storefront's original format: the bare shipping info object with no
// envelope, no step and no owner.
func decodeSession(id string, data []byte) (*models.CheckoutSession, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode checkout session %s: %w", id, err)
	}

	if _, ok := fields["version"]; !ok {
		var shipping models.ShippingInfo
		if err := json.Unmarshal(data, &shipping); err != nil {
			return nil, fmt.Errorf("decode legacy checkout session %s: %w", id, err)
		}
		return &models.CheckoutSession{ID: id, Step: models.StepCart, Shipping: shipping}, nil
	}

	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode checkout session %s: %w", id, err)
	}
	if env.Version > sessionVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedSessionVersion, env.Version)
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(env.Session, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session %s: %w", id, err)
	}
	session.ID = id
	if !session.Step.Valid() {
		session.Step = models.StepCart
	}
	return &session, nil
}
