// Package redisstore keeps sidecar aggregates in Redis so several mdreview
// processes can share one review state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/events"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/sidecar"
)

const (
	defaultPrefix = "mdreview:"
	fieldPayload  = "payload"
	fieldOrigin   = "origin"
	fieldUpdated  = "updated_at"
)

// Store implements sidecar storage using Redis hashes.
type Store struct {
	client *redis.Client
	prefix string
	// instance tags notices from this store so Watch can skip its own writes.
	instance string
	log      *slog.Logger
}

// notice is the message published on the changes channel after a write.
type notice struct {
	Doc      string    `json:"doc"`
	Origin   string    `json:"origin"`
	Instance string    `json:"instance"`
	At       time.Time `json:"at"`
}

// NewStore connects to redisURL and verifies the connection.
func NewStore(redisURL string, log *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, log), nil
}

// NewStoreWithClient creates a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		client:   client,
		prefix:   defaultPrefix,
		instance: uuid.NewString(),
		log:      log,
	}
}

func (s *Store) key(doc string) string {
	return s.prefix + "sidecar:" + doc
}

func (s *Store) indexKey() string {
	return s.prefix + "docs"
}

// Channel is the pub/sub channel that carries write notices.
func (s *Store) Channel() string {
	return s.prefix + "changes"
}

// Read loads doc's sidecar. Missing and malformed payloads yield nil with no
// error.
func (s *Store) Read(ctx context.Context, doc string) (*sidecar.File, error) {
	if err := docref.Validate(doc); err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, s.key(doc), fieldPayload).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sidecar %s: %w", doc, err)
	}

	file, err := sidecar.Unmarshal([]byte(payload))
	if err != nil {
		s.log.Warn("ignoring malformed sidecar", "doc", doc, "backend", "redis", "error", err)
		return nil, nil
	}
	return file, nil
}

// Write replaces doc's sidecar, records it in the document index and
// publishes a notice in one transaction.
func (s *Store) Write(ctx context.Context, doc string, file *sidecar.File, origin string) error {
	if err := docref.Validate(doc); err != nil {
		return err
	}
	payload, err := sidecar.Marshal(file)
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	msg, err := json.Marshal(notice{Doc: doc, Origin: origin, Instance: s.instance, At: at})
	if err != nil {
		return fmt.Errorf("marshal change notice: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(doc),
			fieldPayload, string(payload),
			fieldOrigin, origin,
			fieldUpdated, at.Format(time.RFC3339Nano))
		pipe.SAdd(ctx, s.indexKey(), doc)
		pipe.Publish(ctx, s.Channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write sidecar %s: %w", doc, err)
	}
	return nil
}

// LastOrigin returns the origin tag of the most recent write to doc.
func (s *Store) LastOrigin(ctx context.Context, doc string) (string, bool, error) {
	origin, err := s.client.HGet(ctx, s.key(doc), fieldOrigin).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read origin %s: %w", doc, err)
	}
	return origin, true, nil
}

// Delete removes doc's sidecar and its index entry.
func (s *Store) Delete(ctx context.Context, doc string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(doc))
		pipe.SRem(ctx, s.indexKey(), doc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete sidecar %s: %w", doc, err)
	}
	return nil
}

// Docs lists every indexed document identity, sorted.
func (s *Store) Docs(ctx context.Context) ([]string, error) {
	docs, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sidecars: %w", err)
	}
	slices.Sort(docs)
	return docs, nil
}

// Watch subscribes to the changes channel and republishes notices written by
// other stores on bus until ctx is cancelled or stop is called. Writes made
// through s are skipped. The subscription is active when Watch returns.
func (s *Store) Watch(ctx context.Context, bus *events.Bus) (stop func(), err error) {
	pubsub := s.client.Subscribe(ctx, s.Channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.Channel(), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n notice
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					s.log.Warn("ignoring malformed change notice", "error", err)
					continue
				}
				if n.Instance == s.instance {
					continue
				}
				bus.Publish(events.Change{Doc: n.Doc, Origin: n.Origin, At: n.At})
			}
		}
	}()

	return func() {
		_ = pubsub.Close()
		<-done
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
