package scraper

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"stream-scraper/internal/errors"
	"stream-scraper/internal/metrics"
)

// ConsumerGroup is the consumer-group name shared by all workers.
const ConsumerGroup = "scrapers"

const (
	readCount  = 10
	claimBatch = 100
)

// StartStream publishes the whole catalog onto the durable stream. It is a
// one-shot producer: re-running it appends duplicates, which consumers
// tolerate through ack semantics.
func (s *Scraper) StartStream(ctx context.Context) error {
	if s.rdb == nil {
		return errors.NewConfigError("redis", "stream dispatch requires a redis client")
	}
	stream := s.StreamName()
	var appendErr error
	err := s.catalog.Iterate("", func(_, url string) bool {
		err := s.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{"url": url},
		}).Err()
		if err != nil {
			s.logger.Error("stream append failed", "url", url, "err", err)
			appendErr = errors.NewStorageError("stream append", err)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return appendErr
}

// ensureGroup creates the consumer group at the stream's current tail,
// creating the stream itself when absent. A pre-existing group is fine.
func (s *Scraper) ensureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.StreamName(), ConsumerGroup, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.NewStorageError("create consumer group", err)
	}
	return nil
}

// handleMessage applies the filter and prefix rules, fetches, and acks the
// entry on success. A failed fetch leaves the entry pending so another
// consumer can reclaim it once idle.
func (s *Scraper) handleMessage(ctx context.Context, msg redis.XMessage) error {
	raw, _ := msg.Values["url"].(string)
	if raw == "" {
		// malformed entry; ack so it never circulates again
		return s.ack(ctx, msg.ID)
	}
	if !s.pathAllowed(raw) {
		return s.ack(ctx, msg.ID)
	}
	target := s.absoluteURL(raw)
	if err := s.waitForToken(ctx); err != nil {
		return err
	}
	if err := s.fetchOne(ctx, target); err != nil {
		s.logger.Warn("fetch failed", "url", target, "id", msg.ID, "err", err)
		if s.strategy == StopOnFail {
			s.running.Store(false)
		}
		return nil
	}
	return s.ack(ctx, msg.ID)
}

func (s *Scraper) ack(ctx context.Context, id string) error {
	if err := s.rdb.XAck(ctx, s.StreamName(), ConsumerGroup, id).Err(); err != nil {
		return errors.NewStorageError("ack", err)
	}
	metrics.StreamAcks.Inc()
	return nil
}

// recoverPending reclaims entries that have sat pending longer than minIdle,
// reassigning them to this consumer and processing them immediately.
func (s *Scraper) recoverPending(ctx context.Context) error {
	start := "0-0"
	for s.running.Load() {
		msgs, next, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.StreamName(),
			Group:    ConsumerGroup,
			Consumer: s.consumer,
			MinIdle:  s.minIdle,
			Start:    start,
			Count:    claimBatch,
		}).Result()
		if err != nil {
			return errors.NewStorageError("autoclaim", err)
		}
		for _, msg := range msgs {
			metrics.StreamClaims.Inc()
			if err := s.handleMessage(ctx, msg); err != nil {
				return err
			}
			if !s.running.Load() {
				return nil
			}
		}
		if next == "0-0" || len(msgs) == 0 {
			return nil
		}
		start = next
	}
	return nil
}

// scrapeStream consumes from the durable stream: first the recovery phase
// reclaiming abandoned work, then a steady-state read loop for new entries.
// The run ends when a blocked read returns nothing, or on cancellation.
func (s *Scraper) scrapeStream(ctx context.Context) error {
	if s.rdb == nil {
		return errors.NewConfigError("redis", "distributed mode requires a redis client")
	}
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}
	if err := s.recoverPending(ctx); err != nil {
		return err
	}
	for s.running.Load() && ctx.Err() == nil {
		streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: s.consumer,
			Streams:  []string{s.StreamName(), ">"},
			Count:    readCount,
			Block:    s.blockTimeout,
		}).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return errors.NewStorageError("read group", err)
		}
		for _, str := range streams {
			for _, msg := range str.Messages {
				if err := s.handleMessage(ctx, msg); err != nil {
					return err
				}
				if !s.running.Load() {
					return nil
				}
			}
		}
	}
	return ctx.Err()
}
