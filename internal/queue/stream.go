package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ConsumerGroup is the single group draining every priority stream.
	ConsumerGroup = "reservation_workers"

	// eventRegistryKey tracks which events have streams, so workers know
	// what to read.
	eventRegistryKey = "queue:events"
)

// Per-round read budgets. High is attempted first and deepest; the blocking
// fallback covers all three so low is never starved outright.
var readBudgets = map[Priority]int64{
	PriorityHigh:   10,
	PriorityNormal: 3,
	PriorityLow:    1,
}

// Message is one delivered stream entry
type Message struct {
	EventID  uuid.UUID
	Priority Priority
	StreamID string
	Request  *Request
}

// Broker is the stream-facing surface workers and controllers consume.
type Broker interface {
	Enqueue(ctx context.Context, req *Request) error
	ReadRound(ctx context.Context, consumer string) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	DeadLetter(ctx context.Context, msg Message, reason string) error
	Reclaim(ctx context.Context, consumer string) ([]Message, []Message, error)
	PendingByPriority(ctx context.Context, eventID uuid.UUID) (map[Priority]int64, error)
}

// Streams implements Broker over Redis Streams with one consumer group.
type Streams struct {
	redis         *redis.Client
	maxDeliveries int64
	reclaimIdle   time.Duration
	readBlock     time.Duration
	groups        sync.Map // stream key -> struct{}, groups known to exist
	log           *logger.Logger
}

// NewStreams creates the Redis Streams broker
func NewStreams(client *redis.Client, maxDeliveries int, reclaimIdle, readBlock time.Duration, log *logger.Logger) *Streams {
	return &Streams{
		redis:         client,
		maxDeliveries: int64(maxDeliveries),
		reclaimIdle:   reclaimIdle,
		readBlock:     readBlock,
		log:           log.WithComponent("queue-streams"),
	}
}

func streamKey(eventID uuid.UUID, priority Priority) string {
	return fmt.Sprintf("queue:%s:%s", eventID, priority)
}

func deadLetterKey(eventID uuid.UUID) string {
	return fmt.Sprintf("queue:%s:dead", eventID)
}

// Enqueue appends the request to its priority stream. The consumer group is
// created on first use; enqueue never waits for a worker.
func (s *Streams) Enqueue(ctx context.Context, req *Request) error {
	stream := streamKey(req.EventID, req.Priority)
	if err := s.ensureGroup(ctx, stream); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal queued request: %w", err)
	}

	if err := s.redis.SAdd(ctx, eventRegistryKey, req.EventID.String()).Err(); err != nil {
		return fmt.Errorf("failed to register event stream: %w", err)
	}

	err = s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"request_id": req.RequestID,
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", stream, err)
	}
	return nil
}

// ensureGroup creates the consumer group once per stream, tolerating the
// group already existing.
func (s *Streams) ensureGroup(ctx context.Context, stream string) error {
	if _, known := s.groups.Load(stream); known {
		return nil
	}
	err := s.redis.XGroupCreateMkStream(ctx, stream, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
	}
	s.groups.Store(stream, struct{}{})
	return nil
}

// ReadRound performs one scheduling round: weighted non-blocking reads high
// to low, then one blocking read across every stream when the round came up
// empty.
func (s *Streams) ReadRound(ctx context.Context, consumer string) ([]Message, error) {
	eventIDs, err := s.registeredEvents(ctx)
	if err != nil {
		return nil, err
	}
	if len(eventIDs) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.readBlock):
		}
		return nil, nil
	}

	var out []Message
	for _, priority := range Priorities {
		msgs, err := s.readPriority(ctx, consumer, eventIDs, priority, readBudgets[priority], 0)
		if err != nil {
			return out, err
		}
		out = append(out, msgs...)
	}
	if len(out) > 0 {
		return out, nil
	}

	// Nothing ready: one blocking read covering all three priorities.
	streams := make([]string, 0, len(eventIDs)*len(Priorities))
	for _, priority := range Priorities {
		for _, eventID := range eventIDs {
			streams = append(streams, streamKey(eventID, priority))
		}
	}
	return s.readStreams(ctx, consumer, streams, 1, s.readBlock)
}

func (s *Streams) readPriority(ctx context.Context, consumer string, eventIDs []uuid.UUID, priority Priority, count int64, block time.Duration) ([]Message, error) {
	streams := make([]string, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		streams = append(streams, streamKey(eventID, priority))
	}
	return s.readStreams(ctx, consumer, streams, count, block)
}

func (s *Streams) readStreams(ctx context.Context, consumer string, streams []string, count int64, block time.Duration) ([]Message, error) {
	for _, stream := range streams {
		if err := s.ensureGroup(ctx, stream); err != nil {
			return nil, err
		}
	}

	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	if block == 0 {
		block = -1 // non-blocking
	}
	res, err := s.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumer,
		Streams:  args,
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("stream read failed: %w", err)
	}

	var out []Message
	for _, streamRes := range res {
		eventID, priority, ok := parseStreamKey(streamRes.Stream)
		if !ok {
			continue
		}
		for _, entry := range streamRes.Messages {
			msg, err := decodeEntry(eventID, priority, entry)
			if err != nil {
				s.log.Warn("dropping undecodable stream entry",
					"stream", streamRes.Stream, "id", entry.ID, "error", err.Error())
				_ = s.redis.XAck(ctx, streamRes.Stream, ConsumerGroup, entry.ID).Err()
				continue
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

// Ack acknowledges a processed message
func (s *Streams) Ack(ctx context.Context, msg Message) error {
	return s.redis.XAck(ctx, streamKey(msg.EventID, msg.Priority), ConsumerGroup, msg.StreamID).Err()
}

// DeadLetter moves a message to the event's dead-letter stream and
// acknowledges the original.
func (s *Streams) DeadLetter(ctx context.Context, msg Message, reason string) error {
	payload, err := json.Marshal(msg.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-lettered request: %w", err)
	}

	err = s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: deadLetterKey(msg.EventID),
		Values: map[string]interface{}{
			"request_id": msg.Request.RequestID,
			"payload":    string(payload),
			"reason":     reason,
			"origin":     string(msg.Priority),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to dead letter: %w", err)
	}

	return s.Ack(ctx, msg)
}

// Reclaim scans every pending-entries list for messages idle beyond the
// threshold. Entries still under the delivery budget are claimed for
// consumer and returned for reprocessing; the rest are returned as exhausted
// for dead-lettering.
func (s *Streams) Reclaim(ctx context.Context, consumer string) (reclaimed []Message, exhausted []Message, err error) {
	eventIDs, err := s.registeredEvents(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, eventID := range eventIDs {
		for _, priority := range Priorities {
			stream := streamKey(eventID, priority)
			pending, err := s.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
				Stream: stream,
				Group:  ConsumerGroup,
				Start:  "-",
				End:    "+",
				Count:  128,
				Idle:   s.reclaimIdle,
			}).Result()
			if err != nil {
				// A priority stream nothing was enqueued to yet has no group.
				if err == redis.Nil || strings.Contains(err.Error(), "NOGROUP") {
					continue
				}
				return reclaimed, exhausted, fmt.Errorf("pending scan on %s failed: %w", stream, err)
			}

			for _, entry := range pending {
				claimed, err := s.redis.XClaim(ctx, &redis.XClaimArgs{
					Stream:   stream,
					Group:    ConsumerGroup,
					Consumer: consumer,
					MinIdle:  s.reclaimIdle,
					Messages: []string{entry.ID},
				}).Result()
				if err != nil {
					if err == redis.Nil {
						continue // claimed by someone else meanwhile
					}
					return reclaimed, exhausted, fmt.Errorf("claim on %s failed: %w", stream, err)
				}

				for _, raw := range claimed {
					msg, err := decodeEntry(eventID, priority, raw)
					if err != nil {
						_ = s.redis.XAck(ctx, stream, ConsumerGroup, raw.ID).Err()
						continue
					}
					if entry.RetryCount >= s.maxDeliveries {
						exhausted = append(exhausted, msg)
					} else {
						reclaimed = append(reclaimed, msg)
					}
				}
			}
		}
	}
	return reclaimed, exhausted, nil
}

// PendingByPriority returns the undelivered backlog plus unacknowledged
// deliveries per priority for one event.
func (s *Streams) PendingByPriority(ctx context.Context, eventID uuid.UUID) (map[Priority]int64, error) {
	out := make(map[Priority]int64, len(Priorities))
	for _, priority := range Priorities {
		stream := streamKey(eventID, priority)

		groups, err := s.redis.XInfoGroups(ctx, stream).Result()
		if err != nil {
			// Stream not created yet: nothing pending.
			out[priority] = 0
			continue
		}
		var pending int64
		for _, group := range groups {
			if group.Name == ConsumerGroup {
				pending = group.Lag + group.Pending
				break
			}
		}
		out[priority] = pending
	}
	return out, nil
}

func (s *Streams) registeredEvents(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.redis.SMembers(ctx, eventRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list event streams: %w", err)
	}

	out := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func parseStreamKey(key string) (uuid.UUID, Priority, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "queue" {
		return uuid.Nil, "", false
	}
	eventID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, "", false
	}
	priority := Priority(parts[2])
	if !priority.IsValid() {
		return uuid.Nil, "", false
	}
	return eventID, priority, true
}

func decodeEntry(eventID uuid.UUID, priority Priority, entry redis.XMessage) (Message, error) {
	raw, ok := entry.Values["payload"].(string)
	if !ok {
		return Message{}, fmt.Errorf("entry %s has no payload", entry.ID)
	}

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return Message{}, fmt.Errorf("entry %s payload: %w", entry.ID, err)
	}

	return Message{
		EventID:  eventID,
		Priority: priority,
		StreamID: entry.ID,
		Request:  &req,
	}, nil
}
