package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStatusNotFound means the record never existed or its TTL lapsed;
	// callers report the request as Expired.
	ErrStatusNotFound = errors.New("request status not found")
	// ErrStateConflict means the record was not in any of the expected
	// states; the stored record is returned alongside.
	ErrStateConflict = errors.New("request state does not permit transition")
)

// Lua script for atomic state transitions. The new record is written only
// when the stored state is one of the expected ones, keeping the remaining
// TTL, so a terminal state can never regress.
const luaStatusTransition = `
local current = redis.call("GET", KEYS[1])
if not current then
    return {0, ""}
end
local obj = cjson.decode(current)
for expected in string.gmatch(ARGV[1], "[^,]+") do
    if obj.state == expected then
        redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
        return {1, obj.state}
    end
end
return {0, obj.state}
`

// StatusStore keeps one keyed record per queued request with TTL.
type StatusStore interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, requestID string) (*Request, error)
	MarkProcessing(ctx context.Context, requestID string) (*Request, error)
	Complete(ctx context.Context, requestID string, result *Result) (*Request, error)
	Fail(ctx context.Context, requestID string, errInfo *ErrorInfo) (*Request, error)
	CancelIfPending(ctx context.Context, requestID string) (*Request, error)
}

type statusStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStatusStore creates a Redis-backed request-status store
func NewStatusStore(client *redis.Client, ttl time.Duration) StatusStore {
	return &statusStore{redis: client, ttl: ttl}
}

func statusKey(requestID string) string {
	return "req:" + requestID
}

func (s *statusStore) Create(ctx context.Context, req *Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request status: %w", err)
	}
	return s.redis.Set(ctx, statusKey(req.RequestID), payload, s.ttl).Err()
}

func (s *statusStore) Get(ctx context.Context, requestID string) (*Request, error) {
	payload, err := s.redis.Get(ctx, statusKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStatusNotFound
		}
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request status: %w", err)
	}
	return &req, nil
}

func (s *statusStore) MarkProcessing(ctx context.Context, requestID string) (*Request, error) {
	return s.transition(ctx, requestID, []State{StatePending}, func(req *Request) {
		now := time.Now()
		req.State = StateProcessing
		req.StartedAt = &now
	})
}

func (s *statusStore) Complete(ctx context.Context, requestID string, result *Result) (*Request, error) {
	return s.transition(ctx, requestID, []State{StateProcessing, StatePending}, func(req *Request) {
		now := time.Now()
		req.State = StateCompleted
		req.FinishedAt = &now
		req.Result = result
		req.Error = nil
	})
}

func (s *statusStore) Fail(ctx context.Context, requestID string, errInfo *ErrorInfo) (*Request, error) {
	return s.transition(ctx, requestID, []State{StateProcessing, StatePending}, func(req *Request) {
		now := time.Now()
		req.State = StateFailed
		req.FinishedAt = &now
		req.Error = errInfo
	})
}

func (s *statusStore) CancelIfPending(ctx context.Context, requestID string) (*Request, error) {
	return s.transition(ctx, requestID, []State{StatePending}, func(req *Request) {
		now := time.Now()
		req.State = StateCancelled
		req.FinishedAt = &now
		req.Error = &ErrorInfo{Kind: "Cancelled", Message: "cancelled by user"}
	})
}

// transition loads the record, applies mutate and writes it back iff the
// stored state is still one of expected (checked server-side).
func (s *statusStore) transition(ctx context.Context, requestID string, expected []State, mutate func(*Request)) (*Request, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	mutate(req)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request status: %w", err)
	}

	states := make([]string, len(expected))
	for i, st := range expected {
		states[i] = string(st)
	}

	key := statusKey(requestID)
	result, err := s.redis.Eval(ctx, luaStatusTransition, []string{key},
		strings.Join(states, ","), string(payload)).Result()
	if err != nil {
		return nil, fmt.Errorf("status transition failed: %w", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, fmt.Errorf("unexpected status transition reply %T", result)
	}
	applied, _ := reply[0].(int64)
	if applied == 1 {
		return req, nil
	}

	stored, _ := reply[1].(string)
	if stored == "" {
		return nil, ErrStatusNotFound
	}
	current, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return current, fmt.Errorf("%w: state is %s", ErrStateConflict, stored)
}
