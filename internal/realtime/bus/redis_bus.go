package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/portakall/retromeet/internal/platform/envutil"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/realtime"
)

const defaultPrefix = "retromeet:sse"

// redisBus maps each hub channel onto its own redis channel under prefix,
// e.g. project:7 is published on retromeet:sse:project:7.
type redisBus struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

// NewRedisBus fans hub messages out across processes. The client is shared
// and owned by the caller; Close stops the forwarders but leaves it open.
func NewRedisBus(log *logger.Logger, rdb goredis.UniversalClient, prefix string) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &redisBus{
		log:    log.With("service", "RedisSSEBus"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

// ChannelFromEnv reads REDIS_CHANNEL, the prefix of every redis channel the
// bus uses.
func ChannelFromEnv() string {
	return envutil.String("REDIS_CHANNEL", defaultPrefix)
}

func (b *redisBus) redisChannel(hubChannel string) string {
	return b.prefix + ":" + hubChannel
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if msg.Channel == "" {
		return fmt.Errorf("SSE message without channel")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode SSE message: %w", err)
	}
	return b.rdb.Publish(ctx, b.redisChannel(msg.Channel), raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("redis SSE bus closed")
	}
	fwdCtx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	sub := b.rdb.PSubscribe(fwdCtx, b.prefix+":*")
	if _, err := sub.Receive(fwdCtx); err != nil {
		cancel()
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-fwdCtx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := b.decode(m)
				if err != nil {
					b.log.Warn("Dropping redis SSE payload", "channel", m.Channel, "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	b.log.Info("Redis SSE forwarder started", "pattern", b.prefix+":*")
	return nil
}

// decode trusts the redis channel over the payload's own channel field.
func (b *redisBus) decode(m *goredis.Message) (realtime.SSEMessage, error) {
	var msg realtime.SSEMessage
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		return msg, err
	}
	hubChannel, ok := strings.CutPrefix(m.Channel, b.prefix+":")
	if !ok || hubChannel == "" {
		return msg, fmt.Errorf("unexpected channel %q", m.Channel)
	}
	msg.Channel = hubChannel
	return msg, nil
}

func (b *redisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	return nil
}
