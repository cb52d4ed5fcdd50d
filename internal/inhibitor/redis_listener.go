package inhibitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis keys for do-not-auto-sleep holders
	DnastHashKey = "display:dnast"
	DnastChannel = "display:dnast"
)

// DnastData is the JSON stored per holder in the hash. Duration is in
// seconds; 0 holds until the field is removed.
type DnastData struct {
	ID       string `json:"id"`
	Who      string `json:"who"`
	Why      string `json:"why"`
	Duration int64  `json:"duration"`
	Created  int64  `json:"created"`
}

// RedisListener mirrors the display:dnast hash into the manager
type RedisListener struct {
	client  *redis.Client
	manager *Manager
	logger  *log.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mutex  sync.Mutex
	timers map[string]*time.Timer
	known  map[string]bool
}

// NewRedisListener creates a listener on an existing client.
func NewRedisListener(client *redis.Client, manager *Manager, logger *log.Logger) *RedisListener {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisListener{
		client:  client,
		manager: manager,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]*time.Timer),
		known:   make(map[string]bool),
	}
}

// Start subscribes to the channel and starts the hash monitor.
func (r *RedisListener) Start() error {
	pubsub := r.client.Subscribe(r.ctx, DnastChannel)
	if _, err := pubsub.Receive(r.ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", DnastChannel, err)
	}
	r.logger.Printf("Subscribed to Redis channel: %s", DnastChannel)

	r.wg.Add(2)
	go r.channelListener(pubsub)
	go r.hashFieldMonitor()
	return nil
}

func (r *RedisListener) channelListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	channel := pubsub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-channel:
			if !ok {
				r.logger.Printf("Redis channel %s closed", DnastChannel)
				return
			}
			r.HandleMessage(msg.Payload)
		}
	}
}

// HandleMessage processes "add:<id>" and "remove:<id>".
func (r *RedisListener) HandleMessage(payload string) {
	action, id, ok := strings.Cut(payload, ":")
	if !ok || id == "" {
		r.logger.Printf("Invalid dnast message format: %s", payload)
		return
	}

	switch action {
	case "add":
		r.handleAdd(id)
	case "remove":
		r.forget(id)
		r.handleRemove(id)
	default:
		r.logger.Printf("Unknown dnast action: %s", action)
	}
}

// hashFieldMonitor reconciles with the hash once a second, catching writers
// that never publish.
func (r *RedisListener) hashFieldMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			fields, err := r.client.HGetAll(r.ctx, DnastHashKey).Result()
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Printf("Error getting dnast holders from Redis: %v", err)
				}
				continue
			}
			r.reconcile(fields)
		}
	}
}

// reconcile adds fields not seen before and removes holders whose field is
// gone. A holder that expired keeps its field known, so it is not re-added.
func (r *RedisListener) reconcile(fields map[string]string) {
	r.mutex.Lock()
	var added, removed []string
	for id := range fields {
		if !r.known[id] {
			added = append(added, id)
		}
	}
	for id := range r.known {
		if _, exists := fields[id]; !exists {
			removed = append(removed, id)
			delete(r.known, id)
		}
	}
	r.mutex.Unlock()

	for _, id := range added {
		r.add(id, fields[id])
	}
	for _, id := range removed {
		r.handleRemove(id)
	}
}

func (r *RedisListener) forget(id string) {
	r.mutex.Lock()
	delete(r.known, id)
	r.mutex.Unlock()
}

func (r *RedisListener) handleAdd(id string) {
	raw, err := r.client.HGet(r.ctx, DnastHashKey, id).Result()
	if err != nil {
		r.logger.Printf("Error getting dnast data for %s: %v", id, err)
		return
	}
	r.add(id, raw)
}

func (r *RedisListener) add(id, raw string) {
	var data DnastData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		r.logger.Printf("Error parsing dnast data for %s: %v", id, err)
		return
	}

	r.mutex.Lock()
	seen := r.known[id]
	r.known[id] = true
	r.mutex.Unlock()
	if seen {
		return
	}

	r.manager.Acquire("redis:"+id, data.Who, data.Why)

	if data.Duration > 0 {
		duration := time.Duration(data.Duration) * time.Second
		r.mutex.Lock()
		r.timers[id] = time.AfterFunc(duration, func() {
			r.logger.Printf("Dnast %s expired after %v", id, duration)
			r.handleRemove(id)
		})
		r.mutex.Unlock()
	}
}

func (r *RedisListener) handleRemove(id string) {
	// Don't process removals after cancellation (e.g. from stale AfterFunc timers)
	if r.ctx.Err() != nil {
		return
	}

	r.mutex.Lock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	r.mutex.Unlock()

	if !r.manager.Release("redis:" + id) {
		r.logger.Printf("Dnast %s does not exist, ignoring", id)
	}
}

// Stop stops the listener and releases every Redis holder.
func (r *RedisListener) Stop() {
	r.cancel()
	r.wg.Wait()

	r.mutex.Lock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mutex.Unlock()

	for _, inh := range r.manager.GetInhibitors() {
		if strings.HasPrefix(inh.ID, "redis:") {
			r.manager.Release(inh.ID)
		}
	}
}
