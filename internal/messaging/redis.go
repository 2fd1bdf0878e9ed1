package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"teach-button-service/internal/logger"
	"teach-button-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// Redis keys and channels used by the service.
const (
	teachHashKey      = "teach"
	teachChannel      = "teach"
	replayDoneList    = "teach:replay-complete"
	buttonInjectList  = "teach:button"
	switchRequestList = "controller:switch"
	switchReplyList   = "controller:switch:reply"
)

// switchReplyTimeout bounds the wait for the motion controller reply.
const switchReplyTimeout = 10 * time.Second

type Callbacks struct {
	// ReplayCompleteCallback fires when the motion controller reports a
	// finished replay. The payload is the CAN interface name.
	ReplayCompleteCallback func(iface string) error

	// ButtonEventCallback handles button events injected over Redis for
	// bench testing ("iface:status" payloads, e.g. "can0:entry-teach").
	ButtonEventCallback func(iface string, status types.ButtonStatus) error
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		logger: l.WithTag("redis"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetCallbacks installs the handlers invoked by the listeners. Must be
// called before StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the list command listeners after system
// initialization is complete.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(2)
	go r.listCommandListener(replayDoneList, r.handleReplayCompleteCommand)
	go r.listCommandListener(buttonInjectList, r.handleButtonCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// BRPOP with a short timeout so context cancellation is
			// checked periodically
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleReplayCompleteCommand(value string) error {
	if r.callbacks.ReplayCompleteCallback == nil {
		return nil
	}
	if value == "" {
		return fmt.Errorf("empty replay complete payload")
	}
	return r.callbacks.ReplayCompleteCallback(value)
}

func (r *RedisClient) handleButtonCommand(value string) error {
	if r.callbacks.ButtonEventCallback == nil {
		return nil
	}

	iface, statusStr, ok := strings.Cut(value, ":")
	if !ok || iface == "" {
		return fmt.Errorf("invalid button command: %s", value)
	}

	status, err := parseButtonStatus(statusStr)
	if err != nil {
		return err
	}
	return r.callbacks.ButtonEventCallback(iface, status)
}

func parseButtonStatus(s string) (types.ButtonStatus, error) {
	switch s {
	case "entry-teach":
		return types.ButtonEntryTeach, nil
	case "exit-teach":
		return types.ButtonExitTeach, nil
	case "teach-repeat":
		return types.ButtonTeachRepeat, nil
	case "none":
		return types.ButtonNone, nil
	default:
		return types.ButtonNone, fmt.Errorf("invalid button status: %s", s)
	}
}

// RequestControllerSwitch asks the motion controller to switch modes
// and waits synchronously for its reply. Returns the boolean outcome;
// the error covers transport failures and a missing reply.
func (r *RedisClient) RequestControllerSwitch(command types.ControllerCommand, trajectory string) (bool, error) {
	payload := fmt.Sprintf("%s:%s", command, trajectory)
	r.logger.Debugf("Requesting controller switch: %s", payload)

	if err := r.client.LPush(r.ctx, switchRequestList, payload).Err(); err != nil {
		return false, fmt.Errorf("failed to send controller switch request: %w", err)
	}

	result, err := r.client.BRPop(r.ctx, switchReplyTimeout, switchReplyList).Result()
	if err == redis.Nil {
		return false, fmt.Errorf("no controller switch reply within %s", switchReplyTimeout)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read controller switch reply: %w", err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("malformed controller switch reply: %v", result)
	}

	reply := result[1]
	r.logger.Debugf("Controller switch reply: %s", reply)
	switch reply {
	case "ok":
		return true, nil
	case "fail":
		return false, nil
	default:
		return false, fmt.Errorf("invalid controller switch reply: %s", reply)
	}
}

// publishHashSet atomically updates hash fields and publishes a
// notification.
func (r *RedisClient) publishHashSet(hash string, fields map[string]interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	for field, value := range fields {
		pipe.HSet(r.ctx, hash, field, value)
	}
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishTeachMode publishes the current mode and trajectory name so
// other services can observe the teach workflow.
func (r *RedisClient) PublishTeachMode(mode types.Mode, trajectory string) error {
	r.logger.Infof("Publishing teach mode: %s (trajectory=%q)", mode, trajectory)

	fields := map[string]interface{}{
		"mode":           string(mode),
		"trajectory":     trajectory,
		"mode:timestamp": time.Now().Format(time.RFC3339),
	}
	if err := r.publishHashSet(teachHashKey, fields, teachChannel, "mode"); err != nil {
		r.logger.Warnf("Failed to publish teach mode: %v", err)
		return err
	}
	return nil
}

// PublishLastInterface records the interface of the most recent button
// event for diagnostics.
func (r *RedisClient) PublishLastInterface(iface string) error {
	if err := r.client.HSet(r.ctx, teachHashKey, "last-interface", iface).Err(); err != nil {
		r.logger.Warnf("Failed to publish last interface: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for listeners with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
