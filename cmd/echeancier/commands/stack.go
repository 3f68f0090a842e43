package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mverdier/echeancier/internal/config"
	"github.com/mverdier/echeancier/internal/printer"
	"github.com/mverdier/echeancier/internal/realtime"
	"github.com/mverdier/echeancier/internal/service"
	"github.com/mverdier/echeancier/internal/tracker"
	"github.com/mverdier/echeancier/internal/transport"
)

// stack bundles the wired-up layers behind one CLI invocation.
type stack struct {
	cfg     *config.Config
	service *service.Service
	tracker *tracker.Tracker
}

func (s *stack) close() {
	s.tracker.Close()
	_ = s.service.Close()
}

// buildStack loads the configuration and wires the transport client, the
// optional realtime channel, the service and the tracker together. The
// returned stack must be closed by the caller.
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"configuration error",
			err.Error(),
			[]string{fmt.Sprintf("Check %s, or point --config at a valid file", configPath)},
		)
	}

	client, err := transport.NewClient(cfg.Endpoint, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	channel, err := openChannel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Late-bound: the tracker does not exist yet when the service is
	// built, but it owns error presentation (state + notice).
	var tr *tracker.Tracker
	svc, err := service.New(client, service.Options{
		Channel:             channel,
		ApproachingWindow:   cfg.Scans.ApproachingWindow,
		ApproachingInterval: cfg.Scans.ApproachingInterval,
		OverdueInterval:     cfg.Scans.OverdueInterval,
		FreshnessWindow:     cfg.Cache.FreshnessWindow,
		OnError: func(err error) {
			if tr != nil {
				tr.HandleServiceError(err)
			}
		},
	})
	if err != nil {
		if channel != nil {
			_ = channel.Close()
		}
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	tr, err = tracker.New(svc, tracker.Options{Notifier: printer.Notices{}})
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	return &stack{cfg: cfg, service: svc, tracker: tr}, nil
}

// openChannel builds the realtime channel selected in the configuration.
// Mode "none" yields a nil channel: the service then treats its cache as
// always stale.
func openChannel(ctx context.Context, cfg *config.Config) (realtime.Channel, error) {
	switch cfg.Realtime.Mode {
	case config.RealtimeNone:
		return nil, nil

	case config.RealtimeRedis:
		opts, err := redis.ParseURL(cfg.Realtime.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		ch, err := realtime.NewRedisChannel(ctx, opts, cfg.Instance)
		if err != nil {
			return nil, printer.Error(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s: %v", cfg.Realtime.RedisURL, err),
				[]string{"Check that Redis is running, or set realtime.mode to 'none'"},
			)
		}
		return ch, nil

	case config.RealtimeSSE:
		ch, err := realtime.NewSSEChannel(ctx, cfg.Endpoint, ssePolicy(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open SSE channel: %w", err)
		}
		return ch, nil

	case config.RealtimeWebSocket:
		ch, err := realtime.NewWebSocketChannel(ctx, cfg.Endpoint, wsPolicy(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open WebSocket channel: %w", err)
		}
		return ch, nil

	default:
		return nil, fmt.Errorf("unknown realtime mode: %s", cfg.Realtime.Mode)
	}
}

func ssePolicy(cfg *config.Config) realtime.ReconnectPolicy {
	return overridePolicy(realtime.DefaultSSEPolicy, cfg)
}

func wsPolicy(cfg *config.Config) realtime.ReconnectPolicy {
	return overridePolicy(realtime.DefaultWebSocketPolicy, cfg)
}

func overridePolicy(p realtime.ReconnectPolicy, cfg *config.Config) realtime.ReconnectPolicy {
	if cfg.Realtime.InitialBackoff > 0 {
		p.Initial = cfg.Realtime.InitialBackoff
	}
	if cfg.Realtime.MaxBackoff > 0 {
		p.Max = cfg.Realtime.MaxBackoff
	}
	return p
}
