package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"courtline/internal/config"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/logging"
	"courtline/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher polls the event mirror and posts new events of every
// case to the configured hooks. Each hook keeps its own sequence cursor and
// stops at the first failed delivery so nothing is skipped.
type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *slog.Logger
	mu       sync.Mutex
	cursors  map[int]int64
}

func newWebhookDispatcher(e engine.Engine, hooks []config.WebhookConfig) *webhookDispatcher {
	return &webhookDispatcher{
		engine:   e,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logging.New("webhooks"),
		cursors:  make(map[int]int64),
	}
}

// StartWebhooks delivers events to e.Config.Webhooks until ctx is done.
// Only events recorded after the call are delivered.
func StartWebhooks(ctx context.Context, e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	d := newWebhookDispatcher(e, e.Config.Webhooks)
	go d.run(ctx)
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	evts, err := d.engine.EventsAfter(ctx, repo.EventFilters{Limit: defaultWebhookBatch, Cursor: cursor})
	if err != nil {
		d.logger.WarnContext(ctx, "fetch events failed", slog.String("error", err.Error()))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range evts {
		if !filter.match(evt.Kind) {
			d.setCursor(idx, evt.Seq)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.logger.WarnContext(ctx, "delivery failed", slog.String("url", hook.URL),
				slog.String("event_id", evt.ID), slog.String("error", err.Error()))
			return
		}
		d.setCursor(idx, evt.Seq)
	}
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	var cur int64
	latest, err := d.engine.LatestEvents(ctx, repo.EventFilters{Limit: 1})
	if err != nil {
		d.logger.WarnContext(ctx, "init cursor failed", slog.String("error", err.Error()))
	} else if len(latest) > 0 {
		cur = latest[0].Seq
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.IndexedEvent) error {
	data, err := json.Marshal(eventResponse(evt))
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != d.client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Courtline-Event", evt.Kind)
	req.Header.Set("X-Courtline-Delivery", evt.ID)
	req.Header.Set("X-Courtline-Case", evt.CaseID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Courtline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// eventFilter selects event kinds; an empty filter matches every kind.
type eventFilter map[string]bool

func newEventFilter(kinds []string) eventFilter {
	f := eventFilter{}
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			f[k] = true
		}
	}
	return f
}

func (f eventFilter) match(kind string) bool {
	return len(f) == 0 || f[kind]
}
