package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
	"github.com/shamu4life/helper-scripts/internal/version"
)

// Channel types.
const (
	TypeWebhook = "webhook"
	TypeSlack   = "slack"
	TypeDiscord = "discord"
	TypeNtfy    = "ntfy"
)

var (
	errUnknownChannelType = errors.New("unknown channel type")
	errBadHTTPStatus      = errors.New("unexpected http status")
)

// Dispatcher fans a notification out to every channel whose minimum
// severity it meets.
type Dispatcher struct {
	channels []config.ChannelConfig
	client   *http.Client
}

// NewDispatcher creates a dispatcher. A nil client means http.DefaultClient.
func NewDispatcher(channels []config.ChannelConfig, client *http.Client) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Dispatcher{
		channels: append([]config.ChannelConfig(nil), channels...),
		client:   client,
	}
}

// Notify sends n to all matching channels concurrently and returns the
// joined errors of the channels that failed.
func (d *Dispatcher) Notify(ctx context.Context, n *release.Notification) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group

	for _, ch := range d.channels {
		ch := ch

		if !shouldSend(n.Severity, release.Severity(ch.MinSeverity)) {
			logger.DebugKV(ctx, "Channel skipped by severity", "channel", ch.Name)
			continue
		}

		g.Go(func() error {
			if err := d.send(ctx, ch, n); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("channel %s: %w", ch.Name, err))
				mu.Unlock()

				return nil
			}

			logger.DebugKV(ctx, "Notification delivered", "channel", ch.Name, "type", ch.Type)

			return nil
		})
	}

	_ = g.Wait()

	return errors.Join(errs...)
}

// shouldSend reports whether a message severity meets the channel minimum.
// A channel without a minimum accepts everything.
func shouldSend(msg, minimum release.Severity) bool {
	if minimum == "" {
		return true
	}

	return msg.Rank() >= minimum.Rank()
}

func (d *Dispatcher) send(ctx context.Context, ch config.ChannelConfig, n *release.Notification) error {
	switch strings.ToLower(ch.Type) {
	case TypeWebhook:
		return d.postJSON(ctx, ch, n)
	case TypeSlack:
		return d.postJSON(ctx, ch, slackPayload{Text: fmt.Sprintf("*%s*\n%s", n.Title, n.Message)})
	case TypeDiscord:
		return d.postJSON(ctx, ch, discordPayload{Content: fmt.Sprintf("**%s**\n%s", n.Title, n.Message)})
	case TypeNtfy:
		return d.sendNtfy(ctx, ch, n)
	default:
		return fmt.Errorf("%w: %s", errUnknownChannelType, ch.Type)
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Content string `json:"content"`
}

func (d *Dispatcher) postJSON(ctx context.Context, ch config.ChannelConfig, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	return d.do(req, ch.Headers)
}

// sendNtfy publishes the plain message to an ntfy topic URL, mapping
// severity to priority and tags.
func (d *Dispatcher) sendNtfy(ctx context.Context, ch config.ChannelConfig, n *release.Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, strings.NewReader(n.Message))
	if err != nil {
		return err
	}

	req.Header.Set("Title", n.Title)

	switch n.Severity {
	case release.SeverityCritical:
		req.Header.Set("Priority", "urgent")
		req.Header.Set("Tags", "rotating_light")
	case release.SeverityError:
		req.Header.Set("Priority", "high")
		req.Header.Set("Tags", "warning")
	default:
		req.Header.Set("Priority", "low")
		req.Header.Set("Tags", "package")
	}

	return d.do(req, ch.Headers)
}

func (d *Dispatcher) do(req *http.Request, headers map[string]string) error {
	req.Header.Set("User-Agent", version.UserAgent())

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s", errBadHTTPStatus, resp.Status)
	}

	return nil
}
