package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind identifies a relayed domain event.
type Kind string

const (
	KindUsernameFetch       Kind = "username_fetch"
	KindUsernameFetchFailed Kind = "username_fetch_failed"
	KindImageGeneration     Kind = "image_generation"
)

// Event is one notification. Collection is only meaningful for image generation.
type Event struct {
	Kind       Kind
	Username   string
	Collection string
}

// Notifier relays events on a best-effort basis. Implementations must never
// panic, block the caller, or report failure.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// ErrSinkUnconfigured is returned by Deliver when no webhook URL is set.
var ErrSinkUnconfigured = errors.New("activity: sink not configured")

const dateLayout = "January 2, 2006 at 03:04 PM"

// Options configures a WebhookRelay.
type Options struct {
	WebhookURL string
	AppName    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
	Now        func() time.Time
}

// WebhookRelay posts events as Discord webhook embeds.
type WebhookRelay struct {
	url     string
	appName string
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewWebhookRelay builds a relay. An empty WebhookURL yields a relay whose
// Notify is a silent no-op.
func NewWebhookRelay(opts Options) *WebhookRelay {
	r := &WebhookRelay{
		url:     strings.TrimSpace(opts.WebhookURL),
		appName: opts.AppName,
		client:  opts.HTTPClient,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if r.appName == "" {
		r.appName = "Discord Custom Avatars"
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Configured reports whether a sink URL is set.
func (r *WebhookRelay) Configured() bool {
	return r != nil && r.url != ""
}

// Notify launches delivery in the background and returns immediately.
func (r *WebhookRelay) Notify(ctx context.Context, ev Event) {
	if !r.Configured() {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Debug().Interface("panic", p).Msg("activity: relay panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := r.Deliver(ctx, ev); err != nil {
			r.logger.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("activity: delivery dropped")
		}
	}()
}

// Wait blocks until every launched delivery has finished.
func (r *WebhookRelay) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}

type embed struct {
	Color       int         `json:"color"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Timestamp   string      `json:"timestamp"`
	Footer      embedFooter `json:"footer"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Deliver posts ev synchronously.
func (r *WebhookRelay) Deliver(ctx context.Context, ev Event) error {
	if !r.Configured() {
		return ErrSinkUnconfigured
	}
	now := r.now().UTC()
	payload := webhookPayload{Embeds: []embed{{
		Color:       Color(ev.Kind),
		Title:       r.appName + " Activity",
		Description: r.Describe(ev, now),
		Timestamp:   now.Format(time.RFC3339Nano),
		Footer:      embedFooter{Text: r.appName},
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("activity: post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("activity: webhook http %d", resp.StatusCode)
	}
	return nil
}

// Color maps an event kind to its embed colour.
func Color(k Kind) int {
	switch k {
	case KindUsernameFetchFailed:
		return 0xff0000
	case KindUsernameFetch:
		return 0xff8c00
	case KindImageGeneration:
		return 0x00bfff
	default:
		return 0x000000
	}
}

// Describe renders the human-readable embed description.
func (r *WebhookRelay) Describe(ev Event, at time.Time) string {
	date := at.Format(dateLayout)
	switch ev.Kind {
	case KindUsernameFetch:
		return fmt.Sprintf("**%s** fetched their profile using **%s** on **%s**", ev.Username, r.appName, date)
	case KindUsernameFetchFailed:
		return fmt.Sprintf("**Failed Discord user fetch** - Invalid or non-existent user ID attempted on **%s**", date)
	case KindImageGeneration:
		collection := "Unknown Collection"
		if c := strings.TrimSpace(ev.Collection); c != "" {
			// Casers carry state; one per call keeps concurrent Notify safe.
			collection = cases.Title(language.English).String(c)
		}
		return fmt.Sprintf("**%s** generated an image with **%s** using the **%s** collection on **%s**", ev.Username, r.appName, collection, date)
	default:
		return fmt.Sprintf("User activity detected on **%s** on **%s**", r.appName, date)
	}
}

var (
	_ Notifier = (*WebhookRelay)(nil)
	_ Notifier = Nop{}
)
