package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/prom"
	"github.com/cenkalti/backoff/v5"
	"github.com/valyala/fasthttp"
)

var ErrNoAvailableTransports = errors.New("no available mail transports")

// Email is one outbound message. TextBody always present; HTMLBody optional.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body,omitempty"`
	From     string `json:"from"`
}

type sendResponse struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Transport is one HTTP mail relay endpoint with a consecutive-failure
// circuit.
type Transport struct {
	name             string
	url              string
	client           *fasthttp.Client
	consecutiveFails atomic.Int32
	circuitOpenUntil atomic.Int64
}

func newTransport(name, url string, timeout time.Duration) *Transport {
	return &Transport{
		name: name,
		url:  url,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

func (t *Transport) available(now time.Time) bool {
	return now.Unix() > t.circuitOpenUntil.Load()
}

type Config struct {
	PrimaryURL   string
	SecondaryURL string
	FromAddress  string
	Timeout      time.Duration

	// per-transport retry budget before failing over
	MaxTries         uint
	CircuitThreshold int32
	CircuitTimeout   time.Duration
}

// Mailer delivers over the primary transport and fails over to the
// secondary when the primary's retry budget is spent or its circuit is open.
type Mailer struct {
	config     Config
	transports []*Transport
	now        func() time.Time
}

func New(config Config) (*Mailer, error) {
	if config.PrimaryURL == "" {
		return nil, errors.New("primary transport url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxTries == 0 {
		config.MaxTries = 3
	}
	if config.CircuitThreshold == 0 {
		config.CircuitThreshold = 5
	}
	if config.CircuitTimeout == 0 {
		config.CircuitTimeout = 30 * time.Second
	}

	m := &Mailer{
		config: config,
		now:    time.Now,
	}
	m.transports = append(m.transports, newTransport("primary", config.PrimaryURL, config.Timeout))
	if config.SecondaryURL != "" {
		m.transports = append(m.transports, newTransport("secondary", config.SecondaryURL, config.Timeout))
	}

	logger.Info("mailer initialized",
		"transports", len(m.transports), "from", config.FromAddress, "timeout", config.Timeout)
	return m, nil
}

// Send delivers one email. Transports are tried in priority order, each with
// an exponential-backoff retry budget. Returns the transport name that
// accepted the message.
func (m *Mailer) Send(ctx context.Context, email *Email) (string, error) {
	if email.From == "" {
		email.From = m.config.FromAddress
	}

	body, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	var lastErr error = ErrNoAvailableTransports
	for _, t := range m.transports {
		if !t.available(m.now()) {
			continue
		}

		start := m.now()
		err := m.sendWithRetry(ctx, t, body)
		if err == nil {
			t.consecutiveFails.Store(0)
			prom.ObserveNotificationSend(t.name, m.now().Sub(start).Seconds())
			return t.name, nil
		}

		fails := t.consecutiveFails.Add(1)
		if fails >= m.config.CircuitThreshold {
			t.circuitOpenUntil.Store(m.now().Add(m.config.CircuitTimeout).Unix())
			logger.Warn("mail transport circuit opened",
				"transport", t.name, "consecutive_fails", fails)
		}
		logger.Warn("mail transport failed, trying next",
			"transport", t.name, "to", email.To, "error", err)
		lastErr = err
	}

	return "", fmt.Errorf("all mail transports failed: %w", lastErr)
}

func (m *Mailer) sendWithRetry(ctx context.Context, t *Transport, body []byte) error {
	op := func() (struct{}, error) {
		return struct{}{}, m.post(ctx, t, body)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(m.config.MaxTries),
	)
	return err
}

func (m *Mailer) post(ctx context.Context, t *Transport, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.url + "/api/v1/mail/send")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = m.now().Add(m.config.Timeout)
	}

	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status >= 400 && status < 500 {
		// the relay rejected the message itself, retrying cannot help
		return backoff.Permanent(fmt.Errorf("transport rejected message: %d %s", status, resp.Body()))
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d", status)
	}

	var sr sendResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if !sr.Accepted {
		return backoff.Permanent(fmt.Errorf("transport declined message: %s", sr.Error))
	}
	return nil
}
