// Package publish streams compiled frame graph plans to a remote inspector
// over Socket.IO.
package publish

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/plan"
)

// PlanEvent is the event a plan is emitted under.
const PlanEvent = "plan"

// DefaultTimeout bounds the connection and the acknowledgement wait.
const DefaultTimeout = 15 * time.Second

// Publisher sends plans to a Socket.IO endpoint.
type Publisher struct {
	URL       string
	Namespace string
	// AckEvent, when set, is the event the inspector answers with once it
	// stored the plan. Publish waits for it before disconnecting.
	AckEvent           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// New returns a publisher for url with the default timeout.
func New(rawURL string) *Publisher {
	return &Publisher{URL: rawURL, Timeout: DefaultTimeout}
}

// Payload converts a plan into the generic value emitted on the wire.
func Payload(p *plan.Plan) (map[string]any, error) {
	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return out, nil
}

// Publish connects, emits the plan and disconnects.
func (pub *Publisher) Publish(ctx context.Context, p *plan.Plan) error {
	logger := ctxlog.FromContext(ctx).With("publisher", pub.URL)

	payload, err := Payload(p)
	if err != nil {
		return err
	}
	io, err := pub.connect(ctx)
	if err != nil {
		return err
	}
	defer io.Disconnect()

	timeout := pub.timeout()
	acked := make(chan struct{}, 1)
	if pub.AckEvent != "" {
		io.Once(types.EventName(pub.AckEvent), func(...any) {
			logger.Debug("Publish: Acknowledgement received.", "event", pub.AckEvent)
			acked <- struct{}{}
		})
	}

	logger.Debug("Publish: Emitting plan.", "event", PlanEvent, "sid", io.Id())
	io.Emit(PlanEvent, payload)

	if pub.AckEvent == "" {
		logger.Info("Publish: Plan sent.")
		return nil
	}
	select {
	case <-acked:
		logger.Info("Publish: Plan acknowledged.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for '%s': %w", pub.AckEvent, ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %v waiting for '%s'", timeout, pub.AckEvent)
	}
}

func (pub *Publisher) timeout() time.Duration {
	if pub.Timeout <= 0 {
		return DefaultTimeout
	}
	return pub.Timeout
}

func (pub *Publisher) connect(ctx context.Context) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", pub.URL)

	parsedURL, err := url.Parse(pub.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("publish URL %q needs a scheme and a host", pub.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if pub.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(pub.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Publish: Connected.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connected <- err
	})
	io.Connect()

	timeout := pub.timeout()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}
