package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tkonno/koyama-events/internal/storage"
)

// WebPushConfig carries the VAPID credentials for the push service.
type WebPushConfig struct {
	Subscriber      string // mailto: contact required by the push services
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTLSeconds      int
}

// WebPush delivers payloads over the Web Push protocol with VAPID
// authentication.
type WebPush struct {
	cfg WebPushConfig
}

// NewWebPush creates the transport.
func NewWebPush(cfg WebPushConfig) (*WebPush, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("webpush: VAPID key pair is required")
	}
	if cfg.TTLSeconds == 0 {
		cfg.TTLSeconds = 3600
	}
	return &WebPush{cfg: cfg}, nil
}

// Send pushes one payload. A 404 or 410 from the push service means the
// endpoint no longer exists and maps to ErrGone.
func (w *WebPush) Send(ctx context.Context, sub storage.Subscription, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.KeyAuth,
			P256dh: sub.KeyP256dh,
		},
	}, &webpush.Options{
		Subscriber:      w.cfg.Subscriber,
		VAPIDPublicKey:  w.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: w.cfg.VAPIDPrivateKey,
		TTL:             w.cfg.TTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("send push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
