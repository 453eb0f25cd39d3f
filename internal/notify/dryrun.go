package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/tkonno/koyama-events/internal/storage"
)

// DryRunTransport prints what would be delivered without touching any push
// service.
type DryRunTransport struct {
	w io.Writer
}

// NewDryRunTransport creates a dry-run transport writing to w.
func NewDryRunTransport(w io.Writer) *DryRunTransport {
	return &DryRunTransport{w: w}
}

// Send prints the would-be delivery.
func (d *DryRunTransport) Send(_ context.Context, sub storage.Subscription, p Payload) error {
	fmt.Fprintf(d.w, "--- would notify %s ---\n%s\n%s\n\n", sub.ID, p.Title, p.Body)
	return nil
}
