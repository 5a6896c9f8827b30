package webhook

import (
	"context"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/origin"
	"github.com/mattjoyce/grhooks/internal/render"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/grhooks/internal/webhook Runner

// Runner executes the command bound to a webhook definition.
type Runner interface {
	Execute(ctx context.Context, hook config.Webhook, ns render.Namespace) (string, error)
}

// Routes looks up webhook definitions by request path.
type Routes interface {
	Find(path string) (config.Webhook, bool)
	Len() int
}

// Delivery is the per-request state carried through the pipeline.
type Delivery struct {
	// ID correlates log lines for one request.
	ID string

	Hook      config.Webhook
	Origin    origin.Origin
	EventType string

	// Body is the raw request body, unmodified, as signed by the sender.
	Body []byte

	// Namespace is built from Body once the event has been accepted.
	Namespace render.Namespace

	detected bool
}

func (d *Delivery) originLabel() string {
	if !d.detected {
		return "unknown"
	}
	return d.Origin.String()
}

// DeliveryHeader carries the delivery ID on every webhook response.
const DeliveryHeader = "X-Grhooks-Delivery"
