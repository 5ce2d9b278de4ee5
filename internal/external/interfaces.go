package external

import (
	"context"

	"ridecast/internal/types"
)

// EmailProvider abstracts the transport that delivers rendered
// recommendations. Implementations transmit pre-rendered content
// (Subject, BodyHTML, BodyText) and report delivery failure as an error.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) error
}
