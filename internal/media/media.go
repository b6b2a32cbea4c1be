// Package media resolves check-in photo payloads into stored references.
// The attendance core treats photos as opaque; this package is the edge
// that optionally pushes the raw payload to a hosting provider first.
package media

import "context"

// Uploader turns a raw photo payload into the reference stored on the
// attendance record.
type Uploader interface {
	Upload(ctx context.Context, payload string) (string, error)
}

// Passthrough stores the payload itself as the reference. Used when no
// hosting provider is configured.
type Passthrough struct{}

// Upload returns the payload unchanged.
func (Passthrough) Upload(_ context.Context, payload string) (string, error) {
	return payload, nil
}
