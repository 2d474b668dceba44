// Package notify delivers the out-of-band popular-package signal: an
// observational event emitted when a dependency's consumer count crosses the
// configured threshold. Delivery failures never affect job emission.
package notify

import "context"

// Signal describes one popular-package observation.
type Signal struct {
	Dependency string `json:"dependency"`
	Dependents int    `json:"dependents"`
	Threshold  int    `json:"threshold"`
}

// Notifier delivers popular-package signals to external systems.
type Notifier interface {
	Notify(ctx context.Context, signal Signal) error
}
