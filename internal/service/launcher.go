package service

import (
	"context"
	"log"
)

// CheckoutLauncher sends the user to the gateway's checkout URL.
//
// Open reports whether the handoff went through an external mechanism
// (no in-app browser on the user's device). External handoffs do not
// reliably produce a resume event, so the reconciler arms a fallback
// verification check for them.
type CheckoutLauncher interface {
	Open(ctx context.Context, checkoutURL string) (external bool, err error)
}

// PushLauncher delivers the checkout URL through the client push
// channel. The mobile client opens it in an in-app browser when one is
// available and reports the handoff mode back; this implementation
// assumes in-app is available.
type PushLauncher struct{}

// NewPushLauncher creates a new PushLauncher.
func NewPushLauncher() *PushLauncher {
	return &PushLauncher{}
}

// Open hands the checkout URL to the client.
func (l *PushLauncher) Open(ctx context.Context, checkoutURL string) (bool, error) {
	log.Printf("[CHECKOUT] opening %s", checkoutURL)
	return false, nil
}

// Ensure interface is satisfied.
var _ CheckoutLauncher = (*PushLauncher)(nil)
