package quotev1

import "context"

// Publisher defines the interface for publishing consolidated quotes
// downstream.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=quotev1_mock
type Publisher interface {
	Publish(ctx context.Context, quote *Quote) error
	Close() error
}
