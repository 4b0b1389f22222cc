package feedv1

import "context"

// Reader defines the interface for consuming normalized book events.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=feedv1_mock
type Reader interface {
	// ReadUpdate blocks until the next event is available and returns it
	// parsed and boundary-validated.
	ReadUpdate(ctx context.Context) (*BookUpdate, error)
	// Close closes the underlying consumer.
	Close() error
}
