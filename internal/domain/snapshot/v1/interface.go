package snapshotv1

import "context"

// Store defines the interface for persisting and loading venue book snapshots.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock
type Store interface {
	Store(ctx context.Context, snapshot *BookSnapshot) error
	// Load returns nil, nil when no snapshot exists for the venue.
	Load(ctx context.Context, venue string) (*BookSnapshot, error)
}
