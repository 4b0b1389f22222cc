package aggregatev1

import (
	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

// Level is the consolidated quantity at one price across venues. Size is
// always the sum of Sources; equal prices from different venues are summed
// rather than kept apart, with per-venue attribution retained so a caller
// can answer "why is this the best price".
type Level struct {
	Size    float64     `json:"size"`
	Sources []VenueSize `json:"sources"`
}

// NewLevel returns an empty aggregated level.
func NewLevel() *Level {
	return &Level{
		Sources: make([]VenueSize, 0, 3),
	}
}

// SetSource replaces one venue's contribution at this level. A size of zero
// or less removes the venue. The total is recomputed from the remaining
// sources.
func (l *Level) SetSource(venue string, size float64) {
	idx := -1
	for i, src := range l.Sources {
		if src.Venue == venue {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0 && size > 0:
		l.Sources[idx].Size = size
	case idx >= 0:
		l.Sources = append(l.Sources[:idx], l.Sources[idx+1:]...)
	case size > 0:
		l.Sources = append(l.Sources, VenueSize{Venue: venue, Size: size})
	}

	total := 0.0
	for _, src := range l.Sources {
		total += src.Size
	}
	l.Size = total
}

// SourceSize returns one venue's contribution, zero if absent.
func (l *Level) SourceSize(venue string) float64 {
	for _, src := range l.Sources {
		if src.Venue == venue {
			return src.Size
		}
	}
	return 0
}

// Venues lists the contributing venue names in insertion order.
func (l *Level) Venues() []string {
	names := make([]string, len(l.Sources))
	for i, src := range l.Sources {
		names[i] = src.Venue
	}
	return names
}

// Clone returns a deep copy so callers can hold a level without aliasing
// the book's internal state.
func (l *Level) Clone() Level {
	sources := make([]VenueSize, len(l.Sources))
	copy(sources, l.Sources)
	return Level{Size: l.Size, Sources: sources}
}

// PriceLevel pairs an aggregated level with its decoded decimal price.
type PriceLevel struct {
	Price float64 `json:"price"`
	Level Level   `json:"level"`
}

// DepthSource is the slice of a venue book the aggregator replays when a
// venue's state is replaced wholesale.
type DepthSource interface {
	DepthWithPrices(depth int) (bids []orderbookv1.PriceLevel, asks []orderbookv1.PriceLevel)
}
