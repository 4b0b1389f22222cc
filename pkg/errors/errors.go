package errors

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// FeedReadError represents a failure reading from the depth feed.
	FeedReadError ErrorCode = "feed_read_error"
	// FeedDecodeError represents a malformed depth event payload.
	FeedDecodeError ErrorCode = "feed_decode_error"
	// FeedPriceRangeError represents a price rejected at the adapter boundary.
	FeedPriceRangeError ErrorCode = "feed_price_range_error"

	// SnapshotMarshalError represents a failure serializing a book snapshot.
	SnapshotMarshalError ErrorCode = "snapshot_marshal_error"
	// SnapshotStoreError represents a failure persisting a book snapshot.
	SnapshotStoreError ErrorCode = "snapshot_store_error"
	// SnapshotLoadError represents a failure loading a book snapshot.
	SnapshotLoadError ErrorCode = "snapshot_load_error"
	// SnapshotUnmarshalError represents a corrupt persisted snapshot.
	SnapshotUnmarshalError ErrorCode = "snapshot_unmarshal_error"

	// QuotePublishError represents a failure publishing a consolidated quote.
	QuotePublishError ErrorCode = "quote_publish_error"
	// QuoteStoreError represents a failure persisting a consolidated quote.
	QuoteStoreError ErrorCode = "quote_store_error"

	// VenueUnknownError represents an operation against an unregistered venue.
	VenueUnknownError ErrorCode = "venue_unknown_error"

	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"
)

// String returns the code as a plain string for use as a tracer message.
func (c ErrorCode) String() string {
	return string(c)
}
