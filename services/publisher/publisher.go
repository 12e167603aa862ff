package publisher

// Publisher represents a service for publishing availability change events
type Publisher interface {
	// Publish publishes an event under the given supplier key
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
