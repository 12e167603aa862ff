package scraper

import (
	"context"
	"sync"
)

// mockSource implements the Source interface for testing
type mockSource struct {
	siteID   string
	website  string
	records  []RawRecord
	fetchErr error
}

var _ Source = (*mockSource)(nil)

func (m *mockSource) FetchCandidates(_ context.Context) ([]RawRecord, error) {
	return m.records, m.fetchErr
}

func (m *mockSource) GetSiteID() string {
	return m.siteID
}

func (m *mockSource) GetWebsite() string {
	return m.website
}

// blockingSource blocks until its context is cancelled
type blockingSource struct {
	siteID  string
	website string
}

var _ Source = (*blockingSource)(nil)

func (b *blockingSource) FetchCandidates(ctx context.Context) ([]RawRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingSource) GetSiteID() string {
	return b.siteID
}

func (b *blockingSource) GetWebsite() string {
	return b.website
}

// mockPublisher records published events for assertions
type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{messages: make(map[string][][]byte)}
}

func (m *mockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages[key] = append(m.messages[key], messageCopy)
	return nil
}

func (m *mockPublisher) TrimStreams() error {
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[key])
}
