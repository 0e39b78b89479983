package mailer

import (
	"context"
	"errors"
	"sync"
)

var ErrMockSend = errors.New("mock mail send failure")

// MockClient 记录发送内容，FailTimes 次之前的调用返回错误
type MockClient struct {
	mu        sync.Mutex
	Sent      []Message
	Attempts  int
	FailTimes int
	Err       error
}

func NewMockClient() *MockClient { return &MockClient{} }

func (m *MockClient) Provider() string { return "mock" }

func (m *MockClient) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.Attempts <= m.FailTimes {
		if m.Err != nil {
			return m.Err
		}
		return ErrMockSend
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
