package email

import (
	"context"
	"sync"
)

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type MemorySender struct {
	mu     sync.Mutex
	emails []SentEmail
	// Err, when set, is returned by Send and nothing is recorded.
	Err error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.emails = append(s.emails, SentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (s *MemorySender) Emails() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentEmail(nil), s.emails...)
}
