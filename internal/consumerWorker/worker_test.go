package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festreg/internal/notify"
)

type stubSender struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (s *stubSender) Send(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

type stubSource struct {
	messages [][]byte
	results  []error
	err      error
}

func (s *stubSource) Consume(handler func([]byte) error) error {
	if s.err != nil {
		return s.err
	}
	for _, m := range s.messages {
		s.results = append(s.results, handler(m))
	}
	return nil
}

func encode(t *testing.T, n notify.Notification) []byte {
	t.Helper()
	b, err := json.Marshal(n)
	require.NoError(t, err)
	return b
}

func TestReader_Handle(t *testing.T) {
	t.Parallel()

	valid := notify.Notification{To: "a@fest.example", Template: notify.TemplatePaymentApproved, Data: map[string]string{"amount": "10"}}

	tests := []struct {
		name      string
		body      func(t *testing.T) []byte
		sendErr   error
		wantErr   bool
		wantSends int
	}{
		{name: "valid", body: func(t *testing.T) []byte { return encode(t, valid) }, wantSends: 1},
		{name: "malformed", body: func(*testing.T) []byte { return []byte("{not json") }},
		{name: "no recipient", body: func(t *testing.T) []byte {
			return encode(t, notify.Notification{Template: notify.TemplatePaymentApproved})
		}},
		{name: "sender failure", body: func(t *testing.T) []byte { return encode(t, valid) }, sendErr: errors.New("smtp down"), wantErr: true, wantSends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := &stubSender{err: tt.sendErr}
			r := NewReader(&stubSource{}, sender)

			err := r.Handle(context.Background(), tt.body(t))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, sender.sent, tt.wantSends)
			if tt.wantSends > 0 {
				assert.Equal(t, valid, sender.sent[0])
			}
		})
	}
}

func TestReader_StartStop(t *testing.T) {
	t.Parallel()
	sender := &stubSender{}
	source := &stubSource{messages: [][]byte{
		encode(t, notify.Notification{To: "a@fest.example", Template: notify.TemplateAccountCreated}),
		encode(t, notify.Notification{To: "b@fest.example", Template: notify.TemplateAccountCreated}),
	}}
	r := NewReader(source, sender)

	r.Start(context.Background())
	r.Stop()

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, []error{nil, nil}, source.results)
}

func TestReader_ConsumeFailure(t *testing.T) {
	t.Parallel()
	r := NewReader(&stubSource{err: errors.New("channel closed")}, &stubSender{})
	r.Start(context.Background())
	r.Stop()
}
