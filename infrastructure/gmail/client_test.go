package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"vid2audio/domain/notification"

	"google.golang.org/api/gmail/v1"
)

// mockGmailService is a mock implementation for testing
type mockGmailService struct {
	sentMessages []*gmail.Message
	shouldFail   bool
	failError    error
}

func (m *mockGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	m.sentMessages = append(m.sentMessages, message)
	return &gmail.Message{Id: "test-message-id"}, nil
}

var sender = notification.Recipient{Name: "Audio Desk", Address: "desk@example.com"}

func sampleReport() notification.RunReport {
	return notification.RunReport{
		RunID:     "run-1",
		Succeeded: 1,
		Failed:    1,
		Elapsed:   92 * time.Second,
		Files: []notification.FileResult{
			{Name: "a.mp4", Succeeded: true, Link: "https://drive.google.com/file/d/abc/view"},
			{Name: "b.mkv", Message: "FFmpeg error: boom"},
		},
	}
}

func TestClient_Send(t *testing.T) {
	mock := &mockGmailService{}
	client := NewClient(sender, WithGmailService(mock))

	req := &notification.EmailRequest{
		To:         []notification.Recipient{{Name: "John Doe", Address: "john@example.com"}},
		Report:     sampleReport(),
		SenderName: "vid2audio",
	}

	if err := client.Send(context.Background(), req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(mock.sentMessages) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(mock.sentMessages))
	}

	rawBytes, err := decodeBase64URL(mock.sentMessages[0].Raw)
	if err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	raw := string(rawBytes)

	checks := []string{
		"From: Audio Desk <desk@example.com>",
		"To: John Doe <john@example.com>",
		"Subject: Audio conversion finished: 1 of 2 files converted",
		"Dear John,",
		"1m32s",
		"https://drive.google.com/file/d/abc/view",
		"b.mkv: failed (FFmpeg error: boom)",
		"~vid2audio",
	}

	for _, check := range checks {
		if !strings.Contains(raw, check) {
			t.Errorf("message missing %q in:\n%s", check, raw)
		}
	}
	if strings.Contains(raw, "Cc:") {
		t.Errorf("message should not carry a Cc header:\n%s", raw)
	}
}

func TestClient_Send_MultipleRecipients(t *testing.T) {
	mock := &mockGmailService{}
	client := NewClient(sender, WithGmailService(mock))

	req := &notification.EmailRequest{
		To: []notification.Recipient{
			{Name: "John Doe", Address: "john@example.com"},
			{Address: "alice@example.com"},
		},
		Report:     sampleReport(),
		SenderName: "vid2audio",
	}

	if err := client.Send(context.Background(), req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	rawBytes, _ := decodeBase64URL(mock.sentMessages[0].Raw)
	raw := string(rawBytes)

	if !strings.Contains(raw, "To: John Doe <john@example.com>, alice@example.com") {
		t.Errorf("message missing multiple recipients in To header:\n%s", raw)
	}
}

func TestClient_Send_ValidationError(t *testing.T) {
	mock := &mockGmailService{}
	client := NewClient(sender, WithGmailService(mock))

	err := client.Send(context.Background(), &notification.EmailRequest{Report: sampleReport()})
	if err == nil {
		t.Fatal("Send() expected error for invalid request, got nil")
	}
	if !errors.Is(err, notification.ErrNoRecipients) {
		t.Errorf("Send() error = %v, want ErrNoRecipients", err)
	}
	if len(mock.sentMessages) != 0 {
		t.Error("no message should be sent for an invalid request")
	}
}

func TestClient_Send_APIError(t *testing.T) {
	mock := &mockGmailService{shouldFail: true, failError: errors.New("quota exceeded")}
	client := NewClient(sender, WithGmailService(mock))

	req := &notification.EmailRequest{
		To:     []notification.Recipient{{Address: "john@example.com"}},
		Report: sampleReport(),
	}

	err := client.Send(context.Background(), req)
	if !errors.Is(err, notification.ErrSendFailed) {
		t.Errorf("Send() error = %v, want ErrSendFailed", err)
	}
}

// decodeBase64URL decodes a base64 URL encoded string
func decodeBase64URL(s string) ([]byte, error) {
	return base64.URLEncoding.DecodeString(s)
}
