package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"vid2audio/domain/notification"
	"vid2audio/infrastructure/googleauth"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailService defines the interface for Gmail API operations
// This allows mocking the Gmail API in tests
type GmailService interface {
	SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
}

// GoogleGmailService is the production implementation using the Gmail API
type GoogleGmailService struct {
	service *gmail.Service
}

// SendMessage sends an email via Gmail API
func (s *GoogleGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	return s.service.Users.Messages.Send(userID, message).Context(ctx).Do()
}

// Client implements notification.EmailSender using Gmail API
type Client struct {
	gmailService GmailService
	from         notification.Recipient
	template     notification.EmailTemplate
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithGmailService sets a custom Gmail service (for testing)
func WithGmailService(svc GmailService) ClientOption {
	return func(c *Client) {
		c.gmailService = svc
	}
}

// WithTemplate sets a custom email template
func WithTemplate(tmpl notification.EmailTemplate) ClientOption {
	return func(c *Client) {
		c.template = tmpl
	}
}

// NewClient creates a new Gmail client
func NewClient(from notification.Recipient, opts ...ClientOption) *Client {
	c := &Client{
		from:     from,
		template: notification.DefaultTemplate,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientWithOAuth creates a Gmail client authorized to send as the signed-in user
func NewClientWithOAuth(ctx context.Context, cfg googleauth.Config, from notification.Recipient, opts ...ClientOption) (*Client, error) {
	c := NewClient(from, opts...)
	if c.gmailService != nil {
		return c, nil
	}

	httpClient, err := googleauth.HTTPClient(ctx, cfg, gmail.GmailSendScope)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	c.gmailService = &GoogleGmailService{service: srv}
	return c, nil
}

// Send sends a run summary using the Gmail API
func (c *Client) Send(ctx context.Context, req *notification.EmailRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid email request: %w", err)
	}

	data := notification.NewTemplateData(req.To, req.Report, req.SenderName)

	subject, err := c.template.RenderSubject(data)
	if err != nil {
		return fmt.Errorf("failed to render subject: %w", err)
	}

	plainText, err := c.template.RenderPlainText(data)
	if err != nil {
		return fmt.Errorf("failed to render plain text: %w", err)
	}

	htmlBody, err := c.template.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	rawMessage := c.buildMIMEMessage(req, subject, plainText, htmlBody)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(rawMessage)),
	}

	if _, err := c.gmailService.SendMessage(ctx, "me", message); err != nil {
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, err)
	}

	return nil
}

// buildMIMEMessage builds a RFC 2822 MIME message
func (c *Client) buildMIMEMessage(req *notification.EmailRequest, subject, plainText, htmlBody string) string {
	var msg strings.Builder

	// Gmail fills in the authenticated account when From is omitted
	if c.from.Address != "" {
		fmt.Fprintf(&msg, "From: %s\r\n", formatAddress(c.from))
	}

	toAddrs := make([]string, len(req.To))
	for i, to := range req.To {
		toAddrs[i] = formatAddress(to)
	}
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(toAddrs, ", "))

	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=\"boundary42\"\r\n\r\n")

	// Plain text part
	msg.WriteString("--boundary42\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(plainText)
	msg.WriteString("\r\n\r\n")

	// HTML part
	msg.WriteString("--boundary42\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n\r\n")

	msg.WriteString("--boundary42--\r\n")

	return msg.String()
}

func formatAddress(r notification.Recipient) string {
	if r.Name == "" {
		return r.Address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", r.Name), r.Address)
}

// Ensure Client implements notification.EmailSender
var _ notification.EmailSender = (*Client)(nil)
