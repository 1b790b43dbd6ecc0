package config

import (
	"fmt"
	"net/mail"
	"strings"

	"vid2audio/domain/notification"
)

// ParseRecipients parses the notify_email setting, a comma-separated address list such as
// "Jane Doe <jane@example.com>, ops@example.com". Duplicate addresses are dropped.
func ParseRecipients(list string) ([]notification.Recipient, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	addrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", notification.ErrInvalidRecipient, err)
	}

	seen := make(map[string]bool)
	var recipients []notification.Recipient
	for _, a := range addrs {
		key := strings.ToLower(a.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, notification.Recipient{Name: a.Name, Address: a.Address})
	}
	return recipients, nil
}

// Recipients returns the parsed notify_email list
func (s *Settings) Recipients() ([]notification.Recipient, error) {
	return ParseRecipients(s.NotifyEmail)
}
