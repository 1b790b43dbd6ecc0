package drive

import (
	"context"
	"fmt"

	"vid2audio/infrastructure/googleauth"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewClientWithOAuth creates a new Google Drive client using OAuth 2.0 user authentication
func NewClientWithOAuth(ctx context.Context, cfg googleauth.Config, opts ...ClientOption) (*Client, error) {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	// If no custom drive service was provided, create one with OAuth
	if c.driveService == nil {
		httpClient, err := googleauth.HTTPClient(ctx, cfg, drive.DriveScope)
		if err != nil {
			return nil, err
		}
		srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("unable to create drive service: %w", err)
		}
		c.driveService = &GoogleDriveService{service: srv}
	}

	return c, nil
}
