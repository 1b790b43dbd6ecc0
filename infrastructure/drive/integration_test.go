//go:build manual

package drive

import (
	"context"
	"os"
	"testing"
)

// Run with: VID2AUDIO_DRIVE_FOLDER=<id> VID2AUDIO_SERVICE_ACCOUNT=<key.json> go test -tags=manual ./infrastructure/drive/...
func TestLiveFolderListing(t *testing.T) {
	folderID := os.Getenv("VID2AUDIO_DRIVE_FOLDER")
	keyFile := os.Getenv("VID2AUDIO_SERVICE_ACCOUNT")
	if folderID == "" || keyFile == "" {
		t.Skip("VID2AUDIO_DRIVE_FOLDER or VID2AUDIO_SERVICE_ACCOUNT not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, keyFile)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	files, err := client.ListFiles(ctx, folderID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	for _, f := range files {
		t.Logf("%s %s %.2f MB", f.Name, f.MimeType, float64(f.Size)/1024/1024)

		found, err := client.FindFileByName(ctx, folderID, f.Name)
		if err != nil || found == nil {
			t.Errorf("FindFileByName(%q) = %v, %v", f.Name, found, err)
		}
	}

	storage, err := client.GetStorageQuota(ctx)
	if err != nil {
		t.Fatalf("GetStorageQuota: %v", err)
	}
	t.Logf("storage: %s", storage)
}
