//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vid2audio/cmd"
	"vid2audio/infrastructure/drive"

	"github.com/cucumber/godog"
	gdrive "google.golang.org/api/drive/v3"
)

// uploadMockDriveService keeps an in-memory folder behind drive.Client
type uploadMockDriveService struct {
	files       []*gdrive.File
	available   int64
	nextID      int
	events      []string
	permissions map[string]*gdrive.Permission
}

func (m *uploadMockDriveService) ListFiles(ctx context.Context, query, fields, orderBy string) ([]*gdrive.File, error) {
	var result []*gdrive.File
	for _, f := range m.files {
		if strings.Contains(query, "name = '") && !strings.Contains(query, "name = '"+f.Name+"'") {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}

func (m *uploadMockDriveService) GetAbout(ctx context.Context, fields string) (*gdrive.About, error) {
	limit := int64(math.MaxInt32)
	if m.available > 0 {
		limit = m.available
	}
	return &gdrive.About{StorageQuota: &gdrive.AboutStorageQuota{Limit: limit, Usage: 0}}, nil
}

func (m *uploadMockDriveService) DeleteFile(ctx context.Context, fileID string) error {
	m.events = append(m.events, "delete:"+fileID)
	m.files = slices.DeleteFunc(m.files, func(f *gdrive.File) bool { return f.Id == fileID })
	return nil
}

func (m *uploadMockDriveService) UploadFile(ctx context.Context, fileName, mimeType, folderID, localPath string) (*gdrive.File, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, err
	}
	m.nextID++
	f := &gdrive.File{
		Id:       fmt.Sprintf("uploaded-file-%d", m.nextID),
		Name:     fileName,
		MimeType: mimeType,
		Size:     info.Size(),
		Parents:  []string{folderID},
	}
	m.events = append(m.events, "upload:"+fileName)
	m.files = append(m.files, f)
	return f, nil
}

func (m *uploadMockDriveService) CreatePermission(ctx context.Context, fileID string, permission *gdrive.Permission) error {
	m.permissions[fileID] = permission
	return nil
}

func (m *uploadMockDriveService) uploads() []string {
	var names []string
	for _, e := range m.events {
		if name, ok := strings.CutPrefix(e, "upload:"); ok {
			names = append(names, name)
		}
	}
	return names
}

type uploadContext struct {
	dir      string
	folderID string
	paths    []string
	mock     *uploadMockDriveService
	output   bytes.Buffer
	err      error
}

// SharedUploadContext is reset before each scenario
var SharedUploadContext *uploadContext

func InitializeUploadScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "vid2audio-upload-*")
		if err != nil {
			return c, err
		}
		SharedUploadContext = &uploadContext{
			dir:  dir,
			mock: &uploadMockDriveService{permissions: make(map[string]*gdrive.Permission)},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedUploadContext != nil {
			os.RemoveAll(SharedUploadContext.dir)
		}
		SharedUploadContext = nil
		return c, nil
	})

	ctx.Step(`^the Drive folder ID is "([^"]*)"$`, theDriveFolderIDIs)
	ctx.Step(`^I have an audio file "([^"]*)"$`, iHaveAnAudioFile)
	ctx.Step(`^the Drive folder already contains "([^"]*)" with ID "([^"]*)"$`, theDriveFolderAlreadyContains)
	ctx.Step(`^the Drive has (\d+) bytes available$`, theDriveHasBytesAvailable)
	ctx.Step(`^I upload the files$`, iUploadTheFiles)
	ctx.Step(`^the upload output should contain "([^"]*)"$`, theUploadOutputShouldContain)
	ctx.Step(`^"([^"]*)" should be shared with anyone as reader$`, shouldBeSharedWithAnyoneAsReader)
	ctx.Step(`^the file "([^"]*)" should be deleted before upload$`, theFileShouldBeDeletedBeforeUpload)
	ctx.Step(`^the upload should fail$`, theUploadShouldFail)
	ctx.Step(`^no file should be uploaded$`, noFileShouldBeUploaded)
}

func theDriveFolderIDIs(id string) error {
	SharedUploadContext.folderID = id
	return nil
}

func iHaveAnAudioFile(name string) error {
	c := SharedUploadContext
	p := filepath.Join(c.dir, name)
	if err := os.WriteFile(p, []byte("ID3 fake audio content"), 0644); err != nil {
		return err
	}
	c.paths = append(c.paths, p)
	return nil
}

func theDriveFolderAlreadyContains(name, id string) error {
	c := SharedUploadContext
	c.mock.files = append(c.mock.files, &gdrive.File{Id: id, Name: name, Size: 1024, Parents: []string{c.folderID}})
	return nil
}

func theDriveHasBytesAvailable(n int) error {
	SharedUploadContext.mock.available = int64(n)
	return nil
}

func iUploadTheFiles() error {
	c := SharedUploadContext
	client, err := drive.NewClient(context.Background(), "", drive.WithDriveService(c.mock))
	if err != nil {
		return err
	}
	c.err = cmd.RunUploadWithDependencies(context.Background(), client, c.folderID, c.paths, false, true, &c.output)
	return nil
}

func theUploadOutputShouldContain(text string) error {
	c := SharedUploadContext
	if c.err != nil {
		return fmt.Errorf("upload failed: %v", c.err)
	}
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("output %q does not contain %q", c.output.String(), text)
	}
	return nil
}

func shouldBeSharedWithAnyoneAsReader(name string) error {
	m := SharedUploadContext.mock
	for _, f := range m.files {
		if f.Name != name {
			continue
		}
		p, ok := m.permissions[f.Id]
		if !ok || p.Type != "anyone" || p.Role != "reader" {
			return fmt.Errorf("%s permission = %+v", name, p)
		}
		return nil
	}
	return fmt.Errorf("%s is not in the folder", name)
}

func theFileShouldBeDeletedBeforeUpload(id string) error {
	events := SharedUploadContext.mock.events
	del := slices.Index(events, "delete:"+id)
	up := slices.IndexFunc(events, func(e string) bool { return strings.HasPrefix(e, "upload:") })
	if del < 0 || up < 0 || del > up {
		return fmt.Errorf("drive calls = %v, want delete of %s before upload", events, id)
	}
	return nil
}

func theUploadShouldFail() error {
	if SharedUploadContext.err == nil {
		return fmt.Errorf("upload succeeded, want failure")
	}
	return nil
}

func noFileShouldBeUploaded() error {
	if got := SharedUploadContext.mock.uploads(); len(got) != 0 {
		return fmt.Errorf("uploaded %v, want nothing", got)
	}
	return nil
}
