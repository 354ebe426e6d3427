package bytestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveMirror uploads export artifacts (subtitle files, bookmark sets) to
// a Google Drive folder so practice material survives the device. It is
// an optional side channel, not part of the byte-store contract; all
// failures are recoverable.
type DriveMirror struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveMirror builds a Drive client from an OAuth credentials file and
// a cached token, and finds or creates the target folder.
func NewDriveMirror(credentialsFile, tokenFile, folderName string) (*DriveMirror, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := clientFromToken(config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	m := &DriveMirror{service: srv, folderName: folderName}
	if err := m.ensureFolder(); err != nil {
		return nil, err
	}
	return m, nil
}

// clientFromToken loads a cached OAuth token. Unlike an interactive CLI
// there is no console prompt here; a missing token is an error the
// operator resolves out of band.
func clientFromToken(config *oauth2.Config, tokenFile string) (*http.Client, error) {
	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("drive token not available: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("drive token unreadable: %w", err)
	}
	return config.Client(context.Background(), tok), nil
}

func (m *DriveMirror) ensureFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		m.folderName)

	r, err := m.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %w", err)
	}
	if len(r.Files) > 0 {
		m.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     m.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}
	file, err := m.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %w", err)
	}
	m.folderID = file.Id
	return nil
}

// Upload pushes one named artifact and returns a shareable link.
func (m *DriveMirror) Upload(name string, data []byte) (string, error) {
	stamped := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), name)
	f := &drive.File{
		Name:    stamped,
		Parents: []string{m.folderID},
	}
	created, err := m.service.Files.Create(f).Media(bytes.NewReader(data)).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}
