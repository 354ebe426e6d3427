package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopdrill/loopdrill/internal/bytestore"
)

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) Store(data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.blobs[id] = data
	return id, nil
}

func (m *memStore) Retrieve(id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return nil, bytestore.ErrNotFound
	}
	return b, nil
}

func (m *memStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		return bytestore.ErrNotFound
	}
	delete(m.blobs, id)
	return nil
}

func (m *memStore) Usage() (bytestore.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var used int64
	for _, b := range m.blobs {
		used += int64(len(b))
	}
	return bytestore.Usage{UsedBytes: used}, nil
}

func (m *memStore) SetLimit(int64) error { return nil }

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadStoresBlob(t *testing.T) {
	store := newMemStore()
	app := fiber.New()
	app.Post("/media", NewUploadHandler(zerolog.Nop(), store, 10).Handle)

	body, contentType := multipartUpload(t, "clip.mp3", []byte("fake mp3 bytes"))
	req := httptest.NewRequest("POST", "/media", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotEmpty(t, out["media_key"])
	blobID, _ := out["blob_id"].(string)
	require.NotEmpty(t, blobID)

	stored, err := store.Retrieve(blobID)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake mp3 bytes"), stored)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	app := fiber.New()
	app.Post("/media", NewUploadHandler(zerolog.Nop(), newMemStore(), 10).Handle)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest("POST", "/media", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	app := fiber.New()
	app.Post("/media", NewUploadHandler(zerolog.Nop(), newMemStore(), 10).Handle)

	req := httptest.NewRequest("POST", "/media", bytes.NewReader(nil))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestMediaUsageEndpoint(t *testing.T) {
	store := newMemStore()
	_, err := store.Store([]byte("0123456789"))
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/media/usage", NewMediaHandler(zerolog.Nop(), store, nil).Usage)

	resp, err := app.Test(httptest.NewRequest("GET", "/media/usage", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var u bytestore.Usage
	require.NoError(t, json.Unmarshal(raw, &u))
	assert.Equal(t, int64(10), u.UsedBytes)
}
