package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent png
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestSaveImage(t *testing.T) {
	s := NewStorage(t.TempDir(), "/api/v1/")

	stored, err := s.SaveImage(AreaSupportChat, bytes.NewReader(pngPixel))
	require.NoError(t, err)
	assert.Equal(t, "image/png", stored.MimeType)
	assert.True(t, strings.HasSuffix(stored.Filename, ".png"))
	assert.Len(t, strings.TrimSuffix(stored.Filename, ".png"), 36)
	assert.Equal(t, "/api/v1/uploads/support-chat/"+stored.Filename, stored.URL)

	path, err := s.Path(AreaSupportChat, stored.Filename)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)
}

func TestSaveImageRejectsNonImages(t *testing.T) {
	s := NewStorage(t.TempDir(), "")

	_, err := s.SaveImage(AreaSupportChat, strings.NewReader("%PDF-1.4 not an image"))
	assert.True(t, errors.Is(err, ErrNotAnImage))

	big := append(append([]byte{}, pngPixel...), make([]byte, MaxImageSize)...)
	_, err = s.SaveImage(AreaSupportChat, bytes.NewReader(big))
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}

func TestPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	s := NewStorage(root, "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))

	for _, name := range []string{"../secret.txt", "..", ".env", "a/b.png", ""} {
		_, err := s.Path(AreaDeposits, name)
		assert.True(t, errors.Is(err, ErrBadFilename), name)
	}

	_, err := s.Path(AreaDeposits, "missing.png")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestUploadAndServe(t *testing.T) {
	h := NewHandler(NewStorage(t.TempDir(), "/api/v1"))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "avatar.exe")
	require.NoError(t, err)
	_, _ = part.Write(pngPixel)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/support-chat/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadImage(AreaSupportChat)(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	entries, err := os.ReadDir(filepath.Join(h.Storage.root, string(AreaSupportChat)))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	get := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"filename": entries[0].Name()})
	rr = httptest.NewRecorder()
	h.Serve(AreaSupportChat)(rr, get)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	missing := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"filename": "nope.png"})
	rr = httptest.NewRecorder()
	h.Serve(AreaSupportChat)(rr, missing)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
