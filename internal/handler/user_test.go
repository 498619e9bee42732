package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/handler"
	"github.com/sakif/contacts-api/internal/model"
)

func avatarUpload(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "me.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/user/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return asUser(req, alice)
}

func TestUserHandler_HandleMe(t *testing.T) {
	mock := &MockProfiles{User: &model.User{ID: 7, Email: "alice@example.com", Role: model.RoleUser, IsActive: true, IsVerified: true}}
	h := handler.NewUserHandler(mock, logger)

	rr := httptest.NewRecorder()
	h.HandleMe(rr, asUser(httptest.NewRequest(http.MethodGet, "/user/me", nil), alice))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"alice@example.com"`)
	assert.Contains(t, rr.Body.String(), `"avatar":null`)

	rr = httptest.NewRecorder()
	h.HandleMe(rr, httptest.NewRequest(http.MethodGet, "/user/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserHandler_HandleUpdateAvatar(t *testing.T) {
	t.Run("uploaded", func(t *testing.T) {
		path := "/avatars/7/abc.png"
		mock := &MockProfiles{User: &model.User{ID: 7, Email: "alice@example.com", Avatar: &path}}
		h := handler.NewUserHandler(mock, logger)

		rr := httptest.NewRecorder()
		h.HandleUpdateAvatar(rr, avatarUpload(t, "avatar", []byte("png bytes")))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []byte("png bytes"), mock.Data)
		assert.Contains(t, rr.Body.String(), path)
	})

	t.Run("wrong field", func(t *testing.T) {
		mock := &MockProfiles{}
		h := handler.NewUserHandler(mock, logger)

		rr := httptest.NewRecorder()
		h.HandleUpdateAvatar(rr, avatarUpload(t, "file", []byte("png bytes")))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, mock.Data)
	})

	t.Run("too large", func(t *testing.T) {
		mock := &MockProfiles{}
		h := handler.NewUserHandler(mock, logger)

		rr := httptest.NewRecorder()
		h.HandleUpdateAvatar(rr, avatarUpload(t, "avatar", make([]byte, handler.MaxAvatarBytes+1)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, mock.Data)
	})

	t.Run("unsupported image", func(t *testing.T) {
		mock := &MockProfiles{Err: apperror.ValidationFailed("avatar", "avatar must be a JPEG or PNG image")}
		h := handler.NewUserHandler(mock, logger)

		rr := httptest.NewRecorder()
		h.HandleUpdateAvatar(rr, avatarUpload(t, "avatar", []byte("GIF89a")))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		require.Len(t, body.Fields, 1)
		assert.Equal(t, "avatar", body.Fields[0].Field)
	})
}
