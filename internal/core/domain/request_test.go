package domain

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_IsImmutable(t *testing.T) {
	base := Get("mediaItems", ScopePickerReadonly).WithQuery("sessionId", "s1")
	paged := base.WithQuery("pageSize", "100")

	assert.Empty(t, base.Query().Get("pageSize"))
	assert.Equal(t, "100", paged.Query().Get("pageSize"))
	assert.Equal(t, "s1", paged.Query().Get("sessionId"))

	body := Post("mediaItems:search", "").WithBody("pageSize", 10)
	withAlbum := body.WithBody("albumId", "a1")
	data, err := body.BodyJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pageSize":10}`, string(data))
	assert.True(t, withAlbum.HasBody())
}

func TestRequest_PageTokenPlacement(t *testing.T) {
	get := Get("albums", "").WithPageToken("t1")
	assert.Equal(t, "t1", get.Query().Get(PageTokenParam))
	assert.False(t, get.HasBody())
	assert.Equal(t, "t1", get.PageToken())

	post := Post("mediaItems:search", "").WithPageToken("t2")
	assert.Empty(t, post.Query().Get(PageTokenParam))
	assert.Equal(t, "t2", post.PageToken())

	assert.Equal(t, http.MethodGet, NewRequest("", "x", "").Method())
	assert.Empty(t, Get("x", "").PageToken())
}

func TestRequest_NoBody(t *testing.T) {
	data, err := Get("albums", "").BodyJSON()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestResponse_Decode(t *testing.T) {
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, (&Response{}).Decode(&v))
	require.NoError(t, (&Response{Body: []byte(`{"id":"x"}`)}).Decode(&v))
	assert.Equal(t, "x", v.ID)
}

func TestPageCursor_EncodeDecode(t *testing.T) {
	cursor := &PageCursor{
		Token:        "next",
		Request:      Post("mediaItems:search", ScopeLibraryReadonlyAppCreated).WithBody("albumId", "a1"),
		CredentialID: "cred-1",
	}

	restored, err := DecodeCursor(cursor.Encode())
	require.NoError(t, err)
	assert.Equal(t, "cred-1", restored.CredentialID)
	assert.Equal(t, "mediaItems:search", restored.Request.Path())
	assert.Equal(t, ScopeLibraryReadonlyAppCreated, restored.Request.Scope())
	assert.Equal(t, http.MethodPost, restored.Next().Method())
	assert.Equal(t, "next", restored.Next().PageToken())

	data, err := restored.Next().BodyJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"albumId":"a1","pageToken":"next"}`, string(data))
}

func TestDecodeCursor_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", "bm90IGpzb24"},
		{"future version", "eyJ2Ijo5OSwidCI6InQiLCJwIjoicCJ9"},
		{"no token", "eyJ2IjoxLCJwIjoicCJ9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.in)
			assert.ErrorIs(t, err, ErrCursorInvalid)
		})
	}

	assert.Empty(t, (*PageCursor)(nil).Encode())
}
