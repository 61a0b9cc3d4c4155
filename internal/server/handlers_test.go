package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booktracker/internal/model"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type handlerFixture struct {
	st       *memStore
	srv      Server
	handler  http.Handler
	user     model.User
	token    string
	searches int
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	key, err := jwk.FromRaw([]byte("test-secret-key"))
	require.NoError(t, err)

	f := &handlerFixture{st: newMemStore()}
	f.user = addUser(f.st, "reader@example.com", true)
	f.srv = newTestServer(f.st, func(_ context.Context, title string, author *string) []model.SearchResult {
		f.searches++
		return duneListings
	})
	f.srv.AuthSecretKey = key
	f.handler = f.srv.Router()
	f.token = signToken(t, key, f.user.ID.Hex(), time.Now().Add(time.Hour))
	return f
}

func signToken(t *testing.T, key jwk.Key, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject(sub).Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	return string(signed)
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func errorStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	e := apiError{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e.Error.Status
}

func TestSearchManual(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/api/search", "", map[string]string{"title": ""})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, statusUnauthenticated, errorStatus(t, rec))
		assert.Zero(t, f.searches)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newHandlerFixture(t)
		expired := signToken(t, f.srv.AuthSecretKey, f.user.ID.Hex(), time.Now().Add(-time.Hour))
		rec := f.do(t, http.MethodPost, "/api/search", expired, map[string]string{"title": "Dune"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, f.searches)
	})

	t.Run("unknown subject", func(t *testing.T) {
		f := newHandlerFixture(t)
		other := signToken(t, f.srv.AuthSecretKey, primitive.NewObjectID().Hex(), time.Now().Add(time.Hour))
		rec := f.do(t, http.MethodPost, "/api/search", other, map[string]string{"title": "Dune"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("blank title", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/api/search", f.token, map[string]string{"title": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, statusInvalidArgument, errorStatus(t, rec))
		assert.Zero(t, f.searches)
	})

	t.Run("results", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/api/search", f.token, map[string]string{"title": "Dune", "author": "Frank Herbert"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := struct {
			Results    []model.SearchResult `json:"results"`
			SearchedAt string               `json:"searched_at"`
		}{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, duneListings, resp.Results)
		assert.Equal(t, testNow.Format(time.RFC3339), resp.SearchedAt)
		assert.Equal(t, 1, f.searches)
		// read-only
		assert.Empty(t, f.st.notifications)
		assert.Empty(t, f.st.lastSearchedUpdates)
	})
}

func TestNotificationRead(t *testing.T) {
	f := newHandlerFixture(t)
	mine := model.Notification{ID: primitive.NewObjectID(), UserID: f.user.ID, Link: "https://market.example/1"}
	theirs := model.Notification{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), Link: "https://market.example/2"}
	f.st.notifications = append(f.st.notifications, mine, theirs)

	rec := f.do(t, http.MethodPost, "/api/notification/read", f.token, map[string]string{"id": "not-an-id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, statusInvalidArgument, errorStatus(t, rec))

	rec = f.do(t, http.MethodPost, "/api/notification/read", f.token, map[string]string{"id": theirs.ID.Hex()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, statusNotFound, errorStatus(t, rec))
	assert.False(t, f.st.notifications[1].Read)

	rec = f.do(t, http.MethodPost, "/api/notification/read", f.token, map[string]string{"id": primitive.NewObjectID().Hex()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/notification/read", f.token, map[string]string{"id": mine.ID.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.True(t, f.st.notifications[0].Read)

	rec = f.do(t, http.MethodGet, "/api/notification/get", f.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := struct {
		Notifications []struct {
			ID   string `json:"id"`
			Read bool   `json:"read"`
		} `json:"notifications"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, mine.ID.Hex(), resp.Notifications[0].ID)
	assert.True(t, resp.Notifications[0].Read)
}

func TestBookHandlers(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/book/add", f.token, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := string(bytes.Repeat([]byte("a"), 301))
	rec = f.do(t, http.MethodPost, "/api/book/add", f.token, map[string]string{"title": long})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/book/add", f.token, map[string]string{"title": " Dune ", "author": ""})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := struct {
		Book struct {
			ID           string  `json:"id"`
			Title        string  `json:"title"`
			Author       *string `json:"author"`
			LastSearched *string `json:"last_searched"`
		} `json:"book"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, "Dune", added.Book.Title)
	assert.Nil(t, added.Book.Author)
	assert.Nil(t, added.Book.LastSearched)

	rec = f.do(t, http.MethodGet, "/api/book/get", f.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := struct {
		Books []struct {
			ID string `json:"id"`
		} `json:"books"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Books, 1)

	rec = f.do(t, http.MethodPost, "/api/book/remove", f.token, map[string]string{"id": primitive.NewObjectID().Hex()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/book/remove", f.token, map[string]string{"id": added.Book.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.st.books)
}

func TestUserHandlers(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/user/settings", f.token, map[string]any{
		"display_name":  "Paul",
		"notifications": false,
		"fcm_token":     "device-token",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Paul", f.st.users[0].DisplayName)
	assert.False(t, f.st.users[0].Notifications)
	assert.Equal(t, []string{"device-token"}, f.st.users[0].FCMTokens)

	rec = f.do(t, http.MethodGet, "/api/user/info", f.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"reader@example.com","display_name":"Paul","notifications":false}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, statusNotFound, errorStatus(t, rec))

	rec = f.do(t, http.MethodGet, "/api/nope", f.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
