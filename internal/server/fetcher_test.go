package server

import (
	"context"
	"testing"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/database"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func dtPtr(t time.Time) *primitive.DateTime {
	dt := primitive.NewDateTimeFromTime(t)
	return &dt
}

func newTestServer(st *memStore, search searchFunc) Server {
	return Server{
		DB:                    st,
		Search:                search,
		Logger:                nopLogger{},
		Now:                   func() time.Time { return testNow },
		SearchThrottle:        6 * time.Hour,
		UserConcurrency:       1,
		NotificationRetention: 30 * 24 * time.Hour,
		CleanupLimit:          500,
	}
}

func addUser(st *memStore, email string, notifications bool) model.User {
	u := model.User{ID: primitive.NewObjectID(), Email: email, Notifications: notifications}
	st.users = append(st.users, u)
	return u
}

func addBook(st *memStore, u model.User, title string, lastSearched *primitive.DateTime) model.Book {
	b := model.Book{ID: primitive.NewObjectID(), UserID: u.ID, Title: title, LastSearched: lastSearched}
	st.books = append(st.books, b)
	return b
}

var duneListings = []model.SearchResult{
	{Title: "Dune paperback", Price: "$7.99", Source: client.TextSearchSource, Link: "https://market.example/1", Condition: strPtr("Used")},
	{Title: "Selling Dune", Price: client.PriceSeePost, Source: client.ForumSearchSource, Link: "https://www.reddit.com/r/b/1", Seller: strPtr("u/alice")},
}

func TestSearchAllNotifiesOnResults(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	u.FCMTokens = []string{"token-1"}
	st.users[0] = u
	b := addBook(st, u, "Dune", nil)

	m := &mockMailer{}
	m.On("SendMatch", mock.Anything, "reader@example.com", "Dune", duneListings).Return(nil).Once()
	p := &mockPusher{}
	p.On("FCMSendNotification", mock.Anything, mock.MatchedBy(func(req client.FCMSendRequest) bool {
		return req.Data.BookID == b.ID.Hex() && req.Data.Count == 2 && req.RegistrationIDs[0] == "token-1"
	})).Return(client.FCMSendResponse{Success: 1}, nil).Once()

	s := newTestServer(st, func(_ context.Context, title string, _ *string) []model.SearchResult {
		return duneListings
	})
	s.Mailer = m
	s.Pusher = p

	require.NoError(t, s.SearchAll(context.Background()))

	ns := st.notificationsFor(u.ID)
	require.Len(t, ns, 2)
	for i, n := range ns {
		assert.Equal(t, "Dune", n.BookTitle)
		assert.Equal(t, duneListings[i].Link, n.Link)
		assert.False(t, n.Read)
		assert.Equal(t, testNow, n.Date.Time().UTC())
	}
	assert.Nil(t, ns[1].Condition)
	assert.Equal(t, testNow, st.lastSearchedUpdates[b.ID])
	m.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestSearchAllZeroResultsSendsNothing(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	b := addBook(st, u, "Obscure Pamphlet", nil)

	m := &mockMailer{}
	s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult { return []model.SearchResult{} })
	s.Mailer = m

	require.NoError(t, s.SearchAll(context.Background()))
	assert.Empty(t, st.notificationsFor(u.ID))
	m.AssertNotCalled(t, "SendMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, st.lastSearchedUpdates, b.ID)
}

func TestSearchAllThrottle(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	recent := addBook(st, u, "Recent", dtPtr(testNow.Add(-5*time.Hour)))
	boundary := addBook(st, u, "Boundary", dtPtr(testNow.Add(-6*time.Hour)))
	never := addBook(st, u, "Never", nil)

	var searched []string
	s := newTestServer(st, func(_ context.Context, title string, _ *string) []model.SearchResult {
		searched = append(searched, title)
		return nil
	})

	require.NoError(t, s.SearchAll(context.Background()))
	assert.Equal(t, []string{"Boundary", "Never"}, searched)
	assert.NotContains(t, st.lastSearchedUpdates, recent.ID)
	assert.Contains(t, st.lastSearchedUpdates, boundary.ID)
	assert.Contains(t, st.lastSearchedUpdates, never.ID)
}

func TestSearchAllSkipsUsersWithNotificationsOff(t *testing.T) {
	st := newMemStore()
	off := addUser(st, "quiet@example.com", false)
	addBook(st, off, "Dune", nil)

	called := false
	s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult {
		called = true
		return nil
	})
	require.NoError(t, s.SearchAll(context.Background()))
	assert.False(t, called)
}

func TestSearchAllPersistenceFailure(t *testing.T) {
	st := newMemStore()
	st.insertErr = errors.New("write conflict")
	u := addUser(st, "reader@example.com", true)
	first := addBook(st, u, "Dune", nil)
	second := addBook(st, u, "Emma", nil)

	m := &mockMailer{}
	var searched []string
	s := newTestServer(st, func(_ context.Context, title string, _ *string) []model.SearchResult {
		searched = append(searched, title)
		return duneListings
	})
	s.Mailer = m

	require.NoError(t, s.SearchAll(context.Background()))
	assert.Equal(t, []string{"Dune", "Emma"}, searched)
	assert.NotContains(t, st.lastSearchedUpdates, first.ID)
	assert.NotContains(t, st.lastSearchedUpdates, second.ID)
	m.AssertNotCalled(t, "SendMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchAllEmailFailureStillAdvances(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	b := addBook(st, u, "Dune", nil)

	m := &mockMailer{}
	m.On("SendMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult { return duneListings })
	s.Mailer = m

	require.NoError(t, s.SearchAll(context.Background()))
	assert.Len(t, st.notificationsFor(u.ID), 2)
	assert.Contains(t, st.lastSearchedUpdates, b.ID)
}

func TestSearchAllBookPanicContinues(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	bad := addBook(st, u, "Bad", nil)
	good := addBook(st, u, "Good", nil)

	s := newTestServer(st, func(_ context.Context, title string, _ *string) []model.SearchResult {
		if title == "Bad" {
			panic("boom")
		}
		return nil
	})

	require.NoError(t, s.SearchAll(context.Background()))
	assert.NotContains(t, st.lastSearchedUpdates, bad.ID)
	assert.Contains(t, st.lastSearchedUpdates, good.ID)
}

func TestSearchAllListingFailures(t *testing.T) {
	t.Run("users listing aborts", func(t *testing.T) {
		st := newMemStore()
		st.usersErr = errors.New("connection refused")
		s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult {
			t.Fatal("search must not run")
			return nil
		})
		assert.Error(t, s.SearchAll(context.Background()))
	})

	t.Run("malformed book skips only that user", func(t *testing.T) {
		st := newMemStore()
		broken := addUser(st, "broken@example.com", true)
		ok := addUser(st, "ok@example.com", true)
		addBook(st, broken, "Unreachable", nil)
		b := addBook(st, ok, "Dune", nil)
		st.booksErr[broken.ID] = errors.Wrap(database.ErrMalformedDocument, "missing title")

		s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult { return nil })
		require.NoError(t, s.SearchAll(context.Background()))
		assert.Contains(t, st.lastSearchedUpdates, b.ID)
	})

	t.Run("books listing error aborts", func(t *testing.T) {
		st := newMemStore()
		failing := addUser(st, "failing@example.com", true)
		later := addUser(st, "later@example.com", true)
		b := addBook(st, later, "Dune", nil)
		st.booksErr[failing.ID] = errors.New("cursor killed")

		s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult { return nil })
		assert.Error(t, s.SearchAll(context.Background()))
		assert.NotContains(t, st.lastSearchedUpdates, b.ID)
	})
}

func TestSearchAllCancelled(t *testing.T) {
	st := newMemStore()
	u := addUser(st, "reader@example.com", true)
	addBook(st, u, "Dune", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestServer(st, func(context.Context, string, *string) []model.SearchResult { return nil })
	assert.Error(t, s.SearchAll(ctx))
	assert.Empty(t, st.lastSearchedUpdates)
}
