package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/database"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type nopLogger struct{}

func (nopLogger) Info(...any)           {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Tracef(string, ...any) {}

// memStore is an in-memory store with injectable failures.
type memStore struct {
	mu            sync.Mutex
	users         []model.User
	books         []model.Book
	notifications []model.Notification

	usersErr            error
	booksErr            map[primitive.ObjectID]error
	insertErr           error
	lastSearchedUpdates map[primitive.ObjectID]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		booksErr:            make(map[primitive.ObjectID]error),
		lastSearchedUpdates: make(map[primitive.ObjectID]time.Time),
	}
}

func (m *memStore) UsersFindNotificationsEnabled(ctx context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usersErr != nil {
		return nil, m.usersErr
	}
	var us []model.User
	for _, u := range m.users {
		if u.Notifications {
			us = append(us, u)
		}
	}
	return us, nil
}

func (m *memStore) UserFindByID(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return model.User{}, database.ErrNotFound
}

func (m *memStore) UserSettingsUpdate(ctx context.Context, userID primitive.ObjectID, s database.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID != userID {
			continue
		}
		if s.DisplayName != nil {
			m.users[i].DisplayName = *s.DisplayName
		}
		if s.Notifications != nil {
			m.users[i].Notifications = *s.Notifications
		}
		if s.FCMToken != nil {
			m.users[i].FCMTokens = append(m.users[i].FCMTokens, *s.FCMToken)
		}
		return nil
	}
	return database.ErrNotFound
}

func (m *memStore) BooksFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.booksErr[userID]; err != nil {
		return nil, err
	}
	bs := []model.Book{}
	for _, b := range m.books {
		if b.UserID == userID {
			bs = append(bs, b)
		}
	}
	return bs, nil
}

func (m *memStore) BookInsert(ctx context.Context, b model.Book) (model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = primitive.NewObjectID()
	b.AddedDate = primitive.NewDateTimeFromTime(time.Now())
	m.books = append(m.books, b)
	return b, nil
}

func (m *memStore) BookDelete(ctx context.Context, userID primitive.ObjectID, bookID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.books {
		if b.ID == bookID && b.UserID == userID {
			m.books = append(m.books[:i], m.books[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *memStore) BookLastSearchedUpdate(ctx context.Context, bookID primitive.ObjectID, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSearchedUpdates[bookID] = t
	return nil
}

func (m *memStore) NotificationsInsert(ctx context.Context, ns []model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, n := range ns {
		n.ID = primitive.NewObjectID()
		n.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
		n.Read = false
		m.notifications = append(m.notifications, n)
	}
	return nil
}

func (m *memStore) NotificationsFindByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := []model.Notification{}
	for _, n := range m.notifications {
		if n.UserID == userID && int64(len(ns)) < limit {
			ns = append(ns, n)
		}
	}
	return ns, nil
}

func (m *memStore) NotificationMarkRead(ctx context.Context, userID primitive.ObjectID, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id && m.notifications[i].UserID == userID {
			m.notifications[i].Read = true
			return nil
		}
	}
	return errors.Wrapf(database.ErrNotFound, "Notification not found, ID: %s", id.Hex())
}

func (m *memStore) NotificationsDeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []int
	for i, n := range m.notifications {
		if n.CreatedAt.Time().Before(cutoff) {
			expired = append(expired, i)
		}
	}
	sort.Slice(expired, func(a, b int) bool {
		return m.notifications[expired[a]].CreatedAt < m.notifications[expired[b]].CreatedAt
	})
	if limit > 0 && int64(len(expired)) > limit {
		expired = expired[:limit]
	}
	drop := make(map[int]struct{}, len(expired))
	for _, i := range expired {
		drop[i] = struct{}{}
	}
	kept := m.notifications[:0]
	for i, n := range m.notifications {
		if _, ok := drop[i]; !ok {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
	return int64(len(expired)), nil
}

func (m *memStore) notificationsFor(userID primitive.ObjectID) []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ns []model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			ns = append(ns, n)
		}
	}
	return ns
}

type searchFunc func(ctx context.Context, title string, author *string) []model.SearchResult

func (f searchFunc) SearchBook(ctx context.Context, title string, author *string) []model.SearchResult {
	return f(ctx, title, author)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendMatch(ctx context.Context, to, bookTitle string, rs []model.SearchResult) error {
	args := m.Called(ctx, to, bookTitle, rs)
	return args.Error(0)
}

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) FCMSendNotification(ctx context.Context, req client.FCMSendRequest) (client.FCMSendResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(client.FCMSendResponse), args.Error(1)
}
