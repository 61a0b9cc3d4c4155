package server

import (
	"context"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/database"
	"booktracker/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Server struct {
	DB            store
	Search        searcher
	Mailer        mailer
	Pusher        pusher
	Logger        logger
	AuthSecretKey jwk.Key
	Validator     *validator.Validate
	Now           func() time.Time

	SearchThrottle        time.Duration
	BookInterval          time.Duration
	UserInterval          time.Duration
	UserConcurrency       int
	NotificationRetention time.Duration
	CleanupLimit          int
}

type store interface {
	UsersFindNotificationsEnabled(ctx context.Context) ([]model.User, error)
	UserFindByID(ctx context.Context, id string) (model.User, error)
	UserSettingsUpdate(ctx context.Context, userID primitive.ObjectID, s database.UserSettings) error
	BooksFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Book, error)
	BookInsert(ctx context.Context, b model.Book) (model.Book, error)
	BookDelete(ctx context.Context, userID primitive.ObjectID, bookID primitive.ObjectID) error
	BookLastSearchedUpdate(ctx context.Context, bookID primitive.ObjectID, t time.Time) error
	NotificationsInsert(ctx context.Context, ns []model.Notification) error
	NotificationsFindByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]model.Notification, error)
	NotificationMarkRead(ctx context.Context, userID primitive.ObjectID, id primitive.ObjectID) error
	NotificationsDeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error)
}

type searcher interface {
	SearchBook(ctx context.Context, title string, author *string) []model.SearchResult
}

type mailer interface {
	SendMatch(ctx context.Context, to, bookTitle string, rs []model.SearchResult) error
}

type pusher interface {
	FCMSendNotification(ctx context.Context, req client.FCMSendRequest) (client.FCMSendResponse, error)
}

type logger interface {
	Info(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	Tracef(format string, v ...any)
}

func (s Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Server) validate() *validator.Validate {
	if s.Validator != nil {
		return s.Validator
	}
	return defaultValidator
}

var defaultValidator = validator.New()
