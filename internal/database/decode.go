package database

import (
	"context"
	"fmt"

	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, validate func(T) error) ([]T, error) {
	defer func() {
		_ = cur.Close(ctx)
	}()
	vs := []T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v, document: %s",
				ErrMalformedDocument, err, misc.StringLimit(cur.Current.String(), 500))
		}
		if err := validate(v); err != nil {
			return nil, fmt.Errorf("%w: %v, document: %s",
				ErrMalformedDocument, err, misc.StringLimit(cur.Current.String(), 500))
		}
		vs = append(vs, v)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating cursor")
	}
	return vs, nil
}

func decodeOne[T any](res *mongo.SingleResult, validate func(T) error) (T, error) {
	var v T
	raw, err := res.DecodeBytes()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return v, ErrNotFound
		}
		return v, err
	}
	if err = res.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %v, document: %s", ErrMalformedDocument, err, misc.StringLimit(raw.String(), 500))
	}
	if err = validate(v); err != nil {
		return v, fmt.Errorf("%w: %v, document: %s", ErrMalformedDocument, err, misc.StringLimit(raw.String(), 500))
	}
	return v, nil
}

func validateUser(u model.User) error {
	if u.ID.IsZero() {
		return errors.New("user has no _id")
	}
	if u.Email == "" {
		return errors.New("user has no email")
	}
	return nil
}

func validateBook(b model.Book) error {
	if b.ID.IsZero() {
		return errors.New("book has no _id")
	}
	if b.UserID.IsZero() {
		return errors.New("book has no user_id")
	}
	if b.Title == "" {
		return errors.New("book has no title")
	}
	return nil
}

func validateNotification(n model.Notification) error {
	if n.ID.IsZero() {
		return errors.New("notification has no _id")
	}
	if n.Link == "" {
		return errors.New("notification has no link")
	}
	return nil
}
