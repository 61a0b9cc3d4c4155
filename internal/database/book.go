package database

import (
	"context"
	"time"

	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) BooksFindByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Book, error) {
	opts := options.Find().SetSort(bson.M{"added_date": 1})
	cur, err := db.Collection(CollectionBooks).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Books for UserID: %s", userID.Hex())
	}
	bs, err := decodeAll(ctx, cur, validateBook)
	return bs, errors.WithMessagef(err, "error decoding Books for UserID: %s", userID.Hex())
}

func (db Database) BookInsert(ctx context.Context, b model.Book) (model.Book, error) {
	b.ID = primitive.NilObjectID
	b.AddedDate = primitive.NewDateTimeFromTime(time.Now())
	b.LastSearched = nil
	r, err := db.Collection(CollectionBooks).InsertOne(ctx, b)
	if err != nil {
		return b, errors.Wrapf(err, "error inserting Book: %+v", b)
	}
	b.ID = r.InsertedID.(primitive.ObjectID)
	return b, nil
}

func (db Database) BookDelete(ctx context.Context, userID primitive.ObjectID, bookID primitive.ObjectID) error {
	res, err := db.Collection(CollectionBooks).DeleteOne(ctx, bson.M{"_id": bookID, "user_id": userID})
	if err != nil {
		return errors.Wrapf(err, "error deleting Book with ID: %s", bookID.Hex())
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "Book not found, ID: %s, UserID: %s", bookID.Hex(), userID.Hex())
	}
	return nil
}

func (db Database) BookLastSearchedUpdate(ctx context.Context, bookID primitive.ObjectID, t time.Time) error {
	res, err := db.Collection(CollectionBooks).UpdateOne(
		ctx,
		bson.M{"_id": bookID},
		bson.M{"$set": bson.M{"last_searched": primitive.NewDateTimeFromTime(t)}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating Book LastSearched, ID: %s", bookID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "Book not found when updating LastSearched, ID: %s", bookID.Hex())
	}
	return nil
}
