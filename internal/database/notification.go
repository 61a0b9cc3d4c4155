package database

import (
	"context"
	"time"

	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationsInsert writes all notifications of one search in a single transaction.
func (db Database) NotificationsInsert(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	createdAt := primitive.NewDateTimeFromTime(time.Now())
	docs := make([]interface{}, 0, len(ns))
	for _, n := range ns {
		n.ID = primitive.NilObjectID
		n.Read = false
		n.CreatedAt = createdAt
		docs = append(docs, n)
	}

	err := db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		_, err := db.Collection(CollectionNotifications).InsertMany(sc, docs)
		return err
	})
	return errors.Wrapf(err, "error inserting %d Notification(s) for UserID: %s, BookTitle: %s",
		len(ns), ns[0].UserID.Hex(), ns[0].BookTitle)
}

func (db Database) NotificationsFindByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]model.Notification, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cur, err := db.Collection(CollectionNotifications).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Notifications for UserID: %s", userID.Hex())
	}
	ns, err := decodeAll(ctx, cur, validateNotification)
	return ns, errors.WithMessagef(err, "error decoding Notifications for UserID: %s", userID.Hex())
}

func (db Database) NotificationMarkRead(ctx context.Context, userID primitive.ObjectID, id primitive.ObjectID) error {
	res, err := db.Collection(CollectionNotifications).UpdateOne(
		ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errors.Wrapf(err, "error marking Notification as read, ID: %s", id.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "Notification not found, ID: %s, UserID: %s", id.Hex(), userID.Hex())
	}
	return nil
}

// NotificationsDeleteExpired deletes at most limit notifications created before cutoff, oldest
// first, in one transaction. Anything past the limit is left for the next sweep.
func (db Database) NotificationsDeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetLimit(limit).
		SetProjection(bson.M{"_id": 1})
	cur, err := db.Collection(CollectionNotifications).Find(
		ctx,
		bson.M{"created_at": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)}},
		opts,
	)
	if err != nil {
		return 0, errors.Wrapf(err, "error getting cursor to find expired Notifications, cutoff: %s",
			cutoff.Format(time.RFC3339))
	}
	var expired []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cur.All(ctx, &expired); err != nil {
		return 0, errors.Wrap(err, "error getting expired Notification IDs from cursor")
	}
	if len(expired) == 0 {
		return 0, nil
	}
	ids := make([]primitive.ObjectID, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.ID)
	}

	var deleted int64
	err = db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := db.Collection(CollectionNotifications).DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "error deleting %d expired Notification(s)", len(ids))
	}
	return deleted, nil
}
