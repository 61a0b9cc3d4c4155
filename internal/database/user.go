package database

import (
	"context"
	"time"

	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (db Database) UsersFindNotificationsEnabled(ctx context.Context) ([]model.User, error) {
	cur, err := db.Collection(CollectionUsers).Find(ctx, bson.M{"notifications": true})
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find Users with notifications enabled")
	}
	us, err := decodeAll(ctx, cur, validateUser)
	return us, errors.WithMessage(err, "error decoding Users with notifications enabled")
}

func (db Database) UserFindByID(ctx context.Context, id string) (model.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, errors.Wrapf(err, "error creating ObjectID from hex: %s", id)
	}
	u, err := decodeOne(db.Collection(CollectionUsers).FindOne(ctx, bson.M{"_id": objID}), validateUser)
	return u, errors.WithMessagef(err, "error finding User with ID: %s", id)
}

type UserSettings struct {
	DisplayName   *string
	Notifications *bool
	FCMToken      *string
}

func (db Database) UserSettingsUpdate(ctx context.Context, userID primitive.ObjectID, s UserSettings) error {
	set := bson.M{"updated_at": primitive.NewDateTimeFromTime(time.Now())}
	if s.DisplayName != nil {
		set["display_name"] = *s.DisplayName
	}
	if s.Notifications != nil {
		set["notifications"] = *s.Notifications
	}
	update := bson.M{"$set": set}
	if s.FCMToken != nil && *s.FCMToken != "" {
		update["$addToSet"] = bson.M{"fcm_tokens": *s.FCMToken}
	}

	res, err := db.Collection(CollectionUsers).UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return errors.Wrapf(err, "error updating settings of User with ID: %s", userID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "User not found when updating settings, ID: %s", userID.Hex())
	}
	return nil
}
