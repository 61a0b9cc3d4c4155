package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionUsers         = "users"
	CollectionBooks         = "books"
	CollectionNotifications = "notifications"
)

type Database struct {
	*mongo.Database
}

var (
	ErrNotFound          = errors.New("document not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrNoTransactions    = errors.New("deployment does not support transactions, a replica set or mongos is required")
)

type helloResponse struct {
	SetName string `bson:"setName"`
	Msg     string `bson:"msg"`
}

// checkTransactions fails unless the server is a replica set member or mongos.
func checkTransactions(ctx context.Context, c *mongo.Client) error {
	var hello helloResponse
	err := c.Database("admin").RunCommand(ctx, bson.D{{Key: "isMaster", Value: 1}}).Decode(&hello)
	if err != nil {
		return errors.Wrap(err, "error getting deployment topology")
	}
	if hello.SetName == "" && hello.Msg != "isdbgrid" {
		return ErrNoTransactions
	}
	return nil
}

func ConnectDB(ctx context.Context, dbURI string, dbName string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}
	if err = checkTransactions(ctx, c); err != nil {
		_ = c.Disconnect(ctx)
		return nil, err
	}

	_, err = c.Database(dbName).Collection(CollectionUsers).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "notifications", Value: 1}},
			},
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating users indexes")
	}

	_, err = c.Database(dbName).Collection(CollectionBooks).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "added_date", Value: 1},
			},
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating books indexes")
	}

	_, err = c.Database(dbName).Collection(CollectionNotifications).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "created_at", Value: -1},
				},
			},
			{
				Keys: bson.D{{Key: "created_at", Value: 1}},
			},
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating notifications indexes")
	}

	return c, nil
}

// withTransaction runs fn inside a multi-document transaction. The deployment must be a replica set.
func (db Database) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "error starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
