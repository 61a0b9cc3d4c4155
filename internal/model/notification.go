package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"-"`
	BookTitle string             `bson:"book_title" json:"book_title"`
	Title     string             `bson:"title" json:"title"`
	Price     string             `bson:"price" json:"price"`
	Source    string             `bson:"source" json:"source"`
	Link      string             `bson:"link" json:"link"`
	Condition *string            `bson:"condition" json:"condition"`
	Seller    *string            `bson:"seller" json:"seller"`
	Date      primitive.DateTime `bson:"date" json:"date"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt primitive.DateTime `bson:"created_at" json:"created_at"`
}

func NewNotification(userID primitive.ObjectID, bookTitle string, r SearchResult, date time.Time) Notification {
	return Notification{
		UserID:    userID,
		BookTitle: bookTitle,
		Title:     r.Title,
		Price:     r.Price,
		Source:    r.Source,
		Link:      r.Link,
		Condition: r.Condition,
		Seller:    r.Seller,
		Date:      primitive.NewDateTimeFromTime(date),
		Read:      false,
	}
}
