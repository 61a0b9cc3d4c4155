package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID  `bson:"user_id" json:"-"`
	Title        string              `bson:"title" json:"title"`
	Author       *string             `bson:"author" json:"author"`
	AddedDate    primitive.DateTime  `bson:"added_date" json:"added_date"`
	LastSearched *primitive.DateTime `bson:"last_searched" json:"last_searched"`
}

// Query is the search string sent to the marketplaces: the title, followed by the author if known.
func (b Book) Query() string {
	q := strings.TrimSpace(b.Title)
	if b.Author != nil {
		if a := strings.TrimSpace(*b.Author); a != "" {
			q += " " + a
		}
	}
	return q
}

// SearchDue reports whether the book may be searched again at now. A book searched strictly
// after now-throttle is still cooling down.
func (b Book) SearchDue(now time.Time, throttle time.Duration) bool {
	if b.LastSearched == nil {
		return true
	}
	return !b.LastSearched.Time().After(now.Add(-throttle))
}
