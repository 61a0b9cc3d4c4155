package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Email         string             `bson:"email"`
	DisplayName   string             `bson:"display_name"`
	Notifications bool               `bson:"notifications"`
	FCMTokens     []string           `bson:"fcm_tokens,omitempty"`
	CreatedAt     primitive.DateTime `bson:"created_at"`
	UpdatedAt     primitive.DateTime `bson:"updated_at"`
}
