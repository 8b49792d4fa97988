// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a directory user as stored by the backend.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FullName   string             `bson:"full_name" json:"name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Image      string             `bson:"image,omitempty" json:"image,omitempty"`
	Address    string             `bson:"address,omitempty" json:"address,omitempty"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AsCustomer converts a stored user into the directory shape the engine consumes.
func (u User) AsCustomer() Customer {
	return Customer{
		ID:      u.ID.Hex(),
		Name:    u.FullName,
		Email:   u.Email,
		Phone:   u.Phone,
		Image:   u.Image,
		Address: u.Address,
	}
}
