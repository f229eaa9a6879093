package domain

import "github.com/google/uuid"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type ShippingAddress struct {
	FullName      string   `json:"fullName"`
	StreetAddress string   `json:"streetAddress"`
	City          string   `json:"city"`
	PostalCode    string   `json:"postalCode"`
	Country       string   `json:"country"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

type User struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Role          Role
	Address       *ShippingAddress
	PaymentMethod PaymentMethod
}

// Actor is who is calling: an optional signed-in user plus the anonymous
// cart key the client carries regardless.
type Actor struct {
	UserID       uuid.UUID
	Role         Role
	AnonymousKey string
}

func (a Actor) IsAuthenticated() bool {
	return a.UserID != uuid.Nil
}

func (a Actor) IsAdmin() bool {
	return a.IsAuthenticated() && a.Role == RoleAdmin
}

// CartKey identifies the actor's cart; the user id wins once signed in.
func (a Actor) CartKey() string {
	if a.IsAuthenticated() {
		return "user:" + a.UserID.String()
	}
	return "session:" + a.AnonymousKey
}
