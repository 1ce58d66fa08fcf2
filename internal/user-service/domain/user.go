package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Phone     string
	Address   string
	IsBlocked bool
	CreatedAt time.Time
}

// HasDeliveryDetails reports whether the stored address can be used for an order.
func (u *User) HasDeliveryDetails() bool {
	return strings.TrimSpace(u.Address) != ""
}
