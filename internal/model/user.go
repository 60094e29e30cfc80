package model

import "time"

// User is the minimal participant record the core needs: identity, a
// display name for listings and the role used for dispatch. Profile data,
// credentials and verification live in the account service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
