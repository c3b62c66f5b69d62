package accounts

import "time"

// Account is a staff member known from OIDC claims. Approved gates the
// management surfaces; a fresh account starts unapproved. Staff marks a
// configured administrator, which is approved on login and cannot be
// unapproved.
type Account struct {
	Sub       string    `bson:"sub" json:"sub"` // OIDC subject
	Username  string    `bson:"username" json:"username"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Approved  bool      `bson:"approved" json:"approved"`
	Staff     bool      `bson:"staff" json:"staff"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
