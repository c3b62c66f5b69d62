package badges

import "time"

// Badge is an administrator-defined credential.
type Badge struct {
	ID          int64  `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
	Image       string `json:"image" bson:"image"`
}

// Award is one user's receipt of a badge. Username need not match a known
// account.
type Award struct {
	ID               int64     `json:"id" bson:"id"`
	Username         string    `json:"username" bson:"username"`
	BadgeID          int64     `json:"badge_id" bson:"badgeId"`
	IssuedAt         time.Time `json:"issued_at" bson:"issuedAt"`
	VerificationCode string    `json:"verification_code" bson:"verificationCode"`
}

// UserBadge is the public lookup shape for one award.
type UserBadge struct {
	Name             string    `json:"name"`
	Picture          string    `json:"picture"`
	Description      string    `json:"description"`
	Timestamp        time.Time `json:"timestamp"`
	VerificationCode string    `json:"verification_code"`
}

// Verification is what the public verification page shows.
type Verification struct {
	Username    string    `json:"username"`
	Badge       Badge     `json:"badge"`
	IssuedAt    time.Time `json:"issued_at"`
	DisplayCode string    `json:"display_code"`
}
