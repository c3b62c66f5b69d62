package enrollment

import "time"

// UserKey is the claim that routes a submission to its record.
const UserKey = "user"

// Record is the per-user enrollment document accumulated over submissions.
// Data holds JSON values as decoded from token claims: string, float64,
// bool, nil, map[string]interface{} and []interface{}.
type Record struct {
	ID               int64                  `json:"id" bson:"id"`
	User             string                 `json:"user" bson:"user"`
	Data             map[string]interface{} `json:"data" bson:"data"`
	CreatedAt        time.Time              `json:"timestamp" bson:"createdAt"`
	ConfirmationCode string                 `json:"confirmation_code,omitempty" bson:"confirmationCode,omitempty"`
	Version          int64                  `json:"-" bson:"version"`
}

func (r *Record) clone() *Record {
	c := *r
	c.Data = copyFields(r.Data)
	return &c
}

func copyFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
