package badges

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func dupKey(index string) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: portal.badge_awards index: " + index + " dup key: { }",
	}}}
}

func TestAwardInsertError(t *testing.T) {
	require.ErrorIs(t, awardInsertError(dupKey("verificationCode_1")), ErrDuplicateCode)
	require.ErrorIs(t, awardInsertError(dupKey("username_1_badgeId_1")), ErrDuplicateAward)

	idClash := awardInsertError(dupKey("id_1"))
	require.NotErrorIs(t, idClash, ErrDuplicateAward)
	require.NotErrorIs(t, idClash, ErrDuplicateCode)
	var we mongo.WriteException
	require.True(t, errors.As(idClash, &we))

	down := errors.New("connection reset")
	require.ErrorIs(t, awardInsertError(down), down)
}
