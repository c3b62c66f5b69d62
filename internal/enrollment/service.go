package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openenroll/portal/internal/codes"
	"github.com/openenroll/portal/internal/profiles"
	"github.com/openenroll/portal/pkg/logger"
)

var (
	ErrMissingUserIdentifier = errors.New("claims carry no user identifier")
	// ErrStoreConflict means concurrent writers kept winning the update race.
	ErrStoreConflict = errors.New("enrollment store conflict")
)

const maxUpdateAttempts = 3

// ProfileLister exposes the legacy profiles used by ListForDisplay.
type ProfileLister interface {
	List(ctx context.Context) ([]*profiles.Profile, error)
}

// Service reconciles verified claims into per-user enrollment records.
type Service struct {
	repo     Repository
	profiles ProfileLister
	// confirm derives the confirmation code; replaceable in tests.
	confirm func(recordID int64) string
}

func NewService(repo Repository, p ProfileLister) *Service {
	return &Service{repo: repo, profiles: p, confirm: codes.ConfirmationCode}
}

// UserIdentifier extracts the routing key from claims.
func UserIdentifier(claims map[string]interface{}) (string, error) {
	switch v := claims[UserKey].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", ErrMissingUserIdentifier
}

// Ingest creates the user's record from claims, or merges claims into the
// existing one, and then stamps a fresh confirmation code.
//
// The confirmation code is a separate final write. If it fails the merged
// data stays and the record keeps its previous code.
func (s *Service) Ingest(ctx context.Context, claims map[string]interface{}) (*Record, error) {
	user, err := UserIdentifier(claims)
	if err != nil {
		return nil, err
	}
	rec, err := s.upsert(ctx, user, claims)
	if err != nil {
		return nil, err
	}
	code := s.confirm(rec.ID)
	if err := s.repo.SetConfirmation(ctx, rec.ID, code); err != nil {
		return nil, fmt.Errorf("store confirmation code: %w", err)
	}
	rec.ConfirmationCode = code
	logger.WithFields(map[string]interface{}{"user": user, "record": rec.ID}).Debug("enrollment ingested")
	return rec, nil
}

func (s *Service) upsert(ctx context.Context, user string, claims map[string]interface{}) (*Record, error) {
	existing, err := s.repo.GetByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	}
	if existing == nil {
		rec := &Record{User: user, Data: copyFields(claims)}
		err := s.repo.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
		// another submission for this user created the record first
		logger.Debugf("enrollment create conflict for %s, merging instead", user)
	}
	return s.mergeInto(ctx, user, existing, claims)
}

func (s *Service) mergeInto(ctx context.Context, user string, existing *Record, claims map[string]interface{}) (*Record, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if existing == nil {
			var err error
			existing, err = s.repo.GetByUser(ctx, user)
			if err != nil {
				return nil, fmt.Errorf("lookup enrollment: %w", err)
			}
			if existing == nil {
				return nil, fmt.Errorf("%w: record for %s vanished", ErrStoreConflict, user)
			}
		}
		merged := Merge(existing.Data, claims)
		updated, err := s.repo.UpdateData(ctx, existing.ID, existing.Version, merged)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("update enrollment: %w", err)
		}
		existing = nil
	}
	return nil, ErrStoreConflict
}
