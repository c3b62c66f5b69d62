package badges

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openenroll/portal/internal/codes"
	"github.com/openenroll/portal/pkg/logger"
	"github.com/openenroll/portal/pkg/metrics"
)

var (
	ErrNotFound         = errors.New("verification code not found")
	ErrNameRequired     = errors.New("badge name is required")
	ErrUsernameRequired = errors.New("username is required")
)

// Service manages badges and their awards.
type Service struct {
	repo Repository
	gen  *codes.Generator
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, gen: codes.NewGenerator(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) CreateBadge(ctx context.Context, name, description, image string) (*Badge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	b := &Badge{Name: name, Description: description, Image: strings.TrimSpace(image)}
	if err := s.repo.CreateBadge(ctx, b); err != nil {
		return nil, fmt.Errorf("create badge: %w", err)
	}
	return b, nil
}

func (s *Service) UpdateBadge(ctx context.Context, id int64, name, description, image string) (*Badge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	b := &Badge{ID: id, Name: name, Description: description, Image: strings.TrimSpace(image)}
	if err := s.repo.UpdateBadge(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBadge removes the badge together with every award of it.
func (s *Service) DeleteBadge(ctx context.Context, id int64) error {
	return s.repo.DeleteBadge(ctx, id)
}

func (s *Service) GetBadge(ctx context.Context, id int64) (*Badge, error) {
	b, err := s.repo.GetBadge(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBadgeNotFound
	}
	return b, nil
}

func (s *Service) ListBadges(ctx context.Context) ([]*Badge, error) {
	return s.repo.ListBadges(ctx)
}

func (s *Service) ListAwards(ctx context.Context) ([]*Award, error) {
	return s.repo.ListAwards(ctx)
}

// Grant awards badgeID to username with a fresh verification code.
//
// CodeExists only pre-filters draws; the store's unique index decides, and a
// rejected insert is retried with a new code from the same attempt budget.
func (s *Service) Grant(ctx context.Context, badgeID int64, username string) (*Award, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if _, err := s.GetBadge(ctx, badgeID); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindAward(ctx, username, badgeID)
	if err != nil {
		return nil, fmt.Errorf("lookup award: %w", err)
	}
	if existing != nil {
		metrics.BadgeGrants.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateAward
	}

	for remaining := codes.DefaultMaxAttempts; remaining > 0; {
		code, used, err := s.gen.GenerateCounted(ctx, s.repo.CodeExists, remaining)
		remaining -= used
		if err != nil {
			metrics.BadgeGrants.WithLabelValues("error").Inc()
			return nil, err
		}
		a := &Award{Username: username, BadgeID: badgeID, IssuedAt: s.now(), VerificationCode: code}
		err = s.repo.CreateAward(ctx, a)
		switch {
		case err == nil:
			metrics.BadgeGrants.WithLabelValues("created").Inc()
			logger.Infof("badge %d granted to %s", badgeID, username)
			return a, nil
		case errors.Is(err, ErrDuplicateCode):
			logger.Warnf("verification code collision on insert, redrawing")
			continue
		case errors.Is(err, ErrDuplicateAward):
			metrics.BadgeGrants.WithLabelValues("duplicate").Inc()
			return nil, ErrDuplicateAward
		default:
			metrics.BadgeGrants.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("create award: %w", err)
		}
	}
	metrics.BadgeGrants.WithLabelValues("error").Inc()
	return nil, codes.ErrCodeSpaceExhausted
}

// Revoke deletes an award. ErrAwardNotFound leaves everything untouched.
func (s *Service) Revoke(ctx context.Context, awardID int64) error {
	return s.repo.DeleteAward(ctx, awardID)
}

// ListForUser returns the user's badges, newest issued first.
func (s *Service) ListForUser(ctx context.Context, username string) ([]UserBadge, error) {
	awards, err := s.repo.ListAwardsForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	cache := map[int64]*Badge{}
	out := make([]UserBadge, 0, len(awards))
	for _, a := range awards {
		b, ok := cache[a.BadgeID]
		if !ok {
			if b, err = s.repo.GetBadge(ctx, a.BadgeID); err != nil {
				return nil, err
			}
			cache[a.BadgeID] = b
		}
		if b == nil {
			// award left behind by an interrupted badge delete
			continue
		}
		out = append(out, UserBadge{
			Name:             b.Name,
			Picture:          b.Image,
			Description:      b.Description,
			Timestamp:        a.IssuedAt,
			VerificationCode: a.VerificationCode,
		})
	}
	return out, nil
}

// Verify resolves a public verification code.
func (s *Service) Verify(ctx context.Context, code string) (*Verification, error) {
	a, err := s.repo.GetAwardByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	b, err := s.repo.GetBadge(ctx, a.BadgeID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return &Verification{
		Username:    a.Username,
		Badge:       *b,
		IssuedAt:    a.IssuedAt,
		DisplayCode: codes.DisplayCode(a.VerificationCode),
	}, nil
}
