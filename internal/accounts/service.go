package accounts

import (
	"context"
	"errors"
	"strings"
)

// ErrStaffAccount rejects unapproving a configured administrator.
var ErrStaffAccount = errors.New("account is a staff administrator")

// Service encapsulates account-related business logic
type Service struct {
	repo   Repository
	admins map[string]bool
}

// NewService returns a Service. Accounts whose username is listed in admins
// are approved and marked staff whenever they log in, which is how the first
// approver of a fresh deployment gets in.
func NewService(r Repository, admins ...string) *Service {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = true
		}
	}
	return &Service{repo: r, admins: set}
}

// UpsertFromClaims creates or updates an account from OIDC claims.
// Returns nil, nil when claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*Account, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	if strings.TrimSpace(username) == "" {
		username = sub
	}
	return s.repo.UpsertBySub(ctx, &Account{Sub: sub, Username: username, Email: email, Name: name, Staff: s.admins[username]})
}

// SetApproved flips the approval flag of the account with this username.
// Staff accounts cannot be unapproved.
func (s *Service) SetApproved(ctx context.Context, username string, approved bool) error {
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	if a.Staff && !approved {
		return ErrStaffAccount
	}
	return s.repo.SetApproved(ctx, a.Sub, approved)
}

func (s *Service) ListByApproval(ctx context.Context, approved bool) ([]*Account, error) {
	return s.repo.ListByApproval(ctx, approved)
}
