package badges

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

var ErrNoUsernames = errors.New("no usernames provided")

// BulkError records why one username could not be awarded.
type BulkError struct {
	Username string
	Err      error
}

// BulkResult classifies every username of a bulk award.
type BulkResult struct {
	Created []string
	Skipped []string
	Errors  []BulkError
}

// BulkAward grants badgeID to each username independently. Duplicates are
// skipped, other failures are collected; neither stops the batch.
func (s *Service) BulkAward(ctx context.Context, badgeID int64, usernames []string) (*BulkResult, error) {
	usernames = dedupe(usernames)
	if len(usernames) == 0 {
		return nil, ErrNoUsernames
	}
	if _, err := s.GetBadge(ctx, badgeID); err != nil {
		return nil, err
	}
	res := &BulkResult{}
	for _, u := range usernames {
		_, err := s.Grant(ctx, badgeID, u)
		switch {
		case err == nil:
			res.Created = append(res.Created, u)
		case errors.Is(err, ErrDuplicateAward):
			res.Skipped = append(res.Skipped, u)
		default:
			res.Errors = append(res.Errors, BulkError{Username: u, Err: err})
		}
	}
	return res, nil
}

// ParseUsernames reads one username per line, skipping "#" comments and
// duplicates. Blank lines are skipped, or end the input when stopAtBlank is
// set (interactive paste).
func ParseUsernames(r io.Reader, stopAtBlank bool) ([]string, error) {
	var raw []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		u := strings.TrimSpace(sc.Text())
		if u == "" {
			if stopAtBlank {
				break
			}
			continue
		}
		if strings.HasPrefix(u, "#") {
			continue
		}
		raw = append(raw, u)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dedupe(raw), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
