package profiles

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Service imports legacy profiles and answers membership questions about them.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

// Import reads a JSON array of profiles and upserts each one.
// Entries without a username are skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	var list []Profile
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return 0, fmt.Errorf("decode profiles: %w", err)
	}
	n := 0
	for i := range list {
		p := &list[i]
		p.Username = strings.TrimSpace(p.Username)
		if p.Username == "" {
			continue
		}
		if err := s.repo.Upsert(ctx, p); err != nil {
			return n, fmt.Errorf("import profile %s: %w", p.Username, err)
		}
		n++
	}
	return n, nil
}

// EmailReport lists the outcome of ApplyEmails per username.
type EmailReport struct {
	Updated  []string
	NotFound []string
}

// ApplyEmails reads a CSV with a header row containing username, email and
// name columns, and updates the contact details of existing profiles.
func (s *Service) ApplyEmails(ctx context.Context, r io.Reader) (*EmailReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["username"]; !ok {
		return nil, errors.New("csv has no username column")
	}
	col := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rep := &EmailReport{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, fmt.Errorf("read csv: %w", err)
		}
		username := col(row, "username")
		if username == "" {
			continue
		}
		err = s.repo.UpdateContact(ctx, username, col(row, "email"), col(row, "name"))
		switch {
		case err == nil:
			rep.Updated = append(rep.Updated, username)
		case errors.Is(err, ErrNotFound):
			rep.NotFound = append(rep.NotFound, username)
		default:
			return rep, fmt.Errorf("update profile %s: %w", username, err)
		}
	}
	return rep, nil
}
