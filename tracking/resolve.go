/*
resolve.go - Mixed-token lookup for admin commands

PURPOSE:
  Admin commands accept either a chat identity or a personnel ID. Resolve
  tries both keyspaces and returns a tagged result - never silent
  first-match guessing. A numeric token that matches a link AND happens to
  be someone else's personnel ID is reported as ambiguous.
*/
package tracking

import (
	"context"
	"strconv"
	"strings"
)

type ResolutionKind string

const (
	ResolvedFound     ResolutionKind = "found"
	ResolvedNotFound  ResolutionKind = "not_found"
	ResolvedAmbiguous ResolutionKind = "ambiguous"
)

// Resolution is the tagged outcome of a token lookup.
type Resolution struct {
	Kind        ResolutionKind
	PersonnelID PersonnelID
}

// Resolve maps a raw admin token to a personnel record.
func (t *Tracker) Resolve(ctx context.Context, token string) (Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Resolution{Kind: ResolvedNotFound}, nil
	}

	var matches []PersonnelID

	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		link, err := t.Store.GetLink(ctx, TelegramID(n))
		if err != nil {
			return Resolution{}, &StoreError{Op: "get link", Err: err}
		}
		if link != nil {
			matches = append(matches, link.PersonnelID)
		}
	}

	p, err := t.Store.GetPersonnel(ctx, PersonnelID(token))
	if err != nil {
		return Resolution{}, &StoreError{Op: "get personnel", Err: err}
	}
	if p != nil && (len(matches) == 0 || matches[0] != p.ID) {
		matches = append(matches, p.ID)
	}

	switch len(matches) {
	case 0:
		return Resolution{Kind: ResolvedNotFound}, nil
	case 1:
		return Resolution{Kind: ResolvedFound, PersonnelID: matches[0]}, nil
	default:
		return Resolution{Kind: ResolvedAmbiguous}, nil
	}
}
