package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/accounts"
	"github.com/openenroll/portal/pkg/logger"
)

const AccountKey = "account"

// Outcome of a Guard.
type Outcome int

const (
	Allowed Outcome = iota
	DeniedRedirect
)

// Decision is what a Guard returns for one request.
type Decision struct {
	Outcome  Outcome
	Location string
}

func Allow() Decision { return Decision{Outcome: Allowed} }

func Redirect(location string) Decision {
	return Decision{Outcome: DeniedRedirect, Location: location}
}

// Guard inspects a request and decides whether the handler may run.
type Guard func(c *gin.Context) Decision

// Gate runs guards in order; the first denial redirects and aborts.
func Gate(guards ...Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, g := range guards {
			d := g(c)
			if d.Outcome == DeniedRedirect {
				loc := d.Location
				if loc == "" {
					loc = "/"
				}
				c.Redirect(http.StatusFound, loc)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequireLogin allows requests carrying verified claims.
func RequireLogin(loginURL string) Guard {
	return func(c *gin.Context) Decision {
		if _, ok := Claims(c); ok {
			return Allow()
		}
		return Redirect(loginURL)
	}
}

// AccountResolver maps verified claims to the caller's account.
type AccountResolver interface {
	UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*accounts.Account, error)
}

// RequireApproved allows callers whose account is approved and stores the
// account under AccountKey. Unapproved callers go back to home.
func RequireApproved(resolver AccountResolver, home string) Guard {
	return func(c *gin.Context) Decision {
		claims, ok := Claims(c)
		if !ok {
			return Redirect(home)
		}
		acct, err := resolver.UpsertFromClaims(c.Request.Context(), claims)
		if err != nil {
			logger.Errorf("resolve account: %v", err)
			return Redirect(home)
		}
		if acct == nil || !acct.Approved {
			return Redirect(home)
		}
		c.Set(AccountKey, acct)
		return Allow()
	}
}

// CurrentAccount returns the account stored by RequireApproved.
func CurrentAccount(c *gin.Context) *accounts.Account {
	v, ok := c.Get(AccountKey)
	if !ok {
		return nil
	}
	a, _ := v.(*accounts.Account)
	return a
}
