// Package memory is an in-process implementation of the same repository
// surfaces the postgres package exposes. It backs the end to end tests and
// is handy for quick local runs without a database. Semantics mirror the
// SQL versions: case-insensitive substring filters, "-" prefixed
// descending sort, name ascending fallback, stable ties.
package memory

import (
	"strings"
	"sync"

	"github.com/geocoder89/ratehub/internal/domain/rating"
	"github.com/geocoder89/ratehub/internal/domain/user"

	domainstore "github.com/geocoder89/ratehub/internal/domain/store"
)

type DB struct {
	mu      sync.RWMutex
	users   map[string]user.User
	stores  map[string]domainstore.Store
	ratings map[string]rating.Rating // keyed user_id|store_id
}

func NewDB() *DB {
	return &DB{
		users:   make(map[string]user.User),
		stores:  make(map[string]domainstore.Store),
		ratings: make(map[string]rating.Rating),
	}
}

func (d *DB) Users() *UsersRepo     { return &UsersRepo{db: d} }
func (d *DB) Stores() *StoresRepo   { return &StoresRepo{db: d} }
func (d *DB) Ratings() *RatingsRepo { return &RatingsRepo{db: d} }

func ratingKey(userID, storeID string) string {
	return userID + "|" + storeID
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// parseSort splits a sort option into field and direction the way the SQL
// layer does: unknown fields collapse to ascending name.
func parseSort(sort string, allowed map[string]bool) (string, bool) {
	desc := false

	s := strings.TrimSpace(sort)

	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	}

	if !allowed[s] {
		return "name", false
	}

	return s, desc
}
