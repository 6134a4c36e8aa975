// Package pagination implements keyset paging over (created_at, id), newest
// first, for append-only tables such as inventory_movements.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var errMalformed = errors.New("malformed cursor")

// Params is what a list endpoint accepts: a page size and the opaque cursor
// returned by the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor identifies the last row a client has already seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// wireCursor is the JSON inside the base64 token. Nanoseconds keep ties on
// created_at ordered by id without a precision loss.
type wireCursor struct {
	At int64     `json:"t"`
	ID uuid.UUID `json:"id"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so Trim can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: c.CreatedAt.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token from EncodeCursor. A blank token means the
// first page and yields nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	var wc wireCursor
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if wc.ID == uuid.Nil || wc.At <= 0 {
		return nil, errMalformed
	}
	return &Cursor{CreatedAt: time.Unix(0, wc.At).UTC(), ID: wc.ID}, nil
}

// After keeps only rows strictly older than c in (created_at, id) order.
func After(query *gorm.DB, c *Cursor) *gorm.DB {
	if c == nil {
		return query
	}
	return query.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
}

// Newest applies the cursor, the newest-first ordering and the buffered limit
// in one step.
func Newest(query *gorm.DB, c *Cursor, limit int) *gorm.DB {
	return After(query, c).Order("created_at DESC").Order("id DESC").Limit(LimitWithBuffer(limit))
}

// Trim drops the buffer row fetched by LimitWithBuffer. next is the cursor
// for the following page, empty on the last one.
func Trim[T any](rows []T, limit int, key func(T) Cursor) (page []T, next string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	page = rows[:limit]
	return page, EncodeCursor(key(page[limit-1]))
}
