// Package pagination implements opaque keyset cursors for list
// endpoints. A cursor pins the (created_at, id) position of the last
// row served; the next page resumes strictly after it.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

type Cursor struct {
	LastID    string
	Timestamp time.Time
}

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor packs a row position into an opaque token. An empty id
// yields an empty token, meaning no further pages.
func EncodeCursor(lastID string, ts time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := strconv.FormatInt(ts.UTC().UnixMicro(), 10) + ":" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unpacks a token produced by EncodeCursor. An empty token
// decodes to nil, meaning "start from the top".
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	micros, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	us, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    id,
		Timestamp: time.UnixMicro(us).UTC(),
	}, nil
}
