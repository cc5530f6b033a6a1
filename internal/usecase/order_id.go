// File: internal/usecase/order_id.go
package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
)

const (
	orderIDPrefix     = "ZS"
	orderIDPrefixLen  = 6
	orderIDSeasonMark = "S"
)

// OrderIDParts is what can be recovered from an order id for support and debugging.
type OrderIDParts struct {
	ContentPrefix string
	UserPrefix    string
	SeasonNumber  *int
	CreatedAt     time.Time
	ULID          string
}

// GenerateOrderID returns ZS-<content>-<user>[-S<n>]-<ULID>.
// The prefixes are the first alphanumerics of each id, upper-cased; the ULID makes every
// call unique, even for the same tuple. The result only uses [0-9A-Z-] and is URL safe.
func GenerateOrderID(contentID, userID string, season *int) string {
	var b strings.Builder
	b.WriteString(orderIDPrefix)
	b.WriteByte('-')
	b.WriteString(idPrefix(contentID))
	b.WriteByte('-')
	b.WriteString(idPrefix(userID))
	if season != nil {
		b.WriteByte('-')
		b.WriteString(orderIDSeasonMark)
		b.WriteString(strconv.Itoa(*season))
	}
	b.WriteByte('-')
	b.WriteString(ulid.Make().String())
	return b.String()
}

// ParseOrderID reverses GenerateOrderID. It returns domain.ErrInvalidArgument for
// anything GenerateOrderID could not have produced.
func ParseOrderID(orderID string) (*OrderIDParts, error) {
	parts := strings.Split(orderID, "-")
	if len(parts) != 4 && len(parts) != 5 {
		return nil, fmt.Errorf("%w: order id has %d segments", domain.ErrInvalidArgument, len(parts))
	}
	if parts[0] != orderIDPrefix {
		return nil, fmt.Errorf("%w: unknown order id prefix %q", domain.ErrInvalidArgument, parts[0])
	}
	id, err := ulid.ParseStrict(parts[len(parts)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: order id suffix: %v", domain.ErrInvalidArgument, err)
	}
	out := &OrderIDParts{
		ContentPrefix: parts[1],
		UserPrefix:    parts[2],
		CreatedAt:     ulid.Time(id.Time()).UTC(),
		ULID:          id.String(),
	}
	if len(parts) == 5 {
		seg := parts[3]
		if !strings.HasPrefix(seg, orderIDSeasonMark) {
			return nil, fmt.Errorf("%w: bad season segment %q", domain.ErrInvalidArgument, seg)
		}
		n, err := strconv.Atoi(seg[len(orderIDSeasonMark):])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad season segment %q", domain.ErrInvalidArgument, seg)
		}
		out.SeasonNumber = &n
	}
	return out, nil
}

func idPrefix(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == orderIDPrefixLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}
