// Package pagination implements keyset pagination over sequences ordered by
// (time_joined, user_id). The cursor carries the sort-key values of the last
// row of the previous page, so pages stay stable under concurrent inserts in
// a way offsets cannot.
package pagination

import "fmt"

// Order is the primary ordering direction on time_joined.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// ParseOrder validates a caller-supplied ordering string.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case Asc, Desc:
		return Order(s), nil
	}
	return "", fmt.Errorf("invalid time joined order: %q", s)
}

// comparator is the strictly-beyond operator for the primary key: rows past
// the cursor have a greater time_joined under ASC, a smaller one under DESC.
func (o Order) comparator() string {
	if o == Asc {
		return ">"
	}
	return "<"
}

// Cursor marks the last-seen row of the previous page.
type Cursor struct {
	TimeJoined int64
	UserID     string
}

// Predicate renders the keyset condition for a cursor as a parenthesised SQL
// fragment with placeholders starting at startArg, plus its arguments.
//
// Rows on the boundary timestamp are admitted with user_id <= cursor.UserID.
// Combined with OrderBy's secondary "user_id DESC" this yields a stable total
// order: the tie-break direction is always descending, regardless of the
// primary order, and must stay that way for page boundaries to be
// deterministic.
func Predicate(c Cursor, o Order, startArg int) (string, []any) {
	clause := fmt.Sprintf(
		"(time_joined %s $%d OR (time_joined = $%d AND user_id <= $%d))",
		o.comparator(), startArg, startArg+1, startArg+2,
	)
	return clause, []any{c.TimeJoined, c.TimeJoined, c.UserID}
}

// OrderBy renders the ORDER BY clause shared by first pages and cursor pages.
func OrderBy(o Order) string {
	return fmt.Sprintf("ORDER BY time_joined %s, user_id DESC", o)
}

// Admits reports whether a row lies beyond the cursor, mirroring exactly the
// SQL predicate. Kept in sync with Predicate; used by tests to check the
// partition property without a database.
func (c Cursor) Admits(o Order, timeJoined int64, userID string) bool {
	if o == Asc {
		if timeJoined > c.TimeJoined {
			return true
		}
	} else {
		if timeJoined < c.TimeJoined {
			return true
		}
	}
	return timeJoined == c.TimeJoined && userID <= c.UserID
}

// Less orders two rows per OrderBy: primary time_joined in o's direction,
// secondary user_id always descending.
func Less(o Order, t1 int64, id1 string, t2 int64, id2 string) bool {
	if t1 != t2 {
		if o == Asc {
			return t1 < t2
		}
		return t1 > t2
	}
	return id1 > id2
}
