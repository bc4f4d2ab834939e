package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
)

// OptionToPgtext converts mo.Option[string] to pgtype.Text
func OptionToPgtext(o mo.Option[string]) pgtype.Text {
	v, ok := o.Get()
	if !ok {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

// PgtextToOption converts pgtype.Text to mo.Option[string]
func PgtextToOption(t pgtype.Text) mo.Option[string] {
	if !t.Valid {
		return mo.None[string]()
	}
	return mo.Some(t.String)
}

// TimeToPgdate converts time.Time to pgtype.Date (zero time is NULL)
func TimeToPgdate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// PgdateToTime converts pgtype.Date to time.Time
func PgdateToTime(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return d.Time
}
