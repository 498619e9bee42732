package service

import (
	"time"

	"github.com/sakif/contacts-api/internal/model"
)

// UpcomingBirthdays returns the contacts whose next birthday on or after
// start falls within [start, end].
//
// HOW THE PROJECTION WORKS:
// Each birthday's month and day are placed in start's year. If that date is
// already behind start, it moves to the following year. This is what makes a
// window such as Dec 28 → Jan 5 find a Jan 2 birthday.
//
// A Feb 29 birthday projected onto a non-leap year becomes Mar 1, because
// model.NewDate rolls over out-of-range days the way time.Date does.
//
// Contacts keep their input order.
func UpcomingBirthdays(contacts []model.Contact, start, end model.Date) []model.Contact {
	out := make([]model.Contact, 0)
	for _, c := range contacts {
		next := projectBirthday(c.Birthday, start)
		if !next.Before(start.Time) && !next.After(end.Time) {
			out = append(out, c)
		}
	}
	return out
}

func projectBirthday(birthday, start model.Date) model.Date {
	next := model.NewDate(start.Year(), birthday.Month(), birthday.Day())
	if next.Before(start.Time) {
		next = model.NewDate(start.Year()+1, birthday.Month(), birthday.Day())
	}
	return next
}

// today returns the current calendar date in the server's local zone.
func today(now func() time.Time) model.Date {
	return model.DateOf(now())
}
