package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
)

func contactBorn(id int64, y int, m time.Month, d int) model.Contact {
	return model.Contact{ID: id, FirstName: "c", Birthday: model.NewDate(y, m, d)}
}

func ids(contacts []model.Contact) []int64 {
	out := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}

func TestUpcomingBirthdays(t *testing.T) {
	tests := []struct {
		name     string
		start    model.Date
		end      model.Date
		contacts []model.Contact
		want     []int64
	}{
		{
			name:  "january window",
			start: model.NewDate(2024, time.January, 1),
			end:   model.NewDate(2024, time.January, 10),
			contacts: []model.Contact{
				contactBorn(1, 1990, time.January, 5),
				contactBorn(2, 2024, time.February, 1),
				contactBorn(3, 1985, time.January, 1),
				contactBorn(4, 1970, time.January, 10),
				contactBorn(5, 1970, time.January, 11),
			},
			want: []int64{1, 3, 4},
		},
		{
			name:  "wraps over new year",
			start: model.NewDate(2023, time.December, 28),
			end:   model.NewDate(2024, time.January, 5),
			contacts: []model.Contact{
				contactBorn(1, 1990, time.December, 30),
				contactBorn(2, 1991, time.January, 2),
				contactBorn(3, 1992, time.December, 27),
				contactBorn(4, 1993, time.January, 6),
			},
			want: []int64{1, 2},
		},
		{
			name:  "leap day in a non-leap year lands on march first",
			start: model.NewDate(2023, time.February, 27),
			end:   model.NewDate(2023, time.March, 1),
			contacts: []model.Contact{
				contactBorn(1, 2000, time.February, 29),
			},
			want: []int64{1},
		},
		{
			name:  "leap day in a leap year",
			start: model.NewDate(2024, time.February, 29),
			end:   model.NewDate(2024, time.February, 29),
			contacts: []model.Contact{
				contactBorn(1, 2000, time.February, 29),
				contactBorn(2, 2000, time.March, 1),
			},
			want: []int64{1},
		},
		{
			name:     "no contacts",
			start:    model.NewDate(2024, time.June, 1),
			end:      model.NewDate(2024, time.June, 8),
			contacts: nil,
			want:     []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpcomingBirthdays(tt.contacts, tt.start, tt.end)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestContactService_UpcomingBirthdays(t *testing.T) {
	repo := newFakeContactRepo()
	now := time.Date(2024, time.December, 30, 15, 0, 0, 0, time.UTC)
	svc := NewContactService(repo, discardLogger(), WithNow(func() time.Time { return now }))
	ctx := context.Background()

	for _, f := range []model.ContactFields{
		{FirstName: "Ann", LastName: "A", Email: "ann@example.com", Phone: "1", Birthday: model.NewDate(1990, time.January, 3)},
		{FirstName: "Ben", LastName: "B", Email: "ben@example.com", Phone: "2", Birthday: model.NewDate(1990, time.January, 7)},
		{FirstName: "Cat", LastName: "C", Email: "cat@example.com", Phone: "3", Birthday: model.NewDate(1990, time.December, 30)},
	} {
		_, err := repo.Create(ctx, 1, f)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, 2, model.ContactFields{
		FirstName: "Dan", LastName: "D", Email: "dan@example.com", Phone: "4", Birthday: model.NewDate(1990, time.January, 1),
	})
	require.NoError(t, err)

	got, err := svc.UpcomingBirthdays(ctx, 1, DefaultBirthdayWindow)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Cat"}, firstNames(got))

	got, err = svc.UpcomingBirthdays(ctx, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Ben", "Cat"}, firstNames(got))

	got, err = svc.UpcomingBirthdays(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cat"}, firstNames(got))

	for _, days := range []int{0, -3, 366} {
		_, err := svc.UpcomingBirthdays(ctx, 1, days)
		assert.ErrorIs(t, err, apperror.ErrValidation, "days=%d", days)
	}
}

func firstNames(contacts []model.Contact) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.FirstName)
	}
	return out
}
