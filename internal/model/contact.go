package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Contact is an address-book entry owned by exactly one user.
type Contact struct {
	ID             int64   `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Birthday       Date    `json:"birthday"`
	AdditionalInfo *string `json:"additional_info"`
	OwnerID        int64   `json:"-"`
}

// ContactFields is the mutable part of a contact. Create and Update both take
// the full set; an update replaces every field.
type ContactFields struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Birthday       Date
	AdditionalInfo *string
}

// Apply overwrites the contact's mutable fields.
func (c *Contact) Apply(f ContactFields) {
	c.FirstName = f.FirstName
	c.LastName = f.LastName
	c.Email = f.Email
	c.Phone = f.Phone
	c.Birthday = f.Birthday
	c.AdditionalInfo = f.AdditionalInfo
}

// DateLayout is the wire and storage format of a Date.
const DateLayout = time.DateOnly

// Date is a calendar date without a time of day.
// The zero value is 0001-01-01. Values are always normalised to midnight UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date. Out-of-range days roll over the way time.Date does,
// so NewDate(2023, time.February, 29) is 2023-03-01.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("model: invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
