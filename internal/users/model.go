// Package users stores bot users, their referral linkage and profile data.
package users

import (
	"time"

	"github.com/m3rciful/referralbot/core/telegram/format"
)

// Field names a profile column.
type Field string

// Profile columns in form order.
const (
	FullName           Field = "full_name"
	FatherName         Field = "father_name"
	MotherName         Field = "mother_name"
	BirthPlace         Field = "birth_place"
	BirthDate          Field = "birth_date"
	RegistrationPlace  Field = "registration_place"
	RecordNumber       Field = "record_number"
	RegistrationNumber Field = "registration_number"
	NationalID         Field = "national_id"
	JobTitle           Field = "job_title"
	JobPosition        Field = "job_position"
)

// Fields lists every profile column in form order.
var Fields = []Field{
	FullName, FatherName, MotherName, BirthPlace, BirthDate,
	RegistrationPlace, RecordNumber, RegistrationNumber, NationalID,
	JobTitle, JobPosition,
}

// Profile holds the personal registration data. Nil means never filled in.
type Profile struct {
	FullName           *string `db:"full_name"`
	FatherName         *string `db:"father_name"`
	MotherName         *string `db:"mother_name"`
	BirthPlace         *string `db:"birth_place"`
	BirthDate          *string `db:"birth_date"`
	RegistrationPlace  *string `db:"registration_place"`
	RecordNumber       *string `db:"record_number"`
	RegistrationNumber *string `db:"registration_number"`
	NationalID         *string `db:"national_id"`
	JobTitle           *string `db:"job_title"`
	JobPosition        *string `db:"job_position"`
}

// User is one row of users_telegram.
type User struct {
	ID           int64   `db:"id"`
	TelegramID   int64   `db:"telegram_id"`
	Username     *string `db:"username"`
	ReferralCode string  `db:"referral_code"`
	ReferrerID   *int64  `db:"referrer_id"`
	Profile
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Profile) ref(f Field) **string {
	switch f {
	case FullName:
		return &p.FullName
	case FatherName:
		return &p.FatherName
	case MotherName:
		return &p.MotherName
	case BirthPlace:
		return &p.BirthPlace
	case BirthDate:
		return &p.BirthDate
	case RegistrationPlace:
		return &p.RegistrationPlace
	case RecordNumber:
		return &p.RecordNumber
	case RegistrationNumber:
		return &p.RegistrationNumber
	case NationalID:
		return &p.NationalID
	case JobTitle:
		return &p.JobTitle
	case JobPosition:
		return &p.JobPosition
	}
	return nil
}

// Get returns the value of f, or nil when unset or unknown.
func (p Profile) Get(f Field) *string {
	if r := p.ref(f); r != nil {
		return *r
	}
	return nil
}

// Set assigns f; an empty value clears it. Unknown fields are ignored.
func (p *Profile) Set(f Field, v string) {
	if r := p.ref(f); r != nil {
		*r = format.OptionalString(v)
	}
}

// Empty reports whether no profile field is filled in.
func (p Profile) Empty() bool {
	for _, f := range Fields {
		if format.OrPlaceholder(p.Get(f)) != format.Placeholder {
			return false
		}
	}
	return true
}

// DisplayName is the username when known, else the telegram id.
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return formatInt(u.TelegramID)
}
