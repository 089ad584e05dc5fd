// Package form walks a chat through the eleven-step registration form.
// It is transport free: callers hand in text or a button choice together with
// the current Session and get back the next Session and what to reply.
package form

import (
	"errors"
	"regexp"
	"strings"

	"github.com/m3rciful/referralbot/internal/users"
)

// Kind is how a step takes its input.
type Kind int

const (
	// KindText steps accept any non-empty text message.
	KindText Kind = iota
	// KindChoice steps accept only a button from a fixed list.
	KindChoice
)

var (
	errEmpty = errors.New("empty value")
	errDate  = errors.New("date must be YYYY-MM-DD")

	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Step is one row of the form table.
type Step struct {
	N       int
	Field   users.Field
	Label   string
	Prompt  string
	Kind    Kind
	Invalid string
	// Validate is nil for free text steps.
	Validate func(string) error
}

// ValidateDate accepts exactly four, two and two digits separated by dashes.
func ValidateDate(s string) error {
	if !dateRe.MatchString(s) {
		return errDate
	}
	return nil
}

// DefaultJobTitles and DefaultJobPositions are used when the config lists none.
var (
	DefaultJobTitles    = []string{"Secondary school", "Diploma", "Bachelor", "Master", "Doctorate"}
	DefaultJobPositions = []string{"Engineer", "Doctor", "Teacher", "Manager", "Accountant", "Employee"}
)

func buildSteps() []Step {
	text := func(n int, f users.Field, label, prompt string) Step {
		return Step{N: n, Field: f, Label: label, Prompt: prompt, Kind: KindText, Invalid: "Please send a non-empty answer."}
	}
	steps := []Step{
		text(1, users.FullName, "Full name", "Enter your full name:"),
		text(2, users.FatherName, "Father's name", "Father's name:"),
		text(3, users.MotherName, "Mother's name", "Mother's name:"),
		text(4, users.BirthPlace, "Place of birth", "Place of birth:"),
		text(5, users.BirthDate, "Date of birth", "Date of birth (YYYY-MM-DD):"),
		text(6, users.RegistrationPlace, "Place of registration", "Place of registration:"),
		text(7, users.RecordNumber, "Record number", "Record number:"),
		text(8, users.RegistrationNumber, "Registration number", "Registration number:"),
		text(9, users.NationalID, "National ID", "National ID:"),
		{N: 10, Field: users.JobTitle, Label: "Job title", Prompt: "Choose your job title (qualification):", Kind: KindChoice},
		{N: 11, Field: users.JobPosition, Label: "Job position", Prompt: "Choose your job position:", Kind: KindChoice},
	}
	steps[4].Validate = ValidateDate
	steps[4].Invalid = "Please enter the date as YYYY-MM-DD, for example 1990-04-17."
	for i := range steps {
		if steps[i].Kind == KindChoice {
			steps[i].Invalid = "Please choose one of the buttons below."
		}
	}
	return steps
}

func (s Step) check(v string) error {
	if strings.TrimSpace(v) == "" {
		return errEmpty
	}
	if s.Validate != nil {
		return s.Validate(v)
	}
	return nil
}
