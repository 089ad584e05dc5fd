package form

import (
	"strconv"
	"strings"

	"github.com/m3rciful/referralbot/core/telegram/format"
	"github.com/m3rciful/referralbot/internal/users"
)

// Mode distinguishes filling in a new profile from editing an existing one.
type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// KeepText, sent in edit mode, keeps the current value of the field.
const KeepText = "-"

// KeepPayload is the choice payload of the "keep current" button.
const KeepPayload = "keep"

// Session is the in-progress form of one chat. It is a plain value:
// the Machine never mutates a Session it was given.
type Session struct {
	Mode Mode
	// Step is the 1-based ordinal of the step awaiting input.
	Step     int
	Values   users.Profile
	Original users.Profile
}

// ResultKind tells the caller what happened to an input.
type ResultKind int

const (
	// Advanced means the value was stored and Prompt is the next step.
	Advanced ResultKind = iota
	// Rejected means the value failed validation; Prompt repeats the step.
	Rejected
	// Completed means the last step was answered; Profile is ready to write.
	Completed
	// Aborted means the session is corrupt and must be dropped.
	Aborted
	// Ignored means the input does not apply to the session; nothing changed.
	Ignored
)

func (k ResultKind) String() string {
	switch k {
	case Advanced:
		return "advanced"
	case Rejected:
		return "rejected"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// Prompt is a question to send to the user.
type Prompt struct {
	Step    int
	Field   users.Field
	Text    string
	Choices []string
	// Keep offers a "keep current" button (edit mode choice steps).
	Keep bool
}

// Result describes the outcome of one input.
type Result struct {
	Kind    ResultKind
	Prompt  Prompt
	Profile users.Profile
}

// Machine drives sessions through the step table.
type Machine struct {
	steps   []Step
	choices map[users.Field][]string
}

// NewMachine builds the form with the given choice lists; empty lists use the defaults.
func NewMachine(jobTitles, jobPositions []string) *Machine {
	if len(jobTitles) == 0 {
		jobTitles = DefaultJobTitles
	}
	if len(jobPositions) == 0 {
		jobPositions = DefaultJobPositions
	}
	return &Machine{
		steps: buildSteps(),
		choices: map[users.Field][]string{
			users.JobTitle:    append([]string(nil), jobTitles...),
			users.JobPosition: append([]string(nil), jobPositions...),
		},
	}
}

// Steps returns a copy of the step table.
func (m *Machine) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// Len is the number of steps.
func (m *Machine) Len() int { return len(m.steps) }

// Labels returns field labels in form order.
func (m *Machine) Labels() []string {
	out := make([]string, len(m.steps))
	for i, s := range m.steps {
		out[i] = s.Label
	}
	return out
}

func (m *Machine) step(n int) (Step, bool) {
	if n < 1 || n > len(m.steps) {
		return Step{}, false
	}
	return m.steps[n-1], true
}

// Start opens a session on step 1. original is the stored profile in edit mode.
func (m *Machine) Start(mode Mode, original users.Profile) (Session, Prompt) {
	s := Session{Mode: mode, Step: 1}
	if mode == ModeEdit {
		s.Original = original
	}
	p, _ := m.Prompt(s)
	if mode == ModeEdit {
		p.Text = "Editing your data. Send " + KeepText + " to keep a value.\n" + p.Text
	}
	return s, p
}

// Prompt renders the question for the session's current step.
func (m *Machine) Prompt(s Session) (Prompt, bool) {
	st, ok := m.step(s.Step)
	if !ok {
		return Prompt{}, false
	}
	p := Prompt{Step: st.N, Field: st.Field, Text: st.Prompt}
	if st.Kind == KindChoice {
		p.Choices = m.choices[st.Field]
	}
	if s.Mode == ModeEdit {
		p.Text += " (current: " + format.OrPlaceholder(s.Original.Get(st.Field)) + ")"
		p.Keep = st.Kind == KindChoice
	}
	return p, true
}

func (m *Machine) reprompt(s Session, st Step) Result {
	p, _ := m.Prompt(s)
	p.Text = st.Invalid + "\n" + p.Text
	return Result{Kind: Rejected, Prompt: p}
}

// Text feeds a text message into the session.
func (m *Machine) Text(s Session, text string) (Session, Result) {
	st, ok := m.step(s.Step)
	if !ok {
		return s, Result{Kind: Aborted}
	}
	if s.Mode == ModeEdit && strings.TrimSpace(text) == KeepText {
		return m.next(s)
	}
	if st.Kind == KindChoice {
		return s, m.reprompt(s, st)
	}
	// Validators see the raw text; only free text is stored trimmed.
	if err := st.check(text); err != nil {
		return s, m.reprompt(s, st)
	}
	return m.accept(s, st, strings.TrimSpace(text))
}

// Choice feeds a button press for field into the session. payload is the
// index of the chosen option or KeepPayload. Presses that do not belong to
// the current step are Ignored.
func (m *Machine) Choice(s Session, field users.Field, payload string) (Session, Result) {
	st, ok := m.step(s.Step)
	if !ok || st.Kind != KindChoice || st.Field != field {
		return s, Result{Kind: Ignored}
	}
	if payload == KeepPayload {
		if s.Mode != ModeEdit {
			return s, Result{Kind: Ignored}
		}
		return m.next(s)
	}
	value, ok := m.ChoiceValue(field, payload)
	if !ok {
		return s, Result{Kind: Ignored}
	}
	return m.accept(s, st, value)
}

// ChoiceValue maps a button payload to its option.
func (m *Machine) ChoiceValue(field users.Field, payload string) (string, bool) {
	opts := m.choices[field]
	i, err := strconv.Atoi(payload)
	if err != nil || i < 0 || i >= len(opts) {
		return "", false
	}
	return opts[i], true
}

func (m *Machine) accept(s Session, st Step, v string) (Session, Result) {
	s.Values.Set(st.Field, v)
	return m.next(s)
}

func (m *Machine) next(s Session) (Session, Result) {
	if s.Step >= len(m.steps) {
		out := s.Values
		if s.Mode == ModeEdit {
			out = Merge(s.Original, s.Values)
		}
		return s, Result{Kind: Completed, Profile: out}
	}
	s.Step++
	p, _ := m.Prompt(s)
	return s, Result{Kind: Advanced, Prompt: p}
}

// Merge lays values over original: fields present in values win, the rest keep
// their original value.
func Merge(original, values users.Profile) users.Profile {
	out := original
	for _, f := range users.Fields {
		if v := values.Get(f); v != nil {
			out.Set(f, *v)
		}
	}
	return out
}

// Render formats a profile as labeled lines, with a placeholder for empty fields.
func (m *Machine) Render(p users.Profile) string {
	var b strings.Builder
	b.WriteString("Your data:")
	for _, st := range m.steps {
		b.WriteString("\n")
		b.WriteString(st.Label)
		b.WriteString(": ")
		b.WriteString(format.OrPlaceholder(p.Get(st.Field)))
	}
	return b.String()
}
