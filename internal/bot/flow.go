// Package bot wires the referral service and the registration form to Telegram.
//
// Flow holds every use case as a plain method returning a Response, so the
// conversation can be driven and tested without a Telegram connection.
// Handlers translate telebot updates into Flow calls and Responses into sends.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/keyboard"
	"github.com/m3rciful/referralbot/core/telegram/state"
	"github.com/m3rciful/referralbot/internal/form"
	"github.com/m3rciful/referralbot/internal/referral"
	"github.com/m3rciful/referralbot/internal/users"
)

// Callback uniques of the inline buttons.
const (
	CbAdd         = "add_data"
	CbEdit        = "edit_data"
	CbShow        = "show_data"
	CbDelete      = "delete_data"
	CbReferrals   = "my_referrals"
	CbReferral    = "referral"
	CbJobTitle    = string(users.JobTitle)
	CbJobPosition = string(users.JobPosition)
)

// User-facing texts.
const (
	msgMenu          = "Choose an option:"
	msgSaved         = "Your data has been saved."
	msgDeleted       = "Your data has been deleted."
	msgNoEditData    = "You have no data yet. Use \"Add data\" first."
	msgNoAccount     = "You have no account yet. Send /start first."
	msgNoReferrals   = "You have no referrals yet."
	msgSessionEnded  = "Session ended. Use /menu again."
	msgFailure       = "An error occurred. Please try again later."
	msgUnknownUser   = "User not found."
	msgUnknownCmd    = "Unknown command. Use /menu."
	msgKeepCurrent   = "Keep current"
	referralsHeading = "Your referrals (%d):"
)

// Who identifies the sender of an update.
type Who struct {
	TelegramID int64
	ChatID     int64
	Username   string
	FirstName  string
}

// Button is one inline keyboard button.
type Button = keyboard.Button

// Reply is one outgoing message.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Response is everything to send back for one update.
// Alert, when set, answers the callback with a popup.
type Response struct {
	Replies []Reply
	Alert   string
}

func say(text string) Response {
	return Response{Replies: []Reply{{Text: text}}}
}

// ProfileStore is the profile side of the users repository.
type ProfileStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	UpdateProfile(ctx context.Context, telegramID int64, p users.Profile) error
	ClearProfile(ctx context.Context, telegramID int64) error
}

// Flow implements the bot conversation.
type Flow struct {
	referrals   *referral.Service
	profiles    ProfileStore
	sessions    *state.Store[form.Session]
	machine     *form.Machine
	botUsername string
}

// NewFlow assembles a Flow.
func NewFlow(refs *referral.Service, profiles ProfileStore, sessions *state.Store[form.Session], machine *form.Machine, botUsername string) *Flow {
	return &Flow{
		referrals:   refs,
		profiles:    profiles,
		sessions:    sessions,
		machine:     machine,
		botUsername: botUsername,
	}
}

// InProgress reports whether chatID is filling in the form.
func (f *Flow) InProgress(chatID int64) bool {
	return f.sessions.InProgress(chatID)
}

func (f *Flow) fail(ctx context.Context, event string, err error) Response {
	logger.Error(ctx, logger.CompForms, event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	return say(msgFailure)
}

// Start ensures the account, applies a referral code from the start payload
// and greets the user with their share link.
func (f *Flow) Start(ctx context.Context, who Who, payload string) Response {
	u, created, err := f.referrals.EnsureUser(ctx, who.TelegramID, who.Username)
	if err != nil {
		return f.fail(ctx, "start.ensure", err)
	}
	code, _ := referral.ParseStartPayload(payload)
	if _, err := f.referrals.ResolveReferral(ctx, u, code); err != nil {
		return f.fail(ctx, "start.referral", err)
	}

	link := referral.Link(f.botUsername, u.ReferralCode)
	var b strings.Builder
	if created {
		b.WriteString("Welcome")
		if who.FirstName != "" {
			b.WriteString(", " + who.FirstName)
		}
		b.WriteString("!\n\n")
	} else {
		b.WriteString("Welcome back! You already have an account.\n\n")
	}
	b.WriteString("Your referral link:\n" + link + "\n\n")
	b.WriteString("Share it with friends and see them in /my_referrals.\nUse /menu to fill in your data.")
	return say(b.String())
}

// Menu renders the action list.
func (f *Flow) Menu() Response {
	return Response{Replies: []Reply{{
		Text: msgMenu,
		Buttons: [][]Button{
			{{Text: "Add data", Unique: CbAdd}},
			{{Text: "Edit data", Unique: CbEdit}},
			{{Text: "Show data", Unique: CbShow}},
			{{Text: "Delete data", Unique: CbDelete}},
			{{Text: "My referrals", Unique: CbReferrals}},
		},
	}}}
}

// Add opens a fresh form session, replacing any session in progress.
func (f *Flow) Add(ctx context.Context, who Who) Response {
	if _, _, err := f.referrals.EnsureUser(ctx, who.TelegramID, who.Username); err != nil {
		return f.fail(ctx, "form.add", err)
	}
	s, p := f.machine.Start(form.ModeAdd, users.Profile{})
	f.sessions.Put(who.ChatID, s)
	logger.Info(ctx, logger.CompForms, "form.start",
		slog.String("status", "ok"),
		slog.String("form_mode", string(form.ModeAdd)),
	)
	return Response{Replies: []Reply{f.prompt(p)}}
}

// Edit opens an edit session over the stored profile. Without stored data
// it only replies with guidance.
func (f *Flow) Edit(ctx context.Context, who Who) Response {
	u, err := f.profiles.GetByTelegramID(ctx, who.TelegramID)
	if errors.Is(err, users.ErrNotFound) {
		return say(msgNoEditData)
	}
	if err != nil {
		return f.fail(ctx, "form.edit", err)
	}
	if u.Profile.Empty() {
		return say(msgNoEditData)
	}
	s, p := f.machine.Start(form.ModeEdit, u.Profile)
	f.sessions.Put(who.ChatID, s)
	logger.Info(ctx, logger.CompForms, "form.start",
		slog.String("status", "ok"),
		slog.String("form_mode", string(form.ModeEdit)),
	)
	return Response{Replies: []Reply{f.prompt(p)}}
}

// Show renders the stored profile.
func (f *Flow) Show(ctx context.Context, who Who) Response {
	u, err := f.profiles.GetByTelegramID(ctx, who.TelegramID)
	if errors.Is(err, users.ErrNotFound) {
		return say(msgNoAccount)
	}
	if err != nil {
		return f.fail(ctx, "profile.show", err)
	}
	return say(f.machine.Render(u.Profile))
}

// Delete wipes the profile fields and drops any open form session.
// Identity and referral linkage are kept.
func (f *Flow) Delete(ctx context.Context, who Who) Response {
	err := f.profiles.ClearProfile(ctx, who.TelegramID)
	if errors.Is(err, users.ErrNotFound) {
		return say(msgNoAccount)
	}
	if err != nil {
		return f.fail(ctx, "profile.delete", err)
	}
	f.sessions.Delete(who.ChatID)
	return say(msgDeleted)
}

// Referrals lists the users invited by the sender, one button each.
func (f *Flow) Referrals(ctx context.Context, who Who) Response {
	u, err := f.profiles.GetByTelegramID(ctx, who.TelegramID)
	if errors.Is(err, users.ErrNotFound) {
		return say(msgNoAccount)
	}
	if err != nil {
		return f.fail(ctx, "referrals.list", err)
	}
	list, err := f.referrals.List(ctx, u.ID)
	if err != nil {
		return f.fail(ctx, "referrals.list", err)
	}
	if len(list) == 0 {
		return say(msgNoReferrals)
	}
	rows := make([][]Button, 0, len(list))
	for _, e := range list {
		label := e.User.DisplayName()
		if e.Depth > 1 {
			label = strings.Repeat("  ", e.Depth-2) + "↳ " + label
		}
		rows = append(rows, []Button{{
			Text:   label,
			Unique: CbReferral,
			Data:   strconv.FormatInt(e.User.ID, 10),
		}})
	}
	return Response{Replies: []Reply{{
		Text:    fmt.Sprintf(referralsHeading, len(list)),
		Buttons: rows,
	}}}
}

// Referral shows one user's name and share link.
func (f *Flow) Referral(ctx context.Context, payload string) Response {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return Response{Alert: msgUnknownUser}
	}
	u, err := f.profiles.GetByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return Response{Alert: msgUnknownUser}
	}
	if err != nil {
		return f.fail(ctx, "referrals.detail", err)
	}
	return say(u.DisplayName() + ":\n" + referral.Link(f.botUsername, u.ReferralCode))
}

// Text feeds a message into the chat's form session. Without a session
// it does nothing.
func (f *Flow) Text(ctx context.Context, who Who, text string) Response {
	s, ok := f.sessions.Get(who.ChatID)
	if !ok {
		return Response{}
	}
	next, res := f.machine.Text(s, text)
	return f.apply(ctx, who, s, next, res)
}

// Choice feeds a button press into the chat's form session. Without a
// session, or for a button of another step, it does nothing.
func (f *Flow) Choice(ctx context.Context, who Who, field users.Field, payload string) Response {
	s, ok := f.sessions.Get(who.ChatID)
	if !ok {
		logger.Debug(ctx, logger.CompForms, "form.choice",
			slog.String("status", "skip"),
			slog.String("outcome", "ignored"),
			slog.String("reason", "no_session"),
		)
		return Response{}
	}
	next, res := f.machine.Choice(s, field, payload)
	return f.apply(ctx, who, s, next, res)
}

func (f *Flow) apply(ctx context.Context, who Who, prev, next form.Session, res form.Result) Response {
	attrs := []slog.Attr{
		slog.String("form_mode", string(prev.Mode)),
		slog.Int("step", prev.Step),
		slog.String("result", res.Kind.String()),
	}
	switch res.Kind {
	case form.Advanced:
		f.sessions.Put(who.ChatID, next)
		return Response{Replies: []Reply{f.prompt(res.Prompt)}}

	case form.Rejected:
		logger.Debug(ctx, logger.CompForms, "form.input", append(attrs, slog.String("status", "rejected"))...)
		return Response{Replies: []Reply{f.prompt(res.Prompt)}}

	case form.Completed:
		f.sessions.Delete(who.ChatID)
		if err := f.profiles.UpdateProfile(ctx, who.TelegramID, res.Profile); err != nil {
			return f.fail(ctx, "form.save", err)
		}
		logger.Info(ctx, logger.CompForms, "form.save", append(attrs, slog.String("status", "ok"))...)
		return say(msgSaved)

	case form.Aborted:
		f.sessions.Delete(who.ChatID)
		logger.Warn(ctx, logger.CompForms, "form.abort", append(attrs, slog.String("status", "fail"))...)
		return say(msgSessionEnded)
	}
	logger.Debug(ctx, logger.CompForms, "form.input", append(attrs, slog.String("status", "skip"), slog.String("outcome", "ignored"))...)
	return Response{}
}

func (f *Flow) prompt(p form.Prompt) Reply {
	r := Reply{Text: p.Text}
	for i, c := range p.Choices {
		r.Buttons = append(r.Buttons, []Button{{Text: c, Unique: string(p.Field), Data: strconv.Itoa(i)}})
	}
	if p.Keep {
		r.Buttons = append(r.Buttons, []Button{{Text: msgKeepCurrent, Unique: string(p.Field), Data: form.KeepPayload}})
	}
	return r
}
