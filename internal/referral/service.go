// Package referral creates bot accounts, hands out referral codes and links
// invitees to the user who invited them.
package referral

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/format"
	"github.com/m3rciful/referralbot/internal/users"
)

const (
	// StartPrefix marks a referral code in the /start payload.
	StartPrefix = "ref_"

	codeBytes    = 4
	codeAttempts = 3
)

// Mode selects how referrals are listed.
type Mode string

const (
	// ModeFlat lists direct referrals only.
	ModeFlat Mode = "flat"
	// ModeTree expands referrals of referrals up to the configured depth.
	ModeTree Mode = "tree"
)

// Outcome is the result of applying a referral code to a user.
type Outcome string

const (
	Attached        Outcome = "attached"
	NotFound        Outcome = "not_found"
	SelfReferral    Outcome = "self_referral"
	AlreadyReferred Outcome = "already_referred"
	NoCode          Outcome = "no_code"
)

// Store is the subset of the users repository the service needs.
type Store interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	GetByReferralCode(ctx context.Context, code string) (*users.User, error)
	Insert(ctx context.Context, telegramID int64, username *string, code string) (*users.User, error)
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)
	ListByReferrer(ctx context.Context, referrerID int64) ([]users.User, error)
}

// Options configure listing.
type Options struct {
	Mode     Mode
	MaxDepth int
}

// Service implements account creation and the referral graph.
type Service struct {
	store   Store
	opts    Options
	newCode func() (string, error)
}

// NewService returns a Service. MaxDepth below 1 means 1.
func NewService(store Store, opts Options) *Service {
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeFlat
	}
	return &Service{store: store, opts: opts, newCode: GenerateCode}
}

// GenerateCode returns 8 lowercase hex characters from crypto/rand.
func GenerateCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("referral: generate code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// EnsureUser returns the account of telegramID, creating it with a fresh
// referral code on first contact. created reports whether this call made it.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, displayName string) (u *users.User, created bool, err error) {
	u, err = s.store.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, false, err
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, false, err
	}
	u, err = s.store.Insert(ctx, telegramID, format.OptionalString(displayName), code)
	if err != nil {
		return nil, false, err
	}
	created = u.ReferralCode == code
	logger.Info(ctx, logger.CompReferrals, "referral.account",
		slog.String("status", "ok"),
		slog.Bool("created", created),
	)
	return u, created, nil
}

// uniqueCode draws codes until one is unused; collisions are practically never hit.
func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	var code string
	for i := 0; i < codeAttempts; i++ {
		c, err := s.newCode()
		if err != nil {
			return "", err
		}
		code = c
		_, err = s.store.GetByReferralCode(ctx, c)
		if errors.Is(err, users.ErrNotFound) {
			return c, nil
		}
		if err != nil {
			return "", err
		}
	}
	return code, nil
}

// ResolveReferral attaches u to the owner of code when u has no referrer yet
// and the owner is not u itself. Unknown codes are reported, never an error.
// On Attached, u.ReferrerID is updated in place.
func (s *Service) ResolveReferral(ctx context.Context, u *users.User, code string) (Outcome, error) {
	out, referrerID, err := s.resolve(ctx, u, strings.TrimSpace(code))
	if err != nil {
		return "", err
	}
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("referral_outcome", string(out)),
	}
	if referrerID != 0 {
		attrs = append(attrs, slog.Int64("referrer_id", referrerID))
	}
	logger.Info(ctx, logger.CompReferrals, "referral.resolve", attrs...)
	return out, nil
}

func (s *Service) resolve(ctx context.Context, u *users.User, code string) (Outcome, int64, error) {
	if code == "" {
		return NoCode, 0, nil
	}
	owner, err := s.store.GetByReferralCode(ctx, code)
	if errors.Is(err, users.ErrNotFound) {
		return NotFound, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	if owner.ID == u.ID {
		return SelfReferral, owner.ID, nil
	}
	if u.ReferrerID != nil {
		return AlreadyReferred, owner.ID, nil
	}
	changed, err := s.store.SetReferrer(ctx, u.ID, owner.ID)
	if err != nil {
		return "", 0, err
	}
	if !changed {
		return AlreadyReferred, owner.ID, nil
	}
	id := owner.ID
	u.ReferrerID = &id
	return Attached, owner.ID, nil
}

// ListDirect returns the users invited by userID in store order.
func (s *Service) ListDirect(ctx context.Context, userID int64) ([]users.User, error) {
	return s.store.ListByReferrer(ctx, userID)
}

// Entry is one line of a referral listing. Depth 1 is a direct referral.
type Entry struct {
	User  users.User
	Depth int
}

// Tree lists referrals depth first, expanding at most MaxDepth levels.
// A user appears at most once even if the graph contains a cycle.
func (s *Service) Tree(ctx context.Context, userID int64) ([]Entry, error) {
	seen := map[int64]bool{userID: true}
	var out []Entry
	var walk func(id int64, depth int) error
	walk = func(id int64, depth int) error {
		if depth > s.opts.MaxDepth {
			return nil
		}
		children, err := s.store.ListByReferrer(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, Entry{User: c, Depth: depth})
			if err := walk(c.ID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(userID, 1); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns direct referrals in flat mode and the bounded tree in tree mode.
func (s *Service) List(ctx context.Context, userID int64) ([]Entry, error) {
	if s.opts.Mode == ModeTree {
		return s.Tree(ctx, userID)
	}
	direct, err := s.ListDirect(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(direct))
	for i, u := range direct {
		out[i] = Entry{User: u, Depth: 1}
	}
	return out, nil
}

// ParseStartPayload extracts the referral code from a /start payload such as "ref_1a2b3c4d".
func ParseStartPayload(payload string) (string, bool) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return "", false
	}
	code, ok := strings.CutPrefix(fields[0], StartPrefix)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// Link builds the shareable deep link for a referral code.
func Link(botUsername, code string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + StartPrefix + code
}
