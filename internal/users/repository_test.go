package users_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AlekSi/pointer"

	"github.com/m3rciful/referralbot/internal/users"
	"github.com/m3rciful/referralbot/internal/users/userstest"
)

func newRepo(t *testing.T) *users.Repository {
	t.Helper()
	return users.NewRepository(userstest.Open(t))
}

func TestInsertIsIdempotentPerTelegramID(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	first, err := repo.Insert(ctx, 1001, pointer.ToString("ann"), "aaaa1111")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID == 0 || first.ReferralCode != "aaaa1111" || first.ReferrerID != nil {
		t.Fatalf("unexpected row: %+v", first)
	}

	second, err := repo.Insert(ctx, 1001, nil, "bbbb2222")
	if err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if second.ID != first.ID || second.ReferralCode != "aaaa1111" {
		t.Fatalf("conflict must resolve to the existing row, got %+v", second)
	}
	if _, err := repo.GetByReferralCode(ctx, "bbbb2222"); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("second code must not be stored, err = %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if _, err := repo.GetByTelegramID(ctx, 42); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("GetByTelegramID err = %v", err)
	}
	if _, err := repo.GetByID(ctx, 42); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
}

func TestSetReferrerFirstWins(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	a, _ := repo.Insert(ctx, 1, nil, "code-a")
	b, _ := repo.Insert(ctx, 2, nil, "code-b")
	c, _ := repo.Insert(ctx, 3, nil, "code-c")

	changed, err := repo.SetReferrer(ctx, c.ID, a.ID)
	if err != nil || !changed {
		t.Fatalf("first SetReferrer = %v, %v", changed, err)
	}
	changed, err = repo.SetReferrer(ctx, c.ID, b.ID)
	if err != nil || changed {
		t.Fatalf("second SetReferrer = %v, %v", changed, err)
	}
	got, _ := repo.GetByID(ctx, c.ID)
	if got.ReferrerID == nil || *got.ReferrerID != a.ID {
		t.Fatalf("referrer = %v, want %d", got.ReferrerID, a.ID)
	}
}

func TestSetReferrerRejectsSelf(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	a, _ := repo.Insert(ctx, 1, nil, "code-a")

	changed, err := repo.SetReferrer(ctx, a.ID, a.ID)
	if err != nil || changed {
		t.Fatalf("self SetReferrer = %v, %v", changed, err)
	}
	got, _ := repo.GetByID(ctx, a.ID)
	if got.ReferrerID != nil {
		t.Fatalf("self referral stored: %v", *got.ReferrerID)
	}
}

func TestUpdateAndClearProfile(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	a, _ := repo.Insert(ctx, 1001, nil, "code-a")
	ref, _ := repo.Insert(ctx, 1, nil, "code-r")
	if _, err := repo.SetReferrer(ctx, a.ID, ref.ID); err != nil {
		t.Fatalf("SetReferrer: %v", err)
	}

	var p users.Profile
	for _, f := range users.Fields {
		p.Set(f, "v-"+string(f))
	}
	if err := repo.UpdateProfile(ctx, 1001, p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, _ := repo.GetByTelegramID(ctx, 1001)
	for _, f := range users.Fields {
		if v := got.Get(f); v == nil || *v != "v-"+string(f) {
			t.Fatalf("field %s = %v", f, v)
		}
	}

	if err := repo.ClearProfile(ctx, 1001); err != nil {
		t.Fatalf("ClearProfile: %v", err)
	}
	got, _ = repo.GetByTelegramID(ctx, 1001)
	if !got.Profile.Empty() {
		t.Fatalf("profile not cleared: %+v", got.Profile)
	}
	if got.ReferralCode != "code-a" || got.ReferrerID == nil || *got.ReferrerID != ref.ID {
		t.Fatalf("identity changed by ClearProfile: %+v", got)
	}
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	repo := newRepo(t)
	if err := repo.UpdateProfile(context.Background(), 5, users.Profile{}); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListByReferrer(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	root, _ := repo.Insert(ctx, 1, nil, "root")
	x, _ := repo.Insert(ctx, 2, pointer.ToString("x"), "x")
	y, _ := repo.Insert(ctx, 3, nil, "y")
	_, _ = repo.Insert(ctx, 4, nil, "z")
	for _, id := range []int64{x.ID, y.ID} {
		if _, err := repo.SetReferrer(ctx, id, root.ID); err != nil {
			t.Fatalf("SetReferrer: %v", err)
		}
	}

	list, err := repo.ListByReferrer(ctx, root.ID)
	if err != nil {
		t.Fatalf("ListByReferrer: %v", err)
	}
	if len(list) != 2 || list[0].ID != x.ID || list[1].ID != y.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[0].DisplayName() != "x" || list[1].DisplayName() != "3" {
		t.Fatalf("display names = %q, %q", list[0].DisplayName(), list[1].DisplayName())
	}
}
