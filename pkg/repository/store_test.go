package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema. Tests
// that need Postgres are skipped when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping repository test - TEST_DATABASE_URL not set")
	}

	db, err := Open(url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func insertUser(t *testing.T, users *UsersRepository, name string) *domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:            uuid.New(),
		Email:         name + "-" + uuid.NewString()[:8] + "@example.com",
		FullName:      name,
		PasswordHash:  "hash",
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func TestUsersRepository_Postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUsersRepository(db)

	user := insertUser(t, users, "alice")

	dup := *user
	dup.ID = uuid.New()
	if err := users.Create(ctx, &dup); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("Create() duplicate email error = %v, want %v", err, domain.ErrUserAlreadyExists)
	}

	user.OTP = &domain.OneTimeCode{Secret: "SECRET", Counter: 3, ExpiresAt: time.Now().Add(time.Minute)}
	if err := users.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := users.GetByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.OTP == nil || got.OTP.Counter != 3 || got.OTP.Secret != "SECRET" {
		t.Errorf("OTP = %+v, want secret SECRET counter 3", got.OTP)
	}

	if err := users.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := users.GetByID(ctx, user.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByID() after delete error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestStore_PostgresMembershipFlow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUsersRepository(db)
	svc := mess.NewService(NewStore(db), mess.Config{})

	admin := insertUser(t, users, "admin")
	member := insertUser(t, users, "member")

	created, err := svc.CreateMess(ctx, admin.ID, mess.CreateMessInput{Name: "Test Mess", Address: "123 Road"})
	if err != nil {
		t.Fatalf("CreateMess() error = %v", err)
	}
	found, err := svc.SearchMess(ctx, created.IdentifierCode)
	if err != nil || found.ID != created.ID {
		t.Fatalf("SearchMess() = %+v, %v, want mess %v", found, err, created.ID)
	}

	joined, err := svc.RequestToJoin(ctx, member.ID, created.ID)
	if err != nil {
		t.Fatalf("RequestToJoin() error = %v", err)
	}
	if _, err := svc.RequestToJoin(ctx, member.ID, created.ID); !errors.Is(err, domain.ErrDuplicatePending) {
		t.Errorf("second RequestToJoin() error = %v, want %v", err, domain.ErrDuplicatePending)
	}

	if _, err := svc.AcceptRequest(ctx, admin.ID, joined.RequestID); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	if _, err := svc.AcceptRequest(ctx, admin.ID, joined.RequestID); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("second AcceptRequest() error = %v, want %v", err, domain.ErrRequestNotFound)
	}

	stored, _ := users.GetByID(ctx, member.ID)
	if stored.CurrentMessID == nil || *stored.CurrentMessID != created.ID {
		t.Errorf("CurrentMessID = %v, want %v", stored.CurrentMessID, created.ID)
	}
	rec, err := NewMembersRepository(db).GetByUserAndMess(ctx, member.ID, created.ID)
	if err != nil || !rec.IsActive {
		t.Errorf("member record = %+v, %v, want active", rec, err)
	}

	if err := svc.LeaveMess(ctx, member.ID); err != nil {
		t.Fatalf("LeaveMess() error = %v", err)
	}
	rejoin, err := svc.RequestToJoin(ctx, member.ID, created.ID)
	if err != nil {
		t.Fatalf("RequestToJoin() after leaving error = %v", err)
	}
	if _, err := svc.AcceptRequest(ctx, admin.ID, rejoin.RequestID); err != nil {
		t.Fatalf("AcceptRequest() after leaving error = %v", err)
	}

	m, err := NewMessesRepository(db).GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(m.Members) != 2 {
		t.Errorf("member entries = %d, want 2 (rejoin reactivates)", len(m.Members))
	}
}

func TestStore_PostgresConcurrentAccepts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUsersRepository(db)
	svc := mess.NewService(NewStore(db), mess.Config{})

	admin := insertUser(t, users, "admin")
	created, err := svc.CreateMess(ctx, admin.ID, mess.CreateMessInput{Name: "Busy Mess", Address: "1 Road"})
	if err != nil {
		t.Fatalf("CreateMess() error = %v", err)
	}

	const n = 5
	requests := make([]uuid.UUID, n)
	for i := range requests {
		u := insertUser(t, users, "member")
		res, err := svc.RequestToJoin(ctx, u.ID, created.ID)
		if err != nil {
			t.Fatalf("RequestToJoin() error = %v", err)
		}
		requests[i] = res.RequestID
	}

	var wg sync.WaitGroup
	for _, id := range requests {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := svc.AcceptRequest(ctx, admin.ID, id); err != nil {
				t.Errorf("AcceptRequest(%v) error = %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	m, err := NewMessesRepository(db).GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got := len(m.ActiveMembers()); got != n+1 {
		t.Errorf("active members = %d, want %d (no lost approvals)", got, n+1)
	}
}
