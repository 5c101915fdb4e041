package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	users map[uuid.UUID]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, user := range f.users {
		out = append(out, user)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

func TestCreateUserAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newFakeUserRepo())

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username:  "rig104.ds",
		Email:     "ds104@example.com",
		Password:  "secret123",
		Role:      model.RoleDS,
		RigNumber: 104,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Password == "secret123" {
		t.Fatalf("password stored in plaintext")
	}

	if _, err := svc.Login(ctx, LoginUserRequest{Email: "ds104@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Login(ctx, LoginUserRequest{Email: "ds104@example.com", Password: "wrong"}); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized for a bad password", err)
	}
}

func TestCreateUserRejectsDuplicatesAndUnknownRoles(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newFakeUserRepo())

	base := CreateUserRequest{
		Username: "rig104.ds",
		Email:    "ds104@example.com",
		Password: "secret123",
		Role:     model.RoleDS,
	}
	if _, err := svc.CreateUser(ctx, base); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := base
	dup.Email = "other@example.com"
	if _, err := svc.CreateUser(ctx, dup); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation for a duplicate username", err)
	}

	bad := base
	bad.Username = "someone.else"
	bad.Email = "else@example.com"
	bad.Role = "driller"
	if _, err := svc.CreateUser(ctx, bad); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation for an unknown role", err)
	}
}
