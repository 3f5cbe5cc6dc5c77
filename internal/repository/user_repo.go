package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

type UserRepository struct {
	store datastore.Datastore
}

func NewUserRepository(store datastore.Datastore) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) error {
	if _, err := r.FindByUsername(ctx, user.Username); err == nil {
		return model.ErrUserAlreadyExists
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if _, err := r.store.Add(ctx, datastore.CollectionUsers, user.ID, raw); err != nil {
		return storeErr(fmt.Errorf("create user: %w", err), model.ErrUserNotFound)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	raw, err := r.store.GetByID(ctx, datastore.CollectionUsers, id)
	if err != nil {
		return model.User{}, storeErr(err, model.ErrUserNotFound)
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return model.User{}, err
	}

	user, found := lo.Find(users, func(u model.User) bool {
		return strings.EqualFold(u.Username, strings.TrimSpace(username))
	})
	if !found {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	raws, err := r.store.GetAll(ctx, datastore.CollectionUsers)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list users: %w", err), model.ErrUserNotFound)
	}

	users := make([]model.User, 0, len(raws))
	for _, raw := range raws {
		var user model.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}
