package usecase

import (
	"context"
	"errors"
	"strings"

	repo "app/internal/repository"
)

// IdentityResolver は注文の持ち主アカウントを決める。参照のみで、アカウントは作らない。
type IdentityResolver struct {
	users repo.UserRepository
}

func NewIdentityResolver(users repo.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve はログイン済みIDをそのまま返す。未ログインならメール一致で
// 既存アカウントに後付けリンクし、見つからなければnil（純粋なゲスト注文）。
func (r *IdentityResolver) Resolve(ctx context.Context, authenticatedID *int64, email string) (*int64, error) {
	if authenticatedID != nil && *authenticatedID > 0 {
		return authenticatedID, nil
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	u, err := r.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u.ID, nil
}
