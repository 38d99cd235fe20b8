// Package repositorytest provides in-memory repositories for tests.
package repositorytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/model"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
)

// UserRepository is a concurrency-safe in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*model.User

	// Err, when set, is returned by every call.
	Err error
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*model.User)}
}

func (r *UserRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, repository.ErrUserAlreadyExists
		}
	}

	now := time.Now()
	user.ID = bson.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID.Hex()] = clone(user)

	return clone(user), nil
}

func (r *UserRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return clone(u), nil
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	for _, u := range r.users {
		if u.Email == email {
			return clone(u), nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) SetRefreshSession(_ context.Context, id string, session *model.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}

	if session == nil {
		u.RefreshSession = nil
	} else {
		s := *session
		u.RefreshSession = &s
	}
	u.UpdatedAt = time.Now()

	return nil
}

func (r *UserRepository) UpdateSessionAccessToken(_ context.Context, id, refreshToken, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	u, ok := r.users[id]
	if !ok || u.RefreshSession == nil || u.RefreshSession.Token != refreshToken {
		return repository.ErrUserNotFound
	}

	u.RefreshSession.AccessToken = accessToken
	u.UpdatedAt = time.Now()

	return nil
}

// SetErr sets Err under the repository lock.
func (r *UserRepository) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Err = err
}

func clone(u *model.User) *model.User {
	c := *u
	if u.RefreshSession != nil {
		s := *u.RefreshSession
		c.RefreshSession = &s
	}

	return &c
}
