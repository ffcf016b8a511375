package repository

import (
	"context"
	"errors"

	"github.com/fjod/shopgate/member-service/internal/domain"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MemberRepository interface {
	CreateMember(ctx context.Context, m *domain.Member) error
	GetMemberByID(ctx context.Context, id int64) (*domain.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*domain.Member, error)
	SetStatus(ctx context.Context, id int64, status string) error
}
