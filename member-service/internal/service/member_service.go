package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/shopgate/member-service/internal/domain"
	"github.com/fjod/shopgate/member-service/internal/repository"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMemberNotActive    = errors.New("member is not active")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStatus      = errors.New("unknown member status")
)

type MemberService struct {
	repo   repository.MemberRepository
	cost   int
	logger zerolog.Logger
}

// NewMemberService hashes passwords with the given bcrypt cost.
func NewMemberService(repo repository.MemberRepository, cost int, logger zerolog.Logger) *MemberService {
	return &MemberService{repo: repo, cost: cost, logger: logger}
}

func (s *MemberService) Register(ctx context.Context, email, password, name string) (*domain.Member, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m := &domain.Member{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Status:       domain.MemberStatusActive,
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("member_id", m.ID).Msg("member registered")
	return m, nil
}

// Login checks the password. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *MemberService) Login(ctx context.Context, email, password string) (*domain.Member, error) {
	m, err := s.repo.GetMemberByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrMemberNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if m.Status != domain.MemberStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotActive, m.Status)
	}
	return m, nil
}

func (s *MemberService) Profile(ctx context.Context, id int64) (*domain.Member, error) {
	return s.repo.GetMemberByID(ctx, id)
}

// Status reports the lower-case status the cart service compares against.
func (s *MemberService) Status(ctx context.Context, id int64) (string, error) {
	m, err := s.repo.GetMemberByID(ctx, id)
	if err != nil {
		return "", err
	}
	return strings.ToLower(m.Status), nil
}

func (s *MemberService) SetStatus(ctx context.Context, id int64, status string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case domain.MemberStatusActive, domain.MemberStatusInactive, domain.MemberStatusSuspended:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.logger.Info().Int64("member_id", id).Str("status", status).Msg("member status changed")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
