package account

import (
	"context"
	"fmt"
	"time"

	"auction-server/internal/auctionerrors"
	"auction-server/internal/events"
	"auction-server/internal/models"
	"auction-server/internal/repository"
	"auction-server/utils"
)

// bcrypt ignores input past 72 bytes
const maxSecretLen = 72

// SessionStore is the part of the session table the service drives.
type SessionStore interface {
	Create(userID int64, tokenID string, ttl time.Duration) (int, error)
	Remove(userID int64) bool
}

// Registration is the input to Register. A zero Role means RoleUser.
type Registration struct {
	Username       string
	Password       string
	Role           models.Role
	InitialBalance int64
	SecurityAnswer string
}

// LoginResult describes the session opened by Login.
type LoginResult struct {
	UserID    int64
	Username  string
	Role      models.Role
	Slot      int
	SessionID string
	ExpiresAt time.Time
}

// AccountService holds the account operations: registration, sessions,
// passwords, balances and transfers.
type AccountService struct {
	users      repository.UserDB
	sessions   SessionStore
	events     events.Emitter
	sessionTTL time.Duration
}

// NewAccountService creates a new AccountService instance
func NewAccountService(users repository.UserDB, sessions SessionStore, emitter events.Emitter, sessionTTL time.Duration) *AccountService {
	if emitter == nil {
		emitter = events.Nop()
	}
	return &AccountService{
		users:      users,
		sessions:   sessions,
		events:     emitter,
		sessionTTL: sessionTTL,
	}
}

// Register validates and stores a new user.
func (s *AccountService) Register(reg Registration) (int64, error) {
	if reg.Role == 0 {
		reg.Role = models.RoleUser
	}
	if err := validateRegistration(reg); err != nil {
		return 0, err
	}

	id, err := s.users.Register(reg.Username, reg.Password, reg.Role, reg.InitialBalance, reg.SecurityAnswer)
	if err != nil {
		return 0, fmt.Errorf("service: failed to register %q: %w", reg.Username, err)
	}

	s.events.Emit(context.Background(), events.UserRegisteredEvent{
		UserID:         id,
		Username:       reg.Username,
		Role:           int32(reg.Role),
		InitialBalance: reg.InitialBalance,
	})
	return id, nil
}

func validateRegistration(reg Registration) error {
	switch {
	case !repository.ValidUsername(reg.Username):
		return fmt.Errorf("service: %w - username must be 1..%d bytes without control characters", auctionerrors.ErrInvalidInput, repository.UsernameWidth-1)
	case reg.Password == "" || len(reg.Password) > maxSecretLen:
		return fmt.Errorf("service: %w - password must be 1..%d bytes", auctionerrors.ErrInvalidInput, maxSecretLen)
	case reg.SecurityAnswer == "" || len(reg.SecurityAnswer) > maxSecretLen:
		return fmt.Errorf("service: %w - security answer must be 1..%d bytes", auctionerrors.ErrInvalidInput, maxSecretLen)
	case !reg.Role.Valid():
		return fmt.Errorf("service: %w - unknown role %d", auctionerrors.ErrInvalidInput, reg.Role)
	case reg.InitialBalance < 0 || reg.InitialBalance > models.MaxAmount:
		return fmt.Errorf("service: %w - initial balance must be 0..%d", auctionerrors.ErrInvalidInput, models.MaxAmount)
	}
	return nil
}

// Login authenticates and claims a session slot. A user can hold only one
// session at a time.
func (s *AccountService) Login(username, password string) (LoginResult, error) {
	id, err := s.users.Authenticate(username, password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("service: login %q: %w", username, err)
	}

	user, err := s.users.GetUser(id)
	if err != nil {
		return LoginResult{}, fmt.Errorf("service: login %q: %w", username, err)
	}

	sessionID := utils.GenerateID()
	slot, err := s.sessions.Create(id, sessionID, s.sessionTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("service: login %q: %w", username, err)
	}

	s.events.Emit(context.Background(), events.UserLoggedInEvent{UserID: id, Slot: slot})
	return LoginResult{
		UserID:    id,
		Username:  user.Username,
		Role:      user.Role,
		Slot:      slot,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}, nil
}

// Logout frees the user's session slot.
func (s *AccountService) Logout(userID int64) error {
	if !s.sessions.Remove(userID) {
		return fmt.Errorf("service: logout user %d: %w", userID, auctionerrors.ErrNoSession)
	}
	s.events.Emit(context.Background(), events.UserLoggedOutEvent{UserID: userID})
	return nil
}

func (s *AccountService) Balance(userID int64) (int64, error) {
	balance, err := s.users.GetBalance(userID)
	if err != nil {
		return 0, fmt.Errorf("service: balance of user %d: %w", userID, err)
	}
	return balance, nil
}

// ResetPassword changes the password of a logged-in user.
func (s *AccountService) ResetPassword(userID int64, oldPassword, newPassword string) error {
	if newPassword == "" || len(newPassword) > maxSecretLen {
		return fmt.Errorf("service: %w - password must be 1..%d bytes", auctionerrors.ErrInvalidInput, maxSecretLen)
	}
	if err := s.users.ResetPassword(userID, oldPassword, newPassword); err != nil {
		return fmt.Errorf("service: reset password: %w", err)
	}
	s.events.Emit(context.Background(), events.PasswordChangedEvent{UserID: userID, Method: "reset"})
	return nil
}

// ForgotPassword changes a password using the security answer.
func (s *AccountService) ForgotPassword(username, answer, newPassword string) error {
	if username == "" || newPassword == "" || len(newPassword) > maxSecretLen {
		return fmt.Errorf("service: %w - username and a 1..%d byte password are required", auctionerrors.ErrInvalidInput, maxSecretLen)
	}
	if err := s.users.ForgotPassword(username, answer, newPassword); err != nil {
		return fmt.Errorf("service: forgot password: %w", err)
	}
	s.events.Emit(context.Background(), events.PasswordChangedEvent{Username: username, Method: "security_answer"})
	return nil
}

// Transfer moves funds between two users.
func (s *AccountService) Transfer(fromID, toID, amount int64) error {
	if err := s.users.Transfer(fromID, toID, amount); err != nil {
		return fmt.Errorf("service: transfer: %w", err)
	}
	s.events.Emit(context.Background(), events.FundsTransferredEvent{FromID: fromID, ToID: toID, Amount: amount})
	return nil
}
