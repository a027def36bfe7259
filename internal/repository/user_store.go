package repository

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"auction-server/internal/auctionerrors"
	model "auction-server/internal/models"
	"auction-server/internal/recordlock"
	"auction-server/internal/storage"
)

// UnknownUsername is shown for ids that do not resolve to a user.
const UnknownUsername = "Unknown"

// ValidUsername reports whether name fits the username field and reads back
// unchanged. Control characters, NUL included, are rejected.
func ValidUsername(name string) bool {
	if name == "" || len(name) >= UsernameWidth {
		return false
	}
	return strings.IndexFunc(name, unicode.IsControl) < 0
}

// addBalance applies delta, refusing to go below zero or past math.MaxInt64.
func addBalance(balance, delta int64) (int64, error) {
	if delta < 0 && balance+delta < 0 {
		return 0, auctionerrors.ErrInsufficientFunds
	}
	if delta > 0 && balance > math.MaxInt64-delta {
		return 0, auctionerrors.ErrBalanceOverflow
	}
	return balance + delta, nil
}

// UserStore keeps user records in a fixed-length record file. Every call
// locks, reads fresh, mutates and writes in one pass; nothing is cached.
type UserStore struct {
	file     *storage.RecordFile
	hashCost int
	now      func() time.Time
}

// OpenUserStore opens the user file at path. hashCost is the bcrypt cost for
// new digests.
func OpenUserStore(path string, hashCost int) (*UserStore, error) {
	file, err := storage.OpenRecordFile(path, userRecordSize)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	return NewUserStore(file, hashCost), nil
}

// NewUserStore wraps an already opened record file.
func NewUserStore(file *storage.RecordFile, hashCost int) *UserStore {
	if hashCost < bcrypt.MinCost {
		hashCost = bcrypt.DefaultCost
	}
	return &UserStore{file: file, hashCost: hashCost, now: time.Now}
}

func (s *UserStore) Close() error {
	return s.file.Close()
}

// Register appends a new user. The whole file stays exclusively locked from
// the collision scan through the append so ids and usernames stay unique.
func (s *UserStore) Register(username, password string, role model.Role, initialBalance int64, securityAnswer string) (int64, error) {
	if !ValidUsername(username) || !role.Valid() || initialBalance < 0 || initialBalance > model.MaxAmount {
		return 0, fmt.Errorf("register %q: %w", username, auctionerrors.ErrInvalidInput)
	}

	pwHash, err := s.digest(password)
	if err != nil {
		return 0, fmt.Errorf("register %q: password: %w", username, err)
	}
	answerHash, err := s.digest(securityAnswer)
	if err != nil {
		return 0, fmt.Errorf("register %q: security answer: %w", username, err)
	}

	lock := s.file.LockAll(recordlock.Exclusive)
	defer lock.Release()

	err = s.file.Scan(func(_ int64, rec []byte) (bool, error) {
		if decodeUser(rec).Username == username {
			return false, auctionerrors.ErrDuplicateUsername
		}
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", username, err)
	}

	count, err := s.file.Count()
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", username, err)
	}

	user := model.User{
		ID:           count + 1,
		Username:     username,
		PasswordHash: pwHash,
		AnswerHash:   answerHash,
		Role:         role,
		Balance:      initialBalance,
	}
	buf := make([]byte, userRecordSize)
	encodeUser(user, buf)

	id, err := s.file.Append(buf)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", username, err)
	}
	return id, nil
}

// Authenticate returns the id of the user whose name and password match.
func (s *UserStore) Authenticate(username, password string) (int64, error) {
	user, err := s.findByName(username, recordlock.Shared)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrUserNotFound) {
			return 0, auctionerrors.ErrInvalidCredentials
		}
		return 0, fmt.Errorf("authenticate %q: %w", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return 0, auctionerrors.ErrInvalidCredentials
	}
	return user.ID, nil
}

// GetUser reads one user under a shared record lock.
func (s *UserStore) GetUser(id int64) (model.User, error) {
	lock := s.file.LockRecord(recordlock.Shared, id)
	defer lock.Release()

	user, err := s.read(id)
	if err != nil {
		return model.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// Username resolves a display name, falling back to UnknownUsername.
func (s *UserStore) Username(id int64) string {
	if id < 1 {
		return UnknownUsername
	}
	user, err := s.GetUser(id)
	if err != nil {
		return UnknownUsername
	}
	return user.Username
}

func (s *UserStore) GetBalance(id int64) (int64, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return user.Balance, nil
}

// UpdateBalance adds delta to the balance. A debit that would drive the
// balance below zero, or a credit that would overflow it, is rejected
// without writing.
func (s *UserStore) UpdateBalance(id, delta int64) error {
	lock := s.file.LockRecord(recordlock.Exclusive, id)
	defer lock.Release()

	user, err := s.read(id)
	if err != nil {
		return fmt.Errorf("update balance of user %d: %w", id, err)
	}
	balance, err := addBalance(user.Balance, delta)
	if err != nil {
		return fmt.Errorf("update balance of user %d by %d: %w", id, delta, err)
	}
	user.Balance = balance
	if err := s.write(user); err != nil {
		return fmt.Errorf("update balance of user %d: %w", id, err)
	}
	return nil
}

// Transfer moves amount from one user to another. The two record locks are
// taken in ascending id order and released in descending order.
func (s *UserStore) Transfer(from, to, amount int64) error {
	if from == to || amount <= 0 || amount > model.MaxAmount {
		return fmt.Errorf("transfer %d from %d to %d: %w", amount, from, to, auctionerrors.ErrInvalidInput)
	}

	first, second := from, to
	if first > second {
		first, second = second, first
	}
	firstLock := s.file.LockRecord(recordlock.Exclusive, first)
	defer firstLock.Release()
	secondLock := s.file.LockRecord(recordlock.Exclusive, second)
	defer secondLock.Release()

	payer, err := s.read(from)
	if err != nil {
		return fmt.Errorf("transfer from user %d: %w", from, err)
	}
	payee, err := s.read(to)
	if err != nil {
		return fmt.Errorf("transfer to user %d: %w", to, err)
	}
	payerBalance, err := addBalance(payer.Balance, -amount)
	if err != nil {
		return fmt.Errorf("transfer %d from user %d: %w", amount, from, err)
	}
	payeeBalance, err := addBalance(payee.Balance, amount)
	if err != nil {
		return fmt.Errorf("transfer %d to user %d: %w", amount, to, err)
	}

	original := payer
	payer.Balance = payerBalance
	payee.Balance = payeeBalance

	if err := s.write(payer); err != nil {
		return fmt.Errorf("transfer from user %d: %w", from, err)
	}
	if err := s.write(payee); err != nil {
		// put the payer back so the failed transfer moves nothing
		if rbErr := s.write(original); rbErr != nil {
			return fmt.Errorf("transfer to user %d: %w (rollback of user %d failed: %v)", to, err, from, rbErr)
		}
		return fmt.Errorf("transfer to user %d: %w", to, err)
	}
	return nil
}

// SetCooldown blocks the user from bidding for seconds from now. Zero clears
// the cooldown.
func (s *UserStore) SetCooldown(id, seconds int64) error {
	lock := s.file.LockRecord(recordlock.Exclusive, id)
	defer lock.Release()

	user, err := s.read(id)
	if err != nil {
		return fmt.Errorf("set cooldown of user %d: %w", id, err)
	}
	user.CooldownUntil = 0
	if seconds > 0 {
		user.CooldownUntil = s.now().Unix() + seconds
	}
	if err := s.write(user); err != nil {
		return fmt.Errorf("set cooldown of user %d: %w", id, err)
	}
	return nil
}

// GetCooldown returns the remaining cooldown in seconds, 0 if none.
func (s *UserStore) GetCooldown(id int64) (int64, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return 0, fmt.Errorf("get cooldown: %w", err)
	}
	remaining := user.CooldownUntil - s.now().Unix()
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// ResetPassword replaces the password after checking the old one, all under
// one exclusive record lock.
func (s *UserStore) ResetPassword(id int64, oldPassword, newPassword string) error {
	newHash, err := s.digest(newPassword)
	if err != nil {
		return fmt.Errorf("reset password of user %d: %w", id, err)
	}

	lock := s.file.LockRecord(recordlock.Exclusive, id)
	defer lock.Release()

	user, err := s.read(id)
	if err != nil {
		return fmt.Errorf("reset password of user %d: %w", id, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return fmt.Errorf("reset password of user %d: %w", id, auctionerrors.ErrWrongOldPassword)
	}
	user.PasswordHash = newHash
	if err := s.write(user); err != nil {
		return fmt.Errorf("reset password of user %d: %w", id, err)
	}
	return nil
}

// ForgotPassword replaces the password of username when the security answer
// matches. Lookup and overwrite share one exclusive whole-file lock.
func (s *UserStore) ForgotPassword(username, answer, newPassword string) error {
	newHash, err := s.digest(newPassword)
	if err != nil {
		return fmt.Errorf("forgot password for %q: %w", username, err)
	}

	lock := s.file.LockAll(recordlock.Exclusive)
	defer lock.Release()

	user, err := s.scanByName(username)
	if err != nil {
		return fmt.Errorf("forgot password for %q: %w", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.AnswerHash), []byte(answer)) != nil {
		return fmt.Errorf("forgot password for %q: %w", username, auctionerrors.ErrWrongSecurityAnswer)
	}
	user.PasswordHash = newHash
	if err := s.write(user); err != nil {
		return fmt.Errorf("forgot password for %q: %w", username, err)
	}
	return nil
}

// Count returns the number of registered users.
func (s *UserStore) Count() (int64, error) {
	lock := s.file.LockAll(recordlock.Shared)
	defer lock.Release()
	return s.file.Count()
}

// All returns every user in id order.
func (s *UserStore) All() ([]model.User, error) {
	lock := s.file.LockAll(recordlock.Shared)
	defer lock.Release()

	var users []model.User
	err := s.file.Scan(func(_ int64, rec []byte) (bool, error) {
		users = append(users, decodeUser(rec))
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserStore) findByName(username string, mode recordlock.Mode) (model.User, error) {
	lock := s.file.LockAll(mode)
	defer lock.Release()
	return s.scanByName(username)
}

// scanByName expects the caller to hold a whole-file lock.
func (s *UserStore) scanByName(username string) (model.User, error) {
	var found model.User
	ok := false
	err := s.file.Scan(func(_ int64, rec []byte) (bool, error) {
		u := decodeUser(rec)
		if u.Username == username {
			found, ok = u, true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, auctionerrors.ErrUserNotFound
	}
	return found, nil
}

func (s *UserStore) read(id int64) (model.User, error) {
	buf := make([]byte, userRecordSize)
	if err := s.file.ReadRecord(id, buf); err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return model.User{}, auctionerrors.ErrUserNotFound
		}
		return model.User{}, err
	}
	user := decodeUser(buf)
	if user.ID != id {
		return model.User{}, fmt.Errorf("user slot %d holds id %d: %w", id, user.ID, auctionerrors.ErrCorruptRecord)
	}
	return user, nil
}

func (s *UserStore) write(user model.User) error {
	buf := make([]byte, userRecordSize)
	encodeUser(user, buf)
	if err := s.file.WriteRecord(user.ID, buf); err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return auctionerrors.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *UserStore) digest(secret string) (string, error) {
	if secret == "" {
		return "", auctionerrors.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", auctionerrors.ErrInvalidInput
		}
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}
