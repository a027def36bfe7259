package auctionerrors

import "errors"

// Kind classifies an error so the transport can tell failure classes apart
// without knowing every sentinel.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDuplicate
	KindStateConflict
	KindInsufficientFunds
	KindRateLimited
	KindInvalidInput
	KindUnauthorized
	KindIO
)

var kindNames = map[Kind]string{
	KindUnknown:           "Unknown",
	KindNotFound:          "NotFound",
	KindDuplicate:         "Duplicate",
	KindStateConflict:     "StateConflict",
	KindInsufficientFunds: "InsufficientFunds",
	KindRateLimited:       "RateLimited",
	KindInvalidInput:      "InvalidInput",
	KindUnauthorized:      "Unauthorized",
	KindIO:                "IOError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Repository-level errors
var (
	ErrUserNotFound      = newError(KindNotFound, "user not found")
	ErrItemNotFound      = newError(KindNotFound, "item not found")
	ErrDuplicateUsername = newError(KindDuplicate, "username already exists")
	ErrInsufficientFunds = newError(KindInsufficientFunds, "insufficient funds")
	ErrBalanceOverflow   = newError(KindInvalidInput, "balance limit exceeded")
	ErrIO                = newError(KindIO, "storage i/o failure")
	ErrCorruptRecord     = newError(KindIO, "corrupt record")
)

// business logic errors
var (
	ErrInvalidInput        = newError(KindInvalidInput, "invalid input")
	ErrInvalidCredentials  = newError(KindUnauthorized, "invalid username or password")
	ErrWrongOldPassword    = newError(KindUnauthorized, "old password does not match")
	ErrWrongSecurityAnswer = newError(KindUnauthorized, "security answer does not match")
	ErrSelfBid             = newError(KindStateConflict, "sellers cannot bid on their own items")
	ErrAuctionEnded        = newError(KindStateConflict, "auction has ended")
	ErrBidTooLow           = newError(KindStateConflict, "bid amount too low")
	ErrCooldownActive      = newError(KindRateLimited, "bidding cooldown active")
	ErrNotActive           = newError(KindStateConflict, "auction is not active")
	ErrNotHighestBidder    = newError(KindStateConflict, "only the highest bidder can withdraw")
	ErrNotSeller           = newError(KindStateConflict, "only the seller can close this auction")
	ErrAlreadyClosed       = newError(KindStateConflict, "auction already closed")
)

// session errors
var (
	ErrAlreadyLoggedIn = newError(KindStateConflict, "user already logged in")
	ErrServerFull      = newError(KindStateConflict, "session table full")
	ErrNoSession       = newError(KindUnauthorized, "no active session")
)
