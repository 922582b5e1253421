package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// GiftCardStatus is the lifecycle state of a gift card.
type GiftCardStatus string

const (
	GiftCardActive   GiftCardStatus = "active"
	GiftCardRedeemed GiftCardStatus = "redeemed"
)

var (
	// ErrInvalidGiftCard is returned when a gift card code is unknown.
	ErrInvalidGiftCard = errors.New("invalid gift card code")
	// ErrGiftCardRedeemed is returned when the card has already been fully
	// consumed. Redeemed is terminal.
	ErrGiftCardRedeemed = errors.New("gift card already redeemed")
	// ErrGiftCardConflict is returned when a concurrent redemption consumed
	// the balance first. The instrument is no longer usable for this amount.
	ErrGiftCardConflict = errors.New("gift card redemption conflict")
)

// GiftCard is a stored-value instrument. Balance is monotonically
// non-increasing; the decrement happens as an atomic conditional update at
// the persistence layer, never as a read-then-write from here.
type GiftCard struct {
	ID      string
	Code    string
	Balance decimal.Decimal
	Status  GiftCardStatus
}

// GiftCardRepository provides gift card lookup. The atomic redemption write
// lives with the order transaction, not here.
type GiftCardRepository interface {
	// FindByCode returns the card for the code, or ErrInvalidGiftCard.
	FindByCode(ctx context.Context, code string) (*GiftCard, error)
}

// GiftCardValidator checks that a gift card can contribute to a checkout.
type GiftCardValidator struct {
	repo GiftCardRepository
}

// NewGiftCardValidator creates a GiftCardValidator backed by the repository.
func NewGiftCardValidator(repo GiftCardRepository) *GiftCardValidator {
	return &GiftCardValidator{repo: repo}
}

// Validate looks up the code and checks the card is active with a positive
// balance. The returned balance is advisory: the redemption itself re-checks
// it atomically.
func (v *GiftCardValidator) Validate(ctx context.Context, code string) (*GiftCard, error) {
	gc, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidGiftCard) {
			return nil, ErrInvalidGiftCard
		}
		return nil, errors.Wrap(err, "lookup gift card")
	}
	if gc.Status == GiftCardRedeemed || !gc.Balance.IsPositive() {
		return nil, ErrGiftCardRedeemed
	}
	return gc, nil
}
