package errors

import "errors"

var (
	ErrUnauthorizedProfileMember = errors.New("caller is not an authorized member of the recipient profile")
	ErrUnauthorizedPoolManager   = errors.New("caller does not hold pool manager authority")
	ErrInvalidRecipientAddress   = errors.New("recipient payout address is required")
	ErrRecipientNotFound         = errors.New("recipient not found")
	ErrRecipientNotAccepted      = errors.New("recipient status is not accepted")
	ErrRecipientAlreadyPaid      = errors.New("recipient payout already executed")
	ErrZeroPayout                = errors.New("computed payout amount is zero")
	ErrRegistrationClosed        = errors.New("registration closed: distribution phase started")
	ErrAmountValueMismatch       = errors.New("submitted native value must equal allocation amount")
	ErrUnexpectedNativeValue     = errors.New("native value must not accompany a non-native allocation")
	ErrInvalidReviewStatus       = errors.New("review status must be accepted or rejected")
	ErrInvalidInput              = errors.New("invalid allocation strategy input")
	ErrInsufficientPoolFunds     = errors.New("pool balance is insufficient for transfer")
	ErrTransferFailed            = errors.New("asset transfer failed")
	ErrUnknownAsset              = errors.New("asset is not configured for the pool")
)
