package sharing

import "errors"

var (
	// ErrInvalidAssetReference indicates a missing token ledger or custody account.
	ErrInvalidAssetReference = errors.New("sharing: invalid asset reference")

	// ErrOverflow indicates revenue arithmetic left the uint64 range.
	ErrOverflow = errors.New("sharing: arithmetic overflow")

	// ErrTransferFailed indicates the token ledger declined a payout. The claim was rolled back.
	ErrTransferFailed = errors.New("sharing: payout transfer failed")

	// ErrCorruptCheckpoint indicates a persisted checkpoint that does not match the registry.
	ErrCorruptCheckpoint = errors.New("sharing: corrupt checkpoint")
)
