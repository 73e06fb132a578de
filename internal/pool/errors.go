package pool

import "errors"

var (
	// ErrPairExists is returned when creating a pool for a pair that already has one.
	ErrPairExists = errors.New("pool: pair already exists")
	// ErrPairNotFound is returned when an operation names a pair with no pool.
	ErrPairNotFound = errors.New("pool: pair not found")
	// ErrIdenticalAssets is returned when both assets of a pair are the same.
	ErrIdenticalAssets = errors.New("pool: identical assets")
	// ErrInvalidAsset is returned when an asset is not one of the pool's pair.
	ErrInvalidAsset = errors.New("pool: asset not in pair")
	// ErrDeadlineExpired is returned when the current time is past the caller's deadline.
	ErrDeadlineExpired = errors.New("pool: deadline expired")
	// ErrReentrantCall is returned when an operation enters a pool whose lock is held.
	ErrReentrantCall = errors.New("pool: reentrant call")
	// ErrInsufficientInitialLiquidity is returned when a bootstrap deposit would
	// mint no more than the permanently locked share minimum.
	ErrInsufficientInitialLiquidity = errors.New("pool: insufficient initial liquidity")
	// ErrInsufficientShares is returned when a caller burns more shares than it holds.
	ErrInsufficientShares = errors.New("pool: insufficient shares")
	// ErrSlippageExceeded is returned when an actual amount falls below the
	// caller-supplied minimum.
	ErrSlippageExceeded = errors.New("pool: slippage exceeded")
	// ErrInvariantViolated is returned when a swap would decrease the
	// constant product of the reserves.
	ErrInvariantViolated = errors.New("pool: constant product decreased")
	// ErrBorrowerNotApproved is returned when a flash borrower is not allow-listed.
	ErrBorrowerNotApproved = errors.New("pool: borrower not approved")
	// ErrAmountTooLarge is returned when a flash loan exceeds the size cap.
	ErrAmountTooLarge = errors.New("pool: amount exceeds flash loan cap")
	// ErrLoanNotRepaid is returned when a flash loan's principal plus fee is
	// not back in the pool after the borrower callback.
	ErrLoanNotRepaid = errors.New("pool: loan not repaid")
	// ErrInvalidParams is returned when registry params are out of range.
	ErrInvalidParams = errors.New("pool: invalid params")
)
