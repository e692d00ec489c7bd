package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or the empty string if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrHorizonRequest  = "HORIZON_REQUEST_ERROR"

	ErrWalletNotInstalled = "WALLET_NOT_INSTALLED"
	ErrWalletDeclined     = "WALLET_CONNECTION_DECLINED"
	ErrWalletConnection   = "WALLET_CONNECTION_FAILED"
	ErrWrongNetwork       = "WALLET_WRONG_NETWORK"
	ErrWalletNotConnected = "WALLET_NOT_CONNECTED"

	ErrNetworkUnreachable = "NETWORK_UNREACHABLE"
	ErrBuildTimeout       = "TX_BUILD_TIMEOUT"
	ErrBuildFailed        = "TX_BUILD_FAILED"
	ErrSubmitTimeout      = "TX_SUBMIT_TIMEOUT"
	ErrSubmitFailed       = "TX_SUBMIT_FAILED"

	ErrInsufficientBalance = "INSUFFICIENT_LOYALTY_BALANCE"
	ErrRewardUnavailable   = "REWARD_UNAVAILABLE"
	ErrRewardNotFound      = "REWARD_NOT_FOUND"
	ErrItemNotFound        = "ITEM_NOT_FOUND"
	ErrHistoryRefresh      = "HISTORY_REFRESH_FAILED"
)
