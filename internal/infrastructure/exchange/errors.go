package exchange

import (
	"errors"
	"fmt"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shiki2014/binan/internal/domain"
)

// CodeWouldTrigger is returned for a stop price on the wrong side of the mark.
const CodeWouldTrigger int64 = -2021

// DefaultAgreementCode is the rejection code for symbols that need a signed agreement.
const DefaultAgreementCode int64 = -4411

// APIError is an exchange rejection with its numeric code. It unwraps to the
// matching domain error so callers can use errors.Is without knowing codes.
type APIError struct {
	Code    int64
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// translate maps SDK errors into *APIError. Anything else is returned as is.
func translate(err error, agreementCode int64) error {
	var raw *common.APIError
	if !errors.As(err, &raw) {
		return err
	}
	out := &APIError{Code: raw.Code, Message: raw.Message}
	switch raw.Code {
	case CodeWouldTrigger:
		out.kind = domain.ErrWouldTrigger
	case agreementCode:
		out.kind = domain.ErrAgreementRequired
	}
	return out
}
