package entity

import (
	"errors"
	"strings"
)

var ErrDeliveryModeUnknown = errors.New("account: delivery mode is unknown")

type OTPState int8

const (
	// OTPStateNone mean no passcode is waiting to be verified.
	OTPStateNone OTPState = 0

	// OTPStatePending mean a login issued a passcode that has not been consumed yet.
	OTPStatePending OTPState = 1
)

func (s OTPState) String() string {
	switch s {
	case OTPStatePending:
		return "Pending"
	default:
		return "None"
	}
}

// DeliveryMode decides where a freshly issued passcode goes.
type DeliveryMode int8

const (
	// DeliveryEmail sends the passcode to the account email. Signup requires an email.
	DeliveryEmail DeliveryMode = 0

	// DeliveryInline returns the passcode in the login response. Accounts carry no email.
	DeliveryInline DeliveryMode = 1
)

func (m DeliveryMode) String() string {
	switch m {
	case DeliveryInline:
		return "inline"
	default:
		return "email"
	}
}

func (m DeliveryMode) RequiresEmail() bool {
	return m == DeliveryEmail
}

func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "email":
		return DeliveryEmail, nil
	case "inline":
		return DeliveryInline, nil
	default:
		return DeliveryEmail, ErrDeliveryModeUnknown
	}
}
