package service

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrNoRedirectURL       = errors.New("payment provider returned no redirect url")
	ErrMissingToken        = errors.New("missing checkout session id")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrMixedCurrency       = errors.New("cart contains more than one currency")
)
