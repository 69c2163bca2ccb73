package orders

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyConfirmed  = errors.New("order already confirmed")
	ErrAddressLimit      = errors.New("address limit reached")
)
