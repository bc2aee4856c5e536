package usecase

import "errors"

// ドメインのエラー種別。
// usecaseはHTTPステータスを知らない（変換はhandler側）。
type ErrorKind int

const (
	KindInvalidArgument ErrorKind = iota + 1
	KindNotFound
	KindInsufficientStock
	KindConflict
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewInvalidArgument(message string) error {
	return &DomainError{Kind: KindInvalidArgument, Message: message}
}

func NewNotFound(message string) error {
	return &DomainError{Kind: KindNotFound, Message: message}
}

func NewInsufficientStock(message string) error {
	return &DomainError{Kind: KindInsufficientStock, Message: message}
}

func NewConflict(message string) error {
	return &DomainError{Kind: KindConflict, Message: message}
}

func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	ok := errors.As(err, &de)
	return de, ok
}
