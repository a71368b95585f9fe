package cache

import "errors"

var (
	ErrEmptyTitle     = errors.New("title is required")
	ErrNotConfirmed   = errors.New("deletion not confirmed")
	ErrSessionExpired = errors.New("session expired, please log in again")
	ErrNotLoggedIn    = errors.New("not logged in")
)
