package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard-cli/internal/api"
	"taskboard-cli/internal/cache"
)

var errNotLoggedIn = errors.New("not logged in; run `taskboard login`")

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func errUsage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// describe turns an error into the line printed on stderr.
func describe(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, cache.ErrSessionExpired):
		return "session expired, please log in again (`taskboard login`)"
	case errors.Is(err, cache.ErrNotConfirmed):
		return "refusing to delete without --yes"
	}
	return err.Error()
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), kind+"-"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errUsage("invalid %s id: %q", kind, s)
	}
	return id, nil
}
