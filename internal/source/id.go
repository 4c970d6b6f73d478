package source

import (
	"fmt"
	"strings"
)

// Backend names understood by the application.
const (
	BackendGmail    = "gmail"
	BackendCalendar = "calendar"
)

// MakeID builds a source identifier from a backend name and an account
// name, e.g. MakeID("gmail", "work") == "gmail:work".
func MakeID(backend, account string) string {
	if account == "" {
		account = "default"
	}
	return backend + ":" + account
}

// ParseID splits a source identifier into backend and account.
func ParseID(id string) (backend, account string, err error) {
	backend, account, ok := strings.Cut(id, ":")
	if !ok || backend == "" {
		return "", "", fmt.Errorf("invalid source id %q, want backend:account", id)
	}
	if account == "" {
		account = "default"
	}
	return backend, account, nil
}
