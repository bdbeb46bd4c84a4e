package services

import (
	"strings"

	apperrors "moveflow_server/errors"
)

// sessionKeySeparator joins the two sorted participant ids. Ids containing
// the separator are rejected, so the key cannot collide across different
// pairs.
const sessionKeySeparator = "#"

// SessionKeyFor derives the canonical session id for an unordered pair of
// participants: the two ids sorted lexicographically and joined with a
// fixed separator, so SessionKeyFor(a, b) == SessionKeyFor(b, a). Pure
// function, no I/O.
func SessionKeyFor(idA, idB string) (string, error) {
	if strings.TrimSpace(idA) == "" || strings.TrimSpace(idB) == "" {
		return "", apperrors.New(apperrors.KindInvalidArgument, "participant ids must be non-empty")
	}
	if idA == idB {
		return "", apperrors.New(apperrors.KindInvalidArgument, "cannot open a session with yourself")
	}
	if strings.Contains(idA, sessionKeySeparator) || strings.Contains(idB, sessionKeySeparator) {
		return "", apperrors.New(apperrors.KindInvalidArgument, "participant ids must not contain '"+sessionKeySeparator+"'")
	}

	if idA > idB {
		idA, idB = idB, idA
	}
	return idA + sessionKeySeparator + idB, nil
}
