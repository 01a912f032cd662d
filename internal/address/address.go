// Package address splits user supplied locations into a container file and
// a path inside that container.
package address

import "strings"

// Split divides s at the first colon. Without a colon the whole string is
// the container locator and the inner path is empty, meaning the root
// storage.
func Split(s string) (locator, inner string) {
	locator, inner, _ = strings.Cut(s, ":")
	return locator, inner
}
