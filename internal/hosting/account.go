package hosting

import (
	"regexp"
	"strings"
)

// loginPattern is GitHub's login grammar.
var loginPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

const profileHost = "github.com/"

// Account is a resolved hosting account.
type Account struct {
	Login string
}

func (a Account) String() string { return a.Login }

// ParseAccount resolves a profile reference to an Account. It accepts a
// profile URL (https://github.com/<login>[/...]), the same without scheme,
// or a bare login.
func ParseAccount(ref string) (Account, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return Account{}, &InvalidReferenceError{Ref: ref, Reason: "empty reference"}
	}

	if i := strings.Index(strings.ToLower(s), profileHost); i >= 0 {
		s = s[i+len(profileHost):]
		if j := strings.IndexAny(s, "/?#"); j >= 0 {
			s = s[:j]
		}
	} else if strings.Contains(s, "://") {
		return Account{}, &InvalidReferenceError{Ref: ref, Reason: "not a github.com profile URL"}
	}
	s = strings.TrimPrefix(s, "@")

	if s == "" {
		return Account{}, &InvalidReferenceError{Ref: ref, Reason: "no account name in reference"}
	}
	if !loginPattern.MatchString(s) {
		return Account{}, &InvalidReferenceError{Ref: ref, Reason: "account name contains invalid characters"}
	}
	return Account{Login: s}, nil
}
