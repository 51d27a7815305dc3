package domain

import "strings"

// User is grounded on original_source/database_object3.py's User dataclass:
// systemId, is_active, username, password, is_admin, email.
type User struct {
	ID           string `json:"id"`
	Ver          int64  `json:"-"`
	SystemID     string `json:"systemId"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	PasswordSalt string `json:"passwordSalt"`
	IsAdmin      bool   `json:"isAdmin"`
	IsActive     bool   `json:"isActive"`
	IsSystem     bool   `json:"isSystem"`
	Email        string `json:"email,omitempty"`
}

func (u User) TypeTag() string { return "User" }

// NormalizedUsername returns the casefolded form used for uniqueness
// comparisons, per spec.md §4.3: "username stored casefolded; equality of
// usernames is casefolded".
func (u User) NormalizedUsername() string {
	return strings.ToLower(strings.TrimSpace(u.Username))
}

func (u User) Validate() []error {
	var errs []error
	if strings.TrimSpace(u.Username) == "" {
		errs = append(errs, errField("username", "must not be empty"))
	}
	if strings.TrimSpace(u.SystemID) == "" {
		errs = append(errs, errField("systemId", "must not be empty"))
	}
	if u.PasswordHash == "" {
		errs = append(errs, errField("passwordHash", "must not be empty"))
	}
	return errs
}
