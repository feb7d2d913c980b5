package campusauth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// studentEmail is the institutional contract parsed out of a student
// address: localpart_<branchletters><2-digit-year>@<domain>, e.g.
// john_cse24@gsv.ac.in → branch "cse", graduation year 2024.
type studentEmail struct {
	Email  string
	Branch string
	Year   int
}

var studentEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9.]+_([a-zA-Z]+)(\d{2})@(.+)$`)

// parseStudentEmail validates the address against the configured domain and
// derives branch and graduation year. The two-digit year is interpreted as
// 2000+yy. Returns ErrStudentEmailInvalid on any mismatch.
func parseStudentEmail(rawEmail, domain string) (studentEmail, error) {
	email := strings.TrimSpace(rawEmail)
	if email == "" {
		return studentEmail{}, fmt.Errorf("%w: email is required", ErrValidation)
	}

	m := studentEmailPattern.FindStringSubmatch(email)
	if m == nil || !strings.EqualFold(m[3], domain) {
		return studentEmail{}, fmt.Errorf(
			"%w: expected name_branchYY@%s (e.g. john_cse24@%s)",
			ErrStudentEmailInvalid, domain, domain,
		)
	}

	yy, err := strconv.Atoi(m[2])
	if err != nil {
		return studentEmail{}, fmt.Errorf("%w: graduation year must be numeric", ErrValidation)
	}

	return studentEmail{
		Email:  email,
		Branch: strings.ToLower(m[1]),
		Year:   2000 + yy,
	}, nil
}
