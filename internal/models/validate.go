package models

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// FieldErrors maps a form field to the message shown next to it. These
// checks are advisory; the backend remains the source of truth.
type FieldErrors map[string]string

// Error joins the messages in field order so FieldErrors can travel as an error
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f + ": " + e[f]
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when there are no field errors
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidateTask checks the fields a task needs before it is submitted
func ValidateTask(t Task) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(t.Title) == "" {
		errs["title"] = "Title is required"
	}
	if t.ProjectID == 0 {
		errs["project"] = "Project is required"
	}
	if t.AssigneeID == 0 {
		errs["assignee"] = "Assignee is required"
	}
	return errs
}

// ValidateUser checks a user form. On update (creating == false) an empty
// password is allowed and means "keep the current one".
func ValidateUser(u User, creating bool) FieldErrors {
	errs := FieldErrors{}
	if n := utf8.RuneCountInString(u.Username); n < 3 || n > 15 {
		errs["username"] = "Username is required (3-15 characters)"
	}
	if n := utf8.RuneCountInString(u.FullName); n == 0 || n > 40 {
		errs["fullName"] = "Full Name is required (max 40 characters)"
	}
	if !plausibleEmail(u.Email) {
		errs["email"] = "Please enter a valid email (e.g., user@example.com)"
	}
	n := utf8.RuneCountInString(u.Password)
	switch {
	case creating && (n < 6 || n > 20):
		errs["password"] = "Password is required (6-20 characters)"
	case !creating && n > 0 && (n < 6 || n > 20):
		errs["password"] = "Password must be 6-20 characters"
	}
	if u.Role == "" {
		errs["role"] = "Role is required"
	}
	return errs
}

// ValidateProject checks the fields a project needs before it is submitted
func ValidateProject(p Project) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(p.Name) == "" {
		errs["name"] = "Name is required"
	}
	if p.StartDate == nil {
		errs["startDate"] = "Start date is required"
	}
	if p.OwnerID == 0 {
		errs["owner"] = "Owner is required"
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		errs["endDate"] = "End date must not be before start date"
	}
	return errs
}

func plausibleEmail(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > 40 {
		return false
	}
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}
