package petition

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Sentinel validation errors. Handlers match on these with errors.Is and
// map both to a plain 400 without field detail.
var (
	ErrMissingField = errors.New("required field is missing or blank")
	ErrInvalidURL   = errors.New("url is not a valid absolute URL")
)

// checkboxChecked is the value an HTML checkbox submits when ticked.
const checkboxChecked = "on"

// Normalize validates a raw submission and produces the record to
// persist. It is pure given the form and the submission time.
//
// Rules:
//   - name and email must be non-blank after trimming.
//   - title, organisation and comments are trimmed; whitespace-only
//     input collapses to absent.
//   - url is trimmed; a non-empty value must parse as an absolute URL,
//     retried once with an "http://" prefix, and is stored in its
//     canonical string form.
//   - the mailing-list flag is set only by the exact checkbox value.
func Normalize(form SubmissionForm, now time.Time) (Signatory, error) {
	name, err := requireNonBlank("name", form.Name)
	if err != nil {
		return Signatory{}, err
	}
	email, err := requireNonBlank("email", form.Email)
	if err != nil {
		return Signatory{}, err
	}
	rawURL, err := normalizeURL(form.URL)
	if err != nil {
		return Signatory{}, err
	}
	return Signatory{
		Name:             name,
		Email:            email,
		Title:            strings.TrimSpace(form.Title),
		Organisation:     strings.TrimSpace(form.Organisation),
		URL:              rawURL,
		Comment:          strings.TrimSpace(form.Comments),
		MailingListOptIn: form.MailingListOptIn == checkboxChecked,
		CreatedOn:        now.Unix(),
	}, nil
}

func requireNonBlank(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s: %w", field, ErrMissingField)
	}
	return trimmed, nil
}

// normalizeURL returns the canonical absolute form of raw, or "" when
// raw is blank. Scheme-less input like "example.com" is retried with an
// http:// prefix before being rejected.
func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	if u, err := url.Parse(trimmed); err == nil && u.IsAbs() && u.Host != "" {
		return u.String(), nil
	}
	u, err := url.Parse("http://" + trimmed)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidURL)
	}
	return u.String(), nil
}
