package petition

import (
	"context"
	"time"
)

// Signatory is the persisted record for one signature submission.
// Optional fields hold the empty string when absent.
type Signatory struct {
	Name             string
	Email            string
	Title            string
	Organisation     string
	URL              string
	Comment          string
	MailingListOptIn bool
	CreatedOn        int64
}

// DisplaySignatory is the public projection of a Signatory used on
// rendered pages. Email deliberately has no field here.
type DisplaySignatory struct {
	Name         string
	Title        string
	Organisation string
	URL          string
	Comment      string
}

// Display returns the public projection of s.
func (s Signatory) Display() DisplaySignatory {
	return DisplaySignatory{
		Name:         s.Name,
		Title:        s.Title,
		Organisation: s.Organisation,
		URL:          s.URL,
		Comment:      s.Comment,
	}
}

// SubmissionForm captures the raw fields of a POST /submit body.
type SubmissionForm struct {
	Name             string
	Title            string
	Email            string
	Organisation     string
	URL              string
	Comments         string
	MailingListOptIn string
}

// SignatoryStore persists signatories and serves the randomized read
// queries behind the public pages.
type SignatoryStore interface {
	// Insert appends one row. It either fully succeeds or leaves no row.
	Insert(ctx context.Context, s Signatory) error
	// ListSignatories returns all signature rows in a fresh random order
	// on every call.
	ListSignatories(ctx context.Context) ([]DisplaySignatory, error)
	// ListQuotes returns at most three randomly chosen rows that carry a
	// non-empty comment.
	ListQuotes(ctx context.Context) ([]DisplaySignatory, error)
}

// Clock abstracts time.Now so submission timestamps are testable.
type Clock interface {
	Now() time.Time
}
