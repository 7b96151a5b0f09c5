package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDraftClosed is returned when a committed draft is used again.
	ErrDraftClosed = errors.New("review draft already committed")
	// ErrUnknownAnswer is returned when an edit addresses no existing answer.
	ErrUnknownAnswer = errors.New("no answer for question")
)

// Saver commits a review. *API satisfies it.
type Saver interface {
	Save(ctx context.Context, id int64, req SaveRequest) (SaveResult, error)
}

// Draft holds a working copy of a review. The confirmed copy is only ever the
// last value read from the server; edits never touch it. A draft is
// single-use: it is closed after Commit whether or not the save succeeded.
type Draft struct {
	submissionID int64
	confirmed    Review
	working      Review
	note         string
	closed       bool
}

// NewDraft starts editing confirmed.
func NewDraft(submissionID int64, confirmed Review) *Draft {
	return &Draft{submissionID: submissionID, confirmed: confirmed.clone(), working: confirmed.clone()}
}

func (d *Draft) SubmissionID() int64 { return d.submissionID }

// Confirmed returns the server-confirmed review.
func (d *Draft) Confirmed() Review { return d.confirmed.clone() }

// Working returns the edited review.
func (d *Draft) Working() Review { return d.working.clone() }

// SetIdentifier replaces the student identifier. Blank clears it.
func (d *Draft) SetIdentifier(value string) error {
	if d.closed {
		return ErrDraftClosed
	}
	value = strings.TrimSpace(value)
	if value == "" {
		d.working.Identifier = nil
		return nil
	}
	d.working.Identifier = &value
	return nil
}

// SetAnswer replaces the answer addressed by key.
func (d *Draft) SetAnswer(key Key, value string) error {
	if d.closed {
		return ErrDraftClosed
	}
	for i := range d.working.Answers {
		if key.matches(d.working.Answers[i]) {
			d.working.Answers[i].Answer = value
			return nil
		}
	}
	return fmt.Errorf("%w %+v", ErrUnknownAnswer, key)
}

// SetNote sets the free-text note sent with the commit.
func (d *Draft) SetNote(note string) { d.note = note }

// Dirty reports whether the working copy differs from the confirmed one.
func (d *Draft) Dirty() bool {
	if d.confirmed.IdentifierText() != d.working.IdentifierText() {
		return true
	}
	for i := range d.working.Answers {
		if d.working.Answers[i].Answer != d.confirmed.Answers[i].Answer {
			return true
		}
	}
	return false
}

// Closed reports whether Commit was called.
func (d *Draft) Closed() bool { return d.closed }

// Commit sends the working copy and closes the draft. On failure the caller
// re-fetches to get a fresh confirmed copy; no part of the working copy is
// considered applied.
func (d *Draft) Commit(ctx context.Context, saver Saver) (SaveResult, error) {
	if d.closed {
		return SaveResult{}, ErrDraftClosed
	}
	d.closed = true
	return saver.Save(ctx, d.submissionID, NewSaveRequest(d.working, d.note))
}
