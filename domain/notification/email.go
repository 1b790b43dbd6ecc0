package notification

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"vid2audio/domain/conversion"
)

// Recipient represents an email recipient with name and address
type Recipient struct {
	Name    string
	Address string
}

// FileResult is the outcome of one task as shown to the user
type FileResult struct {
	Name       string
	OutputPath string
	Succeeded  bool
	Message    string
	Elapsed    time.Duration
	Link       string // shareable link when the output was published
}

// RunReport summarizes a finished run
type RunReport struct {
	RunID     string
	Succeeded int
	Failed    int
	Cancelled int
	Elapsed   time.Duration
	Files     []FileResult
}

// NewRunReport builds a report from the terminal tasks of a run
func NewRunReport(runID string, tasks []conversion.Task, elapsed time.Duration) RunReport {
	r := RunReport{RunID: runID, Elapsed: elapsed}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			continue
		}
		ok := t.Status == conversion.StatusCompleted
		switch {
		case ok:
			r.Succeeded++
		case t.ErrorMessage == conversion.CancelledMessage:
			r.Cancelled++
			r.Failed++
		default:
			r.Failed++
		}
		r.Files = append(r.Files, FileResult{
			Name:       filepath.Base(t.InputPath),
			OutputPath: t.OutputPath,
			Succeeded:  ok,
			Message:    t.ErrorMessage,
			Elapsed:    t.Elapsed(),
		})
	}
	return r
}

// Total returns the number of files in the report
func (r RunReport) Total() int {
	return r.Succeeded + r.Failed
}

// AllSucceeded returns true when every file converted
func (r RunReport) AllSucceeded() bool {
	return r.Total() > 0 && r.Failed == 0
}

// AttachLinks sets the shareable link of each file whose output path is in links
func (r *RunReport) AttachLinks(links map[string]string) {
	for i := range r.Files {
		if link, ok := links[r.Files[i].OutputPath]; ok {
			r.Files[i].Link = link
		}
	}
}

// SummaryLine is the completion notice shown after a run
func (r RunReport) SummaryLine() string {
	return fmt.Sprintf("Successfully converted %d file(s)\nFailed: %d file(s)", r.Succeeded, r.Failed)
}

// EmailRequest contains all the data needed to send a run summary
type EmailRequest struct {
	To         []Recipient
	Report     RunReport
	SenderName string
}

// Validate checks that the email request has all required fields
func (r *EmailRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range r.To {
		if to.Address == "" {
			return ErrInvalidRecipient
		}
	}
	if r.Report.Total() == 0 {
		return ErrEmptyReport
	}
	return nil
}

// EmailSender defines the interface for sending emails
type EmailSender interface {
	Send(ctx context.Context, req *EmailRequest) error
}
