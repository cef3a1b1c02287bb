package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/kuitang/clinicprobe/internal/report"
)

// ResendNotifier emails reports through the Resend API.
type ResendNotifier struct {
	client      *resend.Client
	fromAddress string
	to          []string
}

// NewResendNotifier creates a Resend notifier. fromAddress must be verified
// in Resend.
func NewResendNotifier(apiKey, fromAddress string, to []string) *ResendNotifier {
	return &ResendNotifier{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
		to:          to,
	}
}

func (r *ResendNotifier) Notify(ctx context.Context, rep *report.Report) error {
	if len(r.to) == 0 {
		return errors.New("resend: no recipients configured")
	}
	_, err := r.client.Emails.SendWithContext(ctx, r.request(rep))
	if err != nil {
		return fmt.Errorf("resend: failed to send report: %w", err)
	}
	return nil
}

func (r *ResendNotifier) request(rep *report.Report) *resend.SendEmailRequest {
	return &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      append([]string(nil), r.to...),
		Subject: rep.Subject(),
		Html:    string(rep.HTML()),
		Text:    rep.Markdown(),
	}
}
