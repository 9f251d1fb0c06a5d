package services

import (
	"context"
	"encoding/json"
	"net/mail"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/stagium/backend/internal/data/repos"
	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/logger"
	"github.com/stagium/backend/internal/platform/sendgrid"
)

// Notification outcomes, one per mail template.
const (
	OutcomeEnregistre = "ENREGISTRE"
	OutcomeAccepte    = "ACCEPTE"
	OutcomeRefuse     = "REFUSE"
)

type Recipient struct {
	ID     uuid.UUID
	Email  string
	Nom    string
	Prenom string
}

type DispatchRequest struct {
	StageID    uuid.UUID
	Outcome    string
	Recipients []Recipient
	Subject    string
	Text       string
	HTML       string
	Attachment *sendgrid.Attachment
}

type DispatchFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type DispatchReport struct {
	Total    int               `json:"total"`
	Sent     int               `json:"sent"`
	Failures []DispatchFailure `json:"failures,omitempty"`
}

// Dispatcher fans a committed outcome out to its recipients. Each send is
// isolated: one recipient's failure never fails the batch, and nothing here can
// roll back the transaction that already committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) DispatchReport
}

type dispatcher struct {
	log         *logger.Logger
	mailer      sendgrid.Client
	logRepo     repos.NotificationLogRepo
	concurrency int
}

func NewDispatcher(log *logger.Logger, mailer sendgrid.Client, logRepo repos.NotificationLogRepo, concurrency int) Dispatcher {
	if concurrency < 1 {
		concurrency = 4
	}
	return &dispatcher{
		log:         log.With("service", "NotificationDispatcher"),
		mailer:      mailer,
		logRepo:     logRepo,
		concurrency: concurrency,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchReport {
	report := DispatchReport{Total: len(req.Recipients)}
	if len(req.Recipients) == 0 {
		d.record(ctx, req, report)
		return report
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(d.concurrency)

	for _, rcpt := range req.Recipients {
		g.Go(func() error {
			err := d.sendOne(ctx, req, rcpt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Warn("Notification send failed",
					"stage_id", req.StageID,
					"outcome", req.Outcome,
					"recipient", rcpt.Email,
					"error", err,
				)
				report.Failures = append(report.Failures, DispatchFailure{Email: rcpt.Email, Error: err.Error()})
				return nil
			}
			report.Sent++
			return nil
		})
	}
	_ = g.Wait()

	d.record(ctx, req, report)
	return report
}

func (d *dispatcher) sendOne(ctx context.Context, req DispatchRequest, rcpt Recipient) error {
	mailReq := sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: rcpt.Email, Name: rcpt.Prenom + " " + rcpt.Nom}},
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	}
	if req.Attachment != nil {
		mailReq.Attachments = []sendgrid.Attachment{*req.Attachment}
	}
	_, err := d.mailer.Send(ctx, mailReq)
	return err
}

// record keeps an audit row per batch; failure to write it is logged only.
func (d *dispatcher) record(ctx context.Context, req DispatchRequest, report DispatchReport) {
	if d.logRepo == nil {
		return
	}
	entry := &domain.NotificationLog{
		StageID: req.StageID,
		Outcome: req.Outcome,
		Total:   report.Total,
		Sent:    report.Sent,
	}
	if len(report.Failures) > 0 {
		if raw, err := json.Marshal(report.Failures); err == nil {
			entry.Details = datatypes.JSON(raw)
		}
	}
	if _, err := d.logRepo.Create(ctx, nil, entry); err != nil {
		d.log.Warn("Notification log write failed", "stage_id", req.StageID, "error", err)
	}
}

// ValidEmail reports whether addr parses as a bare RFC 5322 address.
func ValidEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
