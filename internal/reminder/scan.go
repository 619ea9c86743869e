package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/notify"
	"github.com/connectapp/connect-backend/internal/store"
)

// ConsultationSource is the slice of the store the scan needs.
type ConsultationSource interface {
	ConsultationsStartingBetween(ctx context.Context, from, to time.Time) ([]store.Consultation, error)
}

// Dispatcher sends one notification to a recipient set.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []string, payload notify.Payload) error
}

// Scan reminds participants of consultations starting within the lookahead
// window. The window equals the scan interval, so a consultation starting
// between two scans is caught by at least one of them. Both window bounds are
// inclusive, which means a consultation on a boundary can be matched by two
// consecutive scans: reminder delivery is at-least-once, and clients are
// expected to handle a duplicate.
type Scan struct {
	consultations ConsultationSource
	dispatcher    Dispatcher
	lookahead     time.Duration
	sound         string
	logger        *logger.Logger

	now func() time.Time
}

// NewScan creates a new reminder scan.
func NewScan(consultations ConsultationSource, dispatcher Dispatcher, lookahead time.Duration, sound string, logger *logger.Logger) *Scan {
	return &Scan{
		consultations: consultations,
		dispatcher:    dispatcher,
		lookahead:     lookahead,
		sound:         sound,
		logger:        logger.WithComponent("reminder-scan"),
		now:           time.Now,
	}
}

// Run executes one scan. Every send issued by the run completes before Run
// returns; an early return would let the process terminate with sends still
// in flight. A run with no matching consultations is a logged no-op.
func (s *Scan) Run(ctx context.Context) error {
	log := s.logger.WithContext(ctx)

	from := s.now()
	to := from.Add(s.lookahead)

	consultations, err := s.consultations.ConsultationsStartingBetween(ctx, from, to)
	if err != nil {
		return err
	}

	if len(consultations) == 0 {
		log.Info("no consultations starting soon",
			slog.Time("window_start", from),
			slog.Time("window_end", to))
		return nil
	}

	log.Info("consultations starting soon",
		slog.Int("count", len(consultations)),
		slog.Time("window_start", from),
		slog.Time("window_end", to))

	for _, consultation := range consultations {
		cctx := logger.WithConsultationID(ctx, consultation.ID)
		payload := s.reminderPayload(consultation)

		for _, uid := range consultation.Participants {
			if err := s.dispatcher.Dispatch(cctx, []string{uid}, payload); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Scan) reminderPayload(consultation store.Consultation) notify.Payload {
	return notify.Payload{
		Title: "Upcoming Consultation",
		Body:  "Starts at " + consultation.ScheduledAt.Local().Format(time.Kitchen),
		Data: map[string]string{
			"type": string(notify.TypeConsultationReminder),
			"id":   consultation.ID,
		},
		Sound: s.sound,
	}
}
