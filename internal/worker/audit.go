package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/indexfund/internal/user"
)

// Auditor checks the fund store against the credential store.
type Auditor interface {
	Audit(ctx context.Context) (user.AuditReport, error)
}

// AuditWorker periodically audits that every fund user has a credential.
type AuditWorker struct {
	auditor  Auditor
	interval time.Duration
}

// NewAuditWorker creates a new AuditWorker.
func NewAuditWorker(auditor Auditor, interval time.Duration) *AuditWorker {
	return &AuditWorker{
		auditor:  auditor,
		interval: interval,
	}
}

func (w *AuditWorker) runOnce(ctx context.Context) {
	report, err := w.auditor.Audit(ctx)
	if err != nil {
		slog.Error("AuditWorker: audit failed", "error", err)
		return
	}
	if len(report.Missing) > 0 {
		slog.Warn("AuditWorker: users without credentials", "checked", report.Checked, "missing", len(report.Missing))
		return
	}
	slog.Info("AuditWorker: audit completed", "checked", report.Checked)
}

// Run starts the audit loop. It blocks until the context is cancelled.
func (w *AuditWorker) Run(ctx context.Context) {
	slog.Info("AuditWorker: starting", "interval", w.interval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("AuditWorker: shutting down")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}
