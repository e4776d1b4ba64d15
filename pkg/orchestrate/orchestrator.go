package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/mdimg/pkg/config"
	"github.com/Sriram-PR/mdimg/pkg/discover"
	"github.com/Sriram-PR/mdimg/pkg/fetch"
	"github.com/Sriram-PR/mdimg/pkg/models"
	"github.com/Sriram-PR/mdimg/pkg/rewrite"
)

// DocumentProcessor rewrites one document; *rewrite.Rewriter in production
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, filePath string) (*models.DocumentResult, error)
}

// RecordCounter reports how many records the ledger holds
type RecordCounter interface {
	GetCount() (int, error)
}

// Summary aggregates the outcome of a run
type Summary struct {
	Documents       int
	DocumentsFailed int
	WalkErrors      int // Directories that could not be read
	ImagesRewritten int
	ImagesFailed    int
	LedgerRecords   int // Zero when no ledger is attached
	Duration        time.Duration
}

// Runner drives the rewriter over a resolved target
type Runner struct {
	processor DocumentProcessor
	ledger    RecordCounter // Optional
	log       *logrus.Entry
}

// NewRewriter builds the rewriter and the resources it shares across documents.
// ledger may be nil.
func NewRewriter(appCfg *config.AppConfig, ledger rewrite.Ledger, runID string, log *logrus.Entry) *rewrite.Rewriter {
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, appCfg, log)
	rateLimiter := fetch.NewRateLimiter(appCfg.DefaultDelayPerHost, log)
	hostPool := fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, log)

	opts := rewrite.Options{
		Processing:       appCfg.ProcessingOptions(),
		Workers:          appCfg.NumFetchWorkers,
		HostDelay:        appCfg.DefaultDelayPerHost,
		SemaphoreTimeout: appCfg.SemaphoreAcquireTimeout,
		RunID:            runID,
	}
	return rewrite.NewRewriter(fetcher, ledger, hostPool, rateLimiter, opts, log)
}

// NewRunner creates a Runner
func NewRunner(processor DocumentProcessor, log *logrus.Entry) *Runner {
	return &Runner{processor: processor, log: log}
}

// WithLedger reports the ledger's record count in the run summary
func (r *Runner) WithLedger(ledger RecordCounter) *Runner {
	r.ledger = ledger
	return r
}

// Run processes the target. In directory mode document errors are logged and
// the walk continues; in single-file mode the document error is returned.
func (r *Runner) Run(ctx context.Context, target discover.Target) (Summary, error) {
	startTime := time.Now()
	var summary Summary

	r.log.Infof("Target path: %s", target.Path)

	switch target.Kind {
	case discover.KindFile:
		err := r.processOne(ctx, target.Path, &summary)
		r.finish(&summary, startTime)
		return summary, err

	case discover.KindDirectory:
		for path, walkErr := range discover.MarkdownFiles(target.Path) {
			if err := ctx.Err(); err != nil {
				r.log.Warnf("Run interrupted: %v", err)
				r.finish(&summary, startTime)
				return summary, err
			}
			if walkErr != nil {
				summary.WalkErrors++
				r.log.Errorf("Skipping unreadable directory: %v", walkErr)
				continue
			}
			if err := r.processOne(ctx, path, &summary); err != nil {
				r.log.WithField("doc", path).Errorf("Failed to process document: %v", err)
			}
		}
	}

	r.finish(&summary, startTime)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) processOne(ctx context.Context, path string, summary *Summary) error {
	summary.Documents++
	result, err := r.processor.ProcessDocument(ctx, path)
	if result != nil {
		summary.ImagesRewritten += result.Rewritten()
		summary.ImagesFailed += result.Failed()
	}
	if err != nil {
		summary.DocumentsFailed++
		return fmt.Errorf("process '%s': %w", path, err)
	}
	return nil
}

// finish fills in the run-wide totals and logs the summary
func (r *Runner) finish(summary *Summary, startTime time.Time) {
	summary.Duration = time.Since(startTime)
	if r.ledger != nil {
		count, err := r.ledger.GetCount()
		if err != nil {
			r.log.Warnf("Could not read ledger record count: %v", err)
		}
		summary.LedgerRecords = count
	}
	r.logSummary(*summary)
}

// logSummary logs a summary of the run
func (r *Runner) logSummary(s Summary) {
	r.log.Info("============================================")
	r.log.Infof("Run completed in %v", s.Duration.Round(time.Millisecond))
	r.log.Infof("Documents: %d (%d failed)", s.Documents, s.DocumentsFailed)
	r.log.Infof("Images: %d rewritten, %d failed", s.ImagesRewritten, s.ImagesFailed)
	if r.ledger != nil {
		r.log.Infof("Ledger records: %d", s.LedgerRecords)
	}
	if s.WalkErrors > 0 {
		r.log.Infof("Unreadable directories: %d", s.WalkErrors)
	}
	r.log.Info("============================================")
}
