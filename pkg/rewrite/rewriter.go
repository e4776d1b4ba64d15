package rewrite

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/mdimg/pkg/convert"
	"github.com/Sriram-PR/mdimg/pkg/extract"
	"github.com/Sriram-PR/mdimg/pkg/fetch"
	"github.com/Sriram-PR/mdimg/pkg/models"
	"github.com/Sriram-PR/mdimg/pkg/plan"
	"github.com/Sriram-PR/mdimg/pkg/storage"
	"github.com/Sriram-PR/mdimg/pkg/utils"
)

// Downloader fetches one URL into a local file
type Downloader interface {
	Download(ctx context.Context, rawURL, destPath string) (string, error)
}

// NormalizeFunc re-encodes an image; convert.Normalize in production
type NormalizeFunc func(inputPath, outputPath string, format convert.Format) (string, error)

// Ledger is the subset of the store the rewriter records outcomes in
type Ledger interface {
	storage.ImageStore
	storage.DocumentStore
}

// Options holds the per-run settings of a Rewriter
type Options struct {
	Processing       models.ProcessingOptions
	Workers          int           // Concurrent fetches within one document; <= 1 is sequential
	HostDelay        time.Duration // Minimum spacing between requests to one host
	SemaphoreTimeout time.Duration
	RunID            string
}

// Rewriter localizes the remote images of one document at a time
type Rewriter struct {
	downloader  Downloader
	normalize   NormalizeFunc
	ledger      Ledger // Optional
	hostPool    *fetch.HostSemaphorePool
	rateLimiter *fetch.RateLimiter
	opts        Options
	log         *logrus.Entry
}

// NewRewriter creates a Rewriter. ledger, hostPool and rateLimiter may be nil.
func NewRewriter(
	downloader Downloader,
	ledger Ledger,
	hostPool *fetch.HostSemaphorePool,
	rateLimiter *fetch.RateLimiter,
	opts Options,
	log *logrus.Entry,
) *Rewriter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Rewriter{
		downloader:  downloader,
		normalize:   convert.Normalize,
		ledger:      ledger,
		hostPool:    hostPool,
		rateLimiter: rateLimiter,
		opts:        opts,
		log:         log,
	}
}

// ProcessDocument rewrites every downloadable image reference in filePath to
// point at a local copy, then writes the document back. Per-reference failures
// leave that reference untouched and are reported in the result; only failures
// to read or write the document itself are returned as errors.
func (r *Rewriter) ProcessDocument(ctx context.Context, filePath string) (*models.DocumentResult, error) {
	start := time.Now()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	docLog := r.log.WithField("doc", absPath)
	docLog.Info("Processing document")

	raw, err := os.ReadFile(absPath)
	if err != nil {
		wrapped := fmt.Errorf("%w: read document '%s': %w", utils.ErrFilesystem, absPath, err)
		r.recordDocumentFailure(absPath, wrapped, docLog)
		return nil, wrapped
	}
	content := string(raw)

	docCtx := plan.NewDocumentContext(absPath)
	refs := extract.Extract(content)
	network := extract.NetworkReferences(refs)

	result := &models.DocumentResult{
		FilePath:          absPath,
		TotalReferences:   len(refs),
		NetworkReferences: len(network),
		References:        r.localizeAll(ctx, docCtx, network, docLog),
	}

	replacements := make([]Replacement, 0, len(network))
	for i, res := range result.References {
		if res.Err != nil {
			continue
		}
		ref := network[i].Ref
		replacements = append(replacements, Replacement{
			Start: ref.Start,
			End:   ref.End,
			Text:  ImageTag(ref.AltText, res.Plan.DocumentRelativeLink),
		})
	}
	updated := ApplyReplacements(content, replacements)

	if err := writeFileAtomic(absPath, []byte(updated)); err != nil {
		wrapped := fmt.Errorf("%w: write document '%s': %w", utils.ErrFilesystem, absPath, err)
		r.recordDocumentFailure(absPath, wrapped, docLog)
		return result, wrapped
	}

	result.Duration = time.Since(start)
	r.recordDocumentSuccess(absPath, updated, result)

	docLog.WithFields(logrus.Fields{
		"rewritten": result.Rewritten(),
		"failed":    result.Failed(),
		"duration":  result.Duration.Round(time.Millisecond),
	}).Info("Processed document")
	return result, nil
}

// localizeAll runs the per-reference pipeline. Results are stored by position
// so the substitution order never depends on completion order.
func (r *Rewriter) localizeAll(ctx context.Context, docCtx models.DocumentContext, network []models.IndexedReference, docLog *logrus.Entry) []models.ReferenceResult {
	results := make([]models.ReferenceResult, len(network))
	if len(network) == 0 {
		return results
	}

	if r.opts.Workers <= 1 {
		for i, ir := range network {
			results[i] = r.localize(ctx, docCtx, ir, docLog)
		}
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for i, ir := range network {
		g.Go(func() error {
			results[i] = r.localize(ctx, docCtx, ir, docLog)
			return nil // Reference failures never cancel siblings
		})
	}
	_ = g.Wait()
	return results
}

// localize runs plan, fetch and conditional normalization for one reference
func (r *Rewriter) localize(ctx context.Context, docCtx models.DocumentContext, ir models.IndexedReference, docLog *logrus.Entry) (res models.ReferenceResult) {
	sourceURL := ir.Ref.SourceURL
	refLog := docLog.WithFields(logrus.Fields{"img_url": sourceURL, "index": ir.Index})
	res = models.ReferenceResult{Index: ir.Index, SourceURL: sourceURL}

	defer func() {
		if p := recover(); p != nil {
			res.Plan = nil
			res.Err = fmt.Errorf("panic localizing '%s': %v", sourceURL, p)
		}
		if res.Err != nil {
			refLog.WithField("error_type", utils.CategorizeError(res.Err)).Errorf("Failed to localize image, reference left unchanged: %v", res.Err)
		}
		r.recordImage(docCtx, ir, res, refLog)
	}()

	r.checkLedger(sourceURL, refLog)

	p, err := plan.Plan(docCtx, ir.Index, sourceURL)
	if err != nil {
		res.Err = err
		return res
	}

	if err := r.download(ctx, sourceURL, p.LocalAbsolutePath); err != nil {
		res.Err = err
		return res
	}
	refLog.Infof("Downloaded %s to %s", sourceURL, p.LocalAbsolutePath)

	decision := plan.Decide(p, sourceURL, r.opts.Processing)
	if decision.Convert() {
		src := plan.ApplyConversion(&p, decision.Target)
		if _, err := r.normalize(src, p.LocalAbsolutePath, decision.Target); err != nil {
			res.Err = err
			return res
		}
		res.Converted = true
		refLog.Infof("Converted %s: %s", decision.Reason, p.LocalAbsolutePath)
	}

	res.Plan = &p
	return res
}

// download wraps the fetch with the per-host cap and politeness delay
func (r *Rewriter) download(ctx context.Context, sourceURL, dest string) error {
	host := ""
	if u, err := url.Parse(sourceURL); err == nil {
		host = u.Hostname()
	}

	if r.hostPool != nil && r.opts.Workers > 1 {
		if err := r.hostPool.Acquire(ctx, host, r.opts.SemaphoreTimeout); err != nil {
			return utils.NewTransportError(sourceURL, err)
		}
		defer r.hostPool.Release(host)
	}

	if r.rateLimiter != nil {
		r.rateLimiter.ApplyDelay(ctx, host, r.opts.HostDelay)
		defer r.rateLimiter.UpdateLastRequestTime(host)
	}

	_, err := r.downloader.Download(ctx, sourceURL, dest)
	return err
}

// checkLedger notes earlier outcomes for the URL. It never changes what happens next.
func (r *Rewriter) checkLedger(sourceURL string, refLog *logrus.Entry) {
	if r.ledger == nil {
		return
	}
	status, entry, err := r.ledger.CheckImageStatus(sourceURL)
	if err != nil {
		refLog.Warnf("Ledger check failed: %v", err)
		return
	}
	switch status {
	case models.ImageStatusFailure:
		errType := "Unknown"
		if entry != nil && entry.ErrorType != "" {
			errType = entry.ErrorType
		}
		refLog.Warnf("Image previously failed ('%s'). Retrying.", errType)
	case models.ImageStatusSuccess:
		if entry != nil {
			refLog.Debugf("Image previously stored for %s", entry.Document)
		}
	}
}

func (r *Rewriter) recordImage(docCtx models.DocumentContext, ir models.IndexedReference, res models.ReferenceResult, refLog *logrus.Entry) {
	if r.ledger == nil {
		return
	}
	entry := &models.ImageDBEntry{
		Document:    docCtx.FilePath,
		Index:       ir.Index,
		RunID:       r.opts.RunID,
		LastAttempt: time.Now(),
	}
	if res.Err == nil && res.Plan != nil {
		entry.Status = models.ImageStatusSuccess
		entry.LocalPath = res.Plan.DocumentRelativeLink
		if hash, err := utils.CalculateFileSHA256(res.Plan.LocalAbsolutePath); err == nil {
			entry.ContentHash = hash
		} else {
			refLog.Debugf("Could not hash stored image: %v", err)
		}
	} else {
		entry.Status = models.ImageStatusFailure
		entry.ErrorType = utils.CategorizeError(res.Err)
		if res.Err != nil {
			entry.ErrorMessage = res.Err.Error()
		}
	}
	if err := r.ledger.UpdateImageStatus(ir.Ref.SourceURL, entry); err != nil {
		refLog.Warnf("Failed to record image outcome: %v", err)
	}
}

func (r *Rewriter) recordDocumentSuccess(absPath, content string, result *models.DocumentResult) {
	if r.ledger == nil {
		return
	}
	entry := &models.DocumentDBEntry{
		Status:      models.DocumentStatusSuccess,
		ContentHash: utils.CalculateBytesSHA256([]byte(content)),
		Rewritten:   result.Rewritten(),
		Failed:      result.Failed(),
		RunID:       r.opts.RunID,
		ProcessedAt: time.Now(),
	}
	if err := r.ledger.UpdateDocumentStatus(absPath, entry); err != nil {
		r.log.WithField("doc", absPath).Warnf("Failed to record document outcome: %v", err)
	}
}

func (r *Rewriter) recordDocumentFailure(absPath string, cause error, docLog *logrus.Entry) {
	if r.ledger == nil {
		return
	}
	entry := &models.DocumentDBEntry{
		Status:      models.DocumentStatusFailure,
		ErrorType:   utils.CategorizeError(cause),
		RunID:       r.opts.RunID,
		ProcessedAt: time.Now(),
	}
	if err := r.ledger.UpdateDocumentStatus(absPath, entry); err != nil {
		docLog.Warnf("Failed to record document outcome: %v", err)
	}
}

// writeFileAtomic replaces path with data through a temp file in the same
// directory, keeping the original file mode.
func writeFileAtomic(path string, data []byte) (err error) {
	mode := os.FileMode(0644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
