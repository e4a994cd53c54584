// Package ingest converts object-created notifications into processed,
// relocated objects with a durable metadata record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/logging"
	"github.com/dmitrijs2005/ingestor/internal/server/checksum"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
	"github.com/dmitrijs2005/ingestor/internal/server/objectstore"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/filerecords"
)

// Pipeline processes a single notification end to end:
// read source -> checksum -> RAW record -> copy -> delete -> PROCESSED.
//
// Every step is idempotent or guarded so the pipeline can be re-entered from
// any point after a crash, given only the notification and the current
// record state. There is no per-key lock: concurrent deliveries of the same
// notification converge to the same terminal state.
type Pipeline struct {
	store           objectstore.Store
	records         filerecords.Repository
	processedBucket string
	processedPrefix string
	logger          logging.Logger
	now             func() time.Time
}

func NewPipeline(store objectstore.Store, records filerecords.Repository, processedBucket, processedPrefix string, logger logging.Logger) *Pipeline {
	return &Pipeline{
		store:           store,
		records:         records,
		processedBucket: processedBucket,
		processedPrefix: processedPrefix,
		logger:          logger.With("module", "ingest"),
		now:             time.Now,
	}
}

// Process handles one notification. A nil return means the object is in its
// terminal state (freshly processed or already handled). Any error leaves
// the notification to the event source's redelivery; the message includes
// the step reached so an operator can replay by hand.
func (p *Pipeline) Process(ctx context.Context, n models.Notification) error {
	pk := models.PrimaryKey(n.Key)

	body, _, err := p.store.Get(ctx, n.Bucket, n.Key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return p.resume(ctx, n, pk)
		}
		return fmt.Errorf("read source: %w", err)
	}

	sum, counted, err := checksum.Stream(body)
	if cerr := body.Close(); cerr != nil {
		p.logger.Warn(ctx, "closing source stream", "key", n.Key, "error", cerr)
	}
	if err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}

	size := n.Size
	if size == 0 {
		size = counted
	}

	err = p.records.CreateRaw(ctx, &models.FileRecord{
		PK:       pk,
		Bucket:   n.Bucket,
		Key:      n.Key,
		Size:     size,
		ETag:     n.ETag,
		Status:   models.StatusRaw,
		Checksum: sum,
	})
	if errors.Is(err, common.ErrAlreadyProcessed) {
		p.logger.Info(ctx, "notification re-delivered for processed record, skipping", "pk", pk)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record raw metadata: %w", err)
	}

	dstKey := p.processedPrefix + n.Key

	if err := p.store.Copy(ctx, n.Bucket, n.Key, p.processedBucket, dstKey); err != nil {
		// A concurrent worker may have relocated the object between our
		// read and the copy. The copy already being in place is success.
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("copy to processed location: %w", err)
		}
		ok, herr := p.copyInPlace(ctx, dstKey, size)
		if herr != nil {
			return fmt.Errorf("verify processed copy: %w", herr)
		}
		if !ok {
			return fmt.Errorf("copy to processed location: %w", err)
		}
	}

	if err := p.store.Delete(ctx, n.Bucket, n.Key); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("delete original: %w", err)
	}

	if err := p.records.MarkProcessed(ctx, pk, p.processedBucket, dstKey, p.now().UTC()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	p.logger.Info(ctx, "object processed", "pk", pk, "dst", p.processedBucket+"/"+dstKey, "checksum", sum)
	return nil
}

// resume finishes a partially processed notification whose source object is
// gone. That happens on redelivery after a crash between relocation and the
// status update, or after full completion. The stored checksum is reused,
// never recomputed.
func (p *Pipeline) resume(ctx context.Context, n models.Notification, pk string) error {
	rec, err := p.records.GetByPK(ctx, pk)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Never seen before and the source is gone: nothing to do
			// but report it.
			return fmt.Errorf("%s/%s: %w", n.Bucket, n.Key, common.ErrSourceNotFound)
		}
		return fmt.Errorf("load record for resume: %w", err)
	}

	if rec.Status == models.StatusProcessed {
		p.logger.Info(ctx, "notification re-delivered for processed record, skipping", "pk", pk)
		return nil
	}

	dstKey := p.processedPrefix + n.Key
	ok, err := p.copyInPlace(ctx, dstKey, rec.Size)
	if err != nil {
		return fmt.Errorf("verify processed copy: %w", err)
	}
	if !ok {
		// Source gone and no processed copy: the object is unrecoverable
		// from this notification alone.
		return fmt.Errorf("%s/%s: source gone before relocation: %w", n.Bucket, n.Key, common.ErrSourceNotFound)
	}

	if err := p.records.MarkProcessed(ctx, pk, p.processedBucket, dstKey, p.now().UTC()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	p.logger.Info(ctx, "resumed and finalized partially processed object", "pk", pk, "checksum", rec.Checksum)
	return nil
}

// copyInPlace reports whether the processed copy exists with the expected
// size. A zero wantSize skips the size comparison.
func (p *Pipeline) copyInPlace(ctx context.Context, dstKey string, wantSize int64) (bool, error) {
	info, err := p.store.Head(ctx, p.processedBucket, dstKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	if wantSize > 0 && info.Size != wantSize {
		return false, fmt.Errorf("processed copy size mismatch: have %d, want %d", info.Size, wantSize)
	}
	return true, nil
}
