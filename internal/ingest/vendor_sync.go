package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
)

// VendorAPI is the slice of the vendor client used by a sync.
type VendorAPI interface {
	GetRecordings(ctx context.Context, q vendor.ListQuery) (*vendor.RecordingsPage, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// SyncReport summarizes one SyncUser run.
type SyncReport struct {
	Listed     int      `json:"listed"`
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// VendorSync pulls a user's vendor recordings into the catalog. Overlapping
// syncs for the same user are safe: the unique index decides which insert
// wins.
type VendorSync struct {
	DB     *gorm.DB
	Engine *Engine
	// Client builds an API client for the user's stored credential.
	Client      func(acct *domain.VendorAccount) VendorAPI
	PageSize    int
	Concurrency int
}

const sortByStartTime = "start_time"

// SyncUser walks every page of the user's recordings, oldest first, and
// ingests files not yet in the catalog. Offsets are stable under that order:
// a recording that appears mid-sync lands after the pages already read and
// is picked up by the same run. A failing file is counted and
// skipped; an authorization failure or a failed page request aborts the run
// and is returned alongside the partial report.
func (s *VendorSync) SyncUser(ctx context.Context, userID string) (*SyncReport, error) {
	tr := otel.Tracer("ingest/VendorSync")
	ctx, span := tr.Start(ctx, "SyncUser", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	acct, err := repo.GetVendorAccount(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoVendorAccount
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor account: %w", err)
	}
	client := s.Client(acct)

	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	workers := s.Concurrency
	if workers <= 0 {
		workers = 4
	}

	report := &SyncReport{}
	var mu sync.Mutex

	for offset := 0; ; {
		page, err := client.GetRecordings(ctx, vendor.ListQuery{
			Offset:    offset,
			Limit:     pageSize,
			SortField: sortByStartTime,
		})
		if err != nil {
			return report, fmt.Errorf("list recordings at %d: %w", offset, err)
		}
		if len(page.Files) == 0 {
			break
		}
		report.Listed += len(page.Files)

		ids := make([]string, 0, len(page.Files))
		for _, f := range page.Files {
			ids = append(ids, f.ID)
		}
		// Read-only shortcut to avoid downloading known files.
		known, err := repo.KnownSourceFileIDs(ctx, s.DB, userID, ids)
		if err != nil {
			return report, fmt.Errorf("known ids: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, f := range page.Files {
			if _, ok := known[f.ID]; ok {
				mu.Lock()
				report.Duplicates++
				mu.Unlock()
				continue
			}
			f := f
			g.Go(func() error {
				dup, err := s.syncFile(gctx, client, userID, f)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, vendor.ErrUnauthorized):
					return err
				case err != nil:
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", f.ID, err))
				case dup:
					report.Duplicates++
				default:
					report.Imported++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		offset += len(page.Files)
		if page.Total > 0 && int64(offset) >= page.Total {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("sync.imported", report.Imported),
		attribute.Int("sync.duplicates", report.Duplicates),
		attribute.Int("sync.failed", report.Failed),
	)
	log.Info().
		Str("component", "vendor_sync").
		Str("user_id", userID).
		Int("listed", report.Listed).
		Int("imported", report.Imported).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Msg("vendor sync finished")
	return report, nil
}

func (s *VendorSync) syncFile(ctx context.Context, client VendorAPI, userID string, f vendor.RemoteFile) (duplicate bool, err error) {
	data, err := client.Download(ctx, f.ID)
	if err != nil {
		ingestTotal.WithLabelValues(domain.SourceVendor, outcomeFetchErr).Inc()
		return false, fmt.Errorf("download: %w", err)
	}
	out, err := s.Engine.Ingest(ctx, Candidate{
		UserID:       userID,
		Source:       domain.SourceVendor,
		SourceFileID: f.ID,
		DeviceID:     f.DeviceID,
		Filename:     f.Filename,
		ContentType:  mime.TypeByExtension(filepath.Ext(f.Filename)),
		Checksum:     f.Checksum,
		DurationMS:   f.DurationMS,
		Start:        f.Start(),
		End:          f.End(),
		Data:         data,
	})
	if err != nil {
		return false, err
	}
	return out.Duplicate, nil
}
