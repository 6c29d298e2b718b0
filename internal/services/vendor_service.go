// Package services – VendorService
//
// This file implements VendorService, the request-scoped entry point for
// the vendor cloud integration: one-shot syncs, device listing and
// credential checks. Syncs for the same user may overlap; the unique index
// on recordings decides which insert wins.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
)

// VendorClient is the read-only slice of the vendor API used outside syncs.
type VendorClient interface {
	ListDevices(ctx context.Context) ([]vendor.Device, error)
	TestConnection(ctx context.Context) (bool, error)
}

// Syncer runs one vendor sync for a user.
type Syncer interface {
	SyncUser(ctx context.Context, userID string) (*ingest.SyncReport, error)
}

// VendorService exposes vendor operations for the current user.
type VendorService struct {
	DB     *gorm.DB
	Sync   Syncer
	Client func(acct *domain.VendorAccount) VendorClient
}

// SyncNow imports the user's new vendor recordings. A partial report is
// returned together with an error when the run aborted midway.
func (s *VendorService) SyncNow(ctx context.Context, userID string) (*ingest.SyncReport, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "SyncNow", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return s.Sync.SyncUser(ctx, userID)
}

// Devices lists the recorders bound to the user's vendor account.
func (s *VendorService) Devices(ctx context.Context, userID string) ([]vendor.Device, error) {
	c, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}
	devs, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if devs == nil {
		devs = []vendor.Device{}
	}
	return devs, nil
}

// Test reports whether the stored credential is accepted by the vendor.
func (s *VendorService) Test(ctx context.Context, userID string) (bool, error) {
	c, err := s.client(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.TestConnection(ctx)
}

func (s *VendorService) client(ctx context.Context, userID string) (VendorClient, error) {
	acct, err := repo.GetVendorAccount(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ingest.ErrNoVendorAccount
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor account: %w", err)
	}
	return s.Client(acct), nil
}
