package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/blob"
	"rentcore/pkg/domain"
)

func newServiceWithLot(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	ctx := context.Background()
	entity, _, err := svc.CreateEntity(ctx, domain.Entity{Name: "Alpha"})
	require.NoError(t, err)
	property, _, err := svc.CreateProperty(ctx, domain.Property{Base: domain.Base{ID: "P1"}, Name: "Rue Neuve", EntityID: entity.ID})
	require.NoError(t, err)
	_, _, err = svc.CreateLot(ctx, domain.Lot{Base: domain.Base{ID: "L1"}, Name: "Lot 1", PropertyID: property.ID})
	require.NoError(t, err)
	return svc
}

func TestServiceAttachDocument(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	logger := &captureLogger{}
	svc := newServiceWithLot(t, WithClock(ClockFunc(func() time.Time { return fixed })), WithLogger(logger))
	ctx := context.Background()

	doc, res, err := svc.AttachDocument(ctx, domain.Document{
		Title:    "Plan",
		FileName: "plan du lot.pdf",
		Category: "plan",
		LotID:    domain.StringPtr("L1"),
	}, strings.NewReader("%PDF-1.7 plan"))
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, int64(len("%PDF-1.7 plan")), doc.FileSize)
	assert.Equal(t, "application/pdf", doc.FileType)
	assert.Equal(t, "documents/lot/L1/"+doc.ID+"/plan_du_lot.pdf", doc.StorageKey)
	assert.True(t, fixed.Equal(doc.UploadedAt))
	assert.True(t, logger.has("i:document attached"))

	info, rc, err := svc.Blobs().Get(ctx, doc.StorageKey)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 plan", string(body))
	assert.Equal(t, "application/pdf", info.ContentType)

	url, err := svc.DocumentURL(ctx, doc.ID, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, doc.StorageKey)

	docs, err := svc.Engine().Documents(ctx, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func TestServiceAttachDocumentRollsBackBlob(t *testing.T) {
	svc := newServiceWithLot(t)
	ctx := context.Background()

	first, _, err := svc.AttachDocument(ctx, domain.Document{Base: domain.Base{ID: "doc-1"}, FileName: "a.txt", LotID: domain.StringPtr("L1")}, strings.NewReader("a"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", first.FileType)

	_, _, err = svc.AttachDocument(ctx, domain.Document{Base: domain.Base{ID: "doc-1"}, FileName: "b.txt", LotID: domain.StringPtr("L1")}, strings.NewReader("b"))
	require.Error(t, err)

	infos, err := svc.Blobs().List(ctx, "documents/lot/L1/doc-1/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, first.StorageKey, infos[0].Key)
}

func TestServiceDocumentURLErrors(t *testing.T) {
	svc := newServiceWithLot(t)
	ctx := context.Background()

	_, err := svc.DocumentURL(ctx, "missing", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	doc, _, err := svc.CreateDocument(ctx, domain.Document{FileName: "meta-only.pdf", LotID: domain.StringPtr("L1")})
	require.NoError(t, err)
	_, err = svc.DocumentURL(ctx, doc.ID, time.Minute)
	assert.True(t, errors.Is(err, blob.ErrNotFound))

	bare := NewService(svc.Store(), nil)
	_, _, err = bare.AttachDocument(ctx, domain.Document{FileName: "x.pdf"}, strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrNoBlobStore))
}

func TestServiceUpdateLeaseStatus(t *testing.T) {
	fixed := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	svc := newServiceWithLot(t, WithClock(ClockFunc(func() time.Time { return fixed })))
	ctx := context.Background()

	group, _, err := svc.CreateTenantGroup(ctx, domain.TenantGroup{})
	require.NoError(t, err)
	_, _, err = svc.CreateTenant(ctx, domain.Tenant{TenantGroupID: group.ID, FirstName: "Anne", LastName: "Dupont"})
	require.NoError(t, err)
	_, _, err = svc.CreateDocument(ctx, domain.Document{FileName: "bail.pdf", TenantGroupID: domain.StringPtr(group.ID)})
	require.NoError(t, err)
	lease, _, err := svc.CreateLease(ctx, domain.Lease{LotID: "L1", TenantGroupID: group.ID, Status: domain.LeaseStatusActive})
	require.NoError(t, err)

	stats, err := svc.Engine().Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)

	updated, _, err := svc.UpdateLeaseStatus(ctx, lease.ID, domain.LeaseStatusTerminated)
	require.NoError(t, err)
	require.NotNil(t, updated.EndDate)
	assert.True(t, fixed.Equal(*updated.EndDate))

	stats, err = svc.Engine().Stats(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestServiceImportSnapshot(t *testing.T) {
	source := newScenarioStore(t)
	snap := source.ExportState()
	metrics := &captureMetricsRecorder{}
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetricsRecorder(metrics))

	res, err := svc.ImportSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, hasViolation(res, "document_association", domain.SeverityWarn))
	assert.True(t, metrics.has("service.import_snapshot", true))

	want, err := NewPortfolioEngine(source).BuildTree(context.Background(), "")
	require.NoError(t, err)
	got, err := svc.Engine().BuildTree(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, want.DocumentCount(), got.DocumentCount())
	assert.Equal(t, 8, lotNode(t, got, "L1").DocumentCount)

	_, err = svc.ImportSnapshot(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, metrics.has("service.import_snapshot", false))
}
