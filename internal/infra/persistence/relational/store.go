// Package relational reads the portfolio from one table per record type
// through GORM. It implements the fetcher and document-lister contracts with
// indexed WHERE queries, so the hierarchy builder can run against a normalised
// database without hydrating a full snapshot in memory.
package relational

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"rentcore/internal/infra/persistence/memory"
	"rentcore/pkg/domain"
)

var _ domain.Portfolio = (*Store)(nil)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Store is a read-mostly GORM-backed portfolio.
type Store struct {
	db *gorm.DB
}

// Open connects using the named dialect and migrates the schema.
func Open(dialect, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres, "pg":
		dialector = postgres.Open(dsn)
	case DialectSQLite, "":
		if dsn == "" {
			dsn = "rentcore-relational.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported relational dialect %q", dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return New(db)
}

// New wraps an existing connection and runs AutoMigrate.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the GORM handle for tests and tooling.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Import upserts every record of a memory snapshot in a single transaction.
func (s *Store) Import(ctx context.Context, snap memory.Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
		for _, e := range snap.Entities {
			row := entityRow{ID: e.ID, Name: e.Name, Type: string(e.Type), CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import entity %s: %w", e.ID, err)
			}
		}
		for _, p := range snap.Properties {
			row := propertyRow{ID: p.ID, Name: p.Name, EntityID: p.EntityID, Address: p.Address, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import property %s: %w", p.ID, err)
			}
		}
		for _, l := range snap.Lots {
			row := lotRow{ID: l.ID, Name: l.Name, PropertyID: l.PropertyID, Status: string(l.Status), CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import lot %s: %w", l.ID, err)
			}
		}
		for _, l := range snap.Leases {
			row := leaseRow{
				ID:            l.ID,
				LotID:         l.LotID,
				Status:        string(l.Status),
				TenantGroupID: l.TenantGroupID,
				StartDate:     l.StartDate,
				EndDate:       l.EndDate,
				CreatedAt:     l.CreatedAt,
				UpdatedAt:     l.UpdatedAt,
			}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import lease %s: %w", l.ID, err)
			}
		}
		for _, g := range snap.TenantGroups {
			row := tenantGroupRow{ID: g.ID, GroupType: string(g.GroupType), CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import tenant group %s: %w", g.ID, err)
			}
		}
		for _, t := range snap.Tenants {
			row := tenantRow{
				ID:            t.ID,
				TenantGroupID: t.TenantGroupID,
				FirstName:     t.FirstName,
				LastName:      t.LastName,
				Email:         t.Email,
				CreatedAt:     t.CreatedAt,
				UpdatedAt:     t.UpdatedAt,
			}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import tenant %s: %w", t.ID, err)
			}
		}
		for _, c := range snap.Candidates {
			row := candidateRow{
				ID:        c.ID,
				LotID:     c.LotID,
				FirstName: c.FirstName,
				LastName:  c.LastName,
				Email:     c.Email,
				Status:    string(c.Status),
				CreatedAt: c.CreatedAt,
				UpdatedAt: c.UpdatedAt,
			}
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import candidate %s: %w", c.ID, err)
			}
		}
		for _, d := range snap.Documents {
			row := documentFromDomain(d)
			if err := upsert.Create(&row).Error; err != nil {
				return fmt.Errorf("import document %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// ListEntities returns every entity, or only scopeID when it is non-empty.
func (s *Store) ListEntities(ctx context.Context, scopeID string) ([]domain.Entity, error) {
	var rows []entityRow
	q := s.db.WithContext(ctx).Order("name, id")
	if scopeID != "" {
		q = q.Where("id = ?", scopeID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListProperties returns the properties of entityID.
func (s *Store) ListProperties(ctx context.Context, entityID string) ([]domain.Property, error) {
	var rows []propertyRow
	if err := s.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Property, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListLots returns the lots of propertyID.
func (s *Store) ListLots(ctx context.Context, propertyID string) ([]domain.Lot, error) {
	var rows []lotRow
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Lot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListActiveLeases returns the active leases of lotID.
func (s *Store) ListActiveLeases(ctx context.Context, lotID string) ([]domain.Lease, error) {
	var rows []leaseRow
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND status = ?", lotID, string(domain.LeaseStatusActive)).
		Order("start_date, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lease, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetTenantGroup returns the group or a domain.NotFoundError.
func (s *Store) GetTenantGroup(ctx context.Context, groupID string) (domain.TenantGroup, error) {
	var row tenantGroupRow
	err := s.db.WithContext(ctx).Where("id = ?", groupID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TenantGroup{}, domain.NotFoundError{Entity: domain.EntityTenantGroup, ID: groupID}
	}
	if err != nil {
		return domain.TenantGroup{}, err
	}
	return row.toDomain(), nil
}

// ListTenants returns the members of groupID.
func (s *Store) ListTenants(ctx context.Context, groupID string) ([]domain.Tenant, error) {
	var rows []tenantRow
	if err := s.db.WithContext(ctx).Where("tenant_group_id = ?", groupID).Order("last_name, first_name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Tenant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListCandidates returns the applicants for lotID.
func (s *Store) ListCandidates(ctx context.Context, lotID string) ([]domain.Candidate, error) {
	var rows []candidateRow
	if err := s.db.WithContext(ctx).Where("lot_id = ?", lotID).Order("last_name, first_name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

var documentColumns = map[domain.OwnerKind]string{
	domain.OwnerLot:         "lot_id",
	domain.OwnerTenantGroup: "tenant_group_id",
	domain.OwnerTenant:      "tenant_id",
	domain.OwnerCandidate:   "candidate_id",
}

// ListDocuments returns documents whose queried foreign key equals q.ID.
func (s *Store) ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error) {
	column, ok := documentColumns[q.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported document query kind %q", q.Kind)
	}
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where(column+" = ?", q.ID).
		Order("uploaded_at DESC, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
