package relational

import (
	"time"

	"rentcore/pkg/domain"
)

type entityRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Type      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (entityRow) TableName() string { return "entities" }

type propertyRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	EntityID  string `gorm:"index;not null"`
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (propertyRow) TableName() string { return "properties" }

type lotRow struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	PropertyID string `gorm:"index;not null"`
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (lotRow) TableName() string { return "lots" }

type leaseRow struct {
	ID            string `gorm:"primaryKey"`
	LotID         string `gorm:"index:idx_leases_lot_status;not null"`
	Status        string `gorm:"index:idx_leases_lot_status"`
	TenantGroupID string `gorm:"not null"`
	StartDate     time.Time
	EndDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (leaseRow) TableName() string { return "leases" }

type tenantGroupRow struct {
	ID        string `gorm:"primaryKey"`
	GroupType string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tenantGroupRow) TableName() string { return "tenant_groups" }

type tenantRow struct {
	ID            string `gorm:"primaryKey"`
	TenantGroupID string `gorm:"index;not null"`
	FirstName     string
	LastName      string
	Email         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (tenantRow) TableName() string { return "tenants" }

type candidateRow struct {
	ID        string `gorm:"primaryKey"`
	LotID     string `gorm:"index;not null"`
	FirstName string
	LastName  string
	Email     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (candidateRow) TableName() string { return "candidates" }

type documentRow struct {
	ID            string `gorm:"primaryKey"`
	FileName      string `gorm:"not null"`
	Title         string
	Description   string
	Category      string `gorm:"index"`
	FileSize      int64
	FileType      string
	UploadedAt    time.Time
	Tags          []string `gorm:"serializer:json"`
	StorageKey    string
	LotID         *string `gorm:"index"`
	TenantGroupID *string `gorm:"index"`
	TenantID      *string `gorm:"index"`
	CandidateID   *string `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (documentRow) TableName() string { return "documents" }

func allModels() []any {
	return []any{
		&entityRow{},
		&propertyRow{},
		&lotRow{},
		&leaseRow{},
		&tenantGroupRow{},
		&tenantRow{},
		&candidateRow{},
		&documentRow{},
	}
}

func base(id string, created, updated time.Time) domain.Base {
	return domain.Base{ID: id, CreatedAt: created, UpdatedAt: updated}
}

func (r entityRow) toDomain() domain.Entity {
	return domain.Entity{Base: base(r.ID, r.CreatedAt, r.UpdatedAt), Name: r.Name, Type: domain.EntityKind(r.Type)}
}

func (r propertyRow) toDomain() domain.Property {
	return domain.Property{Base: base(r.ID, r.CreatedAt, r.UpdatedAt), Name: r.Name, EntityID: r.EntityID, Address: r.Address}
}

func (r lotRow) toDomain() domain.Lot {
	return domain.Lot{Base: base(r.ID, r.CreatedAt, r.UpdatedAt), Name: r.Name, PropertyID: r.PropertyID, Status: domain.LotStatus(r.Status)}
}

func (r leaseRow) toDomain() domain.Lease {
	return domain.Lease{
		Base:          base(r.ID, r.CreatedAt, r.UpdatedAt),
		LotID:         r.LotID,
		TenantGroupID: r.TenantGroupID,
		Status:        domain.LeaseStatus(r.Status),
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	}
}

func (r tenantGroupRow) toDomain() domain.TenantGroup {
	return domain.TenantGroup{Base: base(r.ID, r.CreatedAt, r.UpdatedAt), GroupType: domain.GroupType(r.GroupType)}
}

func (r tenantRow) toDomain() domain.Tenant {
	return domain.Tenant{
		Base:          base(r.ID, r.CreatedAt, r.UpdatedAt),
		TenantGroupID: r.TenantGroupID,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
	}
}

func (r candidateRow) toDomain() domain.Candidate {
	return domain.Candidate{
		Base:      base(r.ID, r.CreatedAt, r.UpdatedAt),
		LotID:     r.LotID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Status:    domain.CandidateStatus(r.Status),
	}
}

func (r documentRow) toDomain() domain.Document {
	return domain.Document{
		Base:          base(r.ID, r.CreatedAt, r.UpdatedAt),
		FileName:      r.FileName,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		FileSize:      r.FileSize,
		FileType:      r.FileType,
		UploadedAt:    r.UploadedAt,
		Tags:          append([]string(nil), r.Tags...),
		StorageKey:    r.StorageKey,
		LotID:         r.LotID,
		TenantGroupID: r.TenantGroupID,
		TenantID:      r.TenantID,
		CandidateID:   r.CandidateID,
	}
}

func documentFromDomain(d domain.Document) documentRow {
	return documentRow{
		ID:            d.ID,
		FileName:      d.FileName,
		Title:         d.Title,
		Description:   d.Description,
		Category:      d.Category,
		FileSize:      d.FileSize,
		FileType:      d.FileType,
		UploadedAt:    d.UploadedAt,
		Tags:          d.Tags,
		StorageKey:    d.StorageKey,
		LotID:         d.LotID,
		TenantGroupID: d.TenantGroupID,
		TenantID:      d.TenantID,
		CandidateID:   d.CandidateID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
