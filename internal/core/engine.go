package core

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"rentcore/pkg/domain"
)

// Engine builds the document hierarchy of a portfolio and answers document
// and statistics queries over it. It holds no state between calls.
type Engine struct {
	reader domain.PortfolioReader
	docs   domain.DocumentLister
	opts   options
}

// NewEngine constructs an engine over the relational fetchers and the
// document store client.
func NewEngine(reader domain.PortfolioReader, docs domain.DocumentLister, opts ...Option) *Engine {
	return &Engine{reader: reader, docs: docs, opts: applyOptions(opts)}
}

// NewPortfolioEngine is a convenience for stores implementing both contracts.
func NewPortfolioEngine(p domain.Portfolio, opts ...Option) *Engine {
	return NewEngine(p, p, opts...)
}

// BuildTree reconstructs the forest for scopeEntityID, or for every entity
// when the scope is empty. Fetch failures below the property list mark the
// affected node and the rest of the tree completes. Entity and property list
// failures and cancellation abort the build.
func (e *Engine) BuildTree(ctx context.Context, scopeEntityID string) (forest Forest, err error) {
	ctx, done := observe(ctx, e.opts.tracer, e.opts.metrics, "engine.build_tree")
	defer func() { done(err) }()

	b := &builder{
		reader: e.reader,
		docs:   e.docs,
		logger: e.opts.logger,
		sem:    semaphore.NewWeighted(e.opts.maxConcurrency),
		limit:  int(e.opts.maxConcurrency),
	}

	entities, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Entity, error) {
		return e.reader.ListEntities(ctx, scopeEntityID)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Forest{}, ctxErr
		}
		return Forest{}, &domain.FetchError{Entity: domain.EntityHolding, ID: scopeEntityID, Err: err}
	}
	if scopeEntityID != "" && len(entities) == 0 {
		return Forest{}, domain.NotFoundError{Entity: domain.EntityHolding, ID: scopeEntityID}
	}
	sortEntities(entities)

	nodes := make([]EntityNode, len(entities))
	g, gctx := b.group(ctx)
	for i, entity := range entities {
		g.Go(func() error {
			nodes[i].Entity = entity
			return b.buildEntity(gctx, &nodes[i])
		})
	}
	if err := g.Wait(); err != nil {
		return Forest{}, err
	}
	if err := ctx.Err(); err != nil {
		return Forest{}, err
	}

	forest = Forest{Entities: nodes, Diagnostics: diagnose(nodes)}
	e.logDiagnostics(forest.Diagnostics)
	e.opts.logger.Debug("tree built", "scope", scopeEntityID, "entities", len(nodes), "documents", forest.DocumentCount())
	return forest, nil
}

func (e *Engine) logDiagnostics(d Diagnostics) {
	log := e.opts.logger
	for _, n := range d.FailedNodes {
		log.Error("node fetch failed", "kind", string(n.Kind), "id", n.ID, "error", n.Error)
	}
	for _, m := range d.MissingTenantGroups {
		log.Warn("active lease references missing tenant group", "lot_id", m.LotID, "tenant_group_id", m.TenantGroupID)
	}
	for _, m := range d.DuplicateLeases {
		log.Warn("duplicate active lease", "lot_id", m.LotID, "tenant_group_id", m.TenantGroupID)
	}
	for _, id := range d.MultipleActiveGroups {
		log.Warn("lot has several active tenant groups", "lot_id", id)
	}
	if len(d.AmbiguousDocuments) > 0 {
		log.Warn("ambiguous document associations", "count", len(d.AmbiguousDocuments), "document_ids", d.AmbiguousDocuments)
	}
}

// builder carries the per-build collaborators. The semaphore is held only
// while a single fetch is in flight. Every fan-out over a fetched list runs
// in a group capped at limit goroutines, so the number of live goroutines
// depends on the tree depth and not on the size of the portfolio.
type builder struct {
	reader domain.PortfolioReader
	docs   domain.DocumentLister
	logger Logger
	sem    *semaphore.Weighted
	limit  int
}

// group returns an errgroup for one level of the tree. The caller blocks in
// Go once limit children are running; children never wait on their parent.
func (b *builder) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	return g, gctx
}

func fetch[T any](ctx context.Context, sem *semaphore.Weighted, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer sem.Release(1)
	return fn(ctx)
}

func (b *builder) buildEntity(ctx context.Context, node *EntityNode) error {
	props, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Property, error) {
		return b.reader.ListProperties(ctx, node.Entity.ID)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.FetchError{Entity: domain.EntityProperty, ID: node.Entity.ID, Err: err}
	}
	sortProperties(props)

	node.Properties = make([]PropertyNode, len(props))
	g, gctx := b.group(ctx)
	for i, prop := range props {
		g.Go(func() error {
			node.Properties[i].Property = prop
			return b.buildProperty(gctx, node.Entity.ID, &node.Properties[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	node.rollUp()
	return nil
}

func (b *builder) buildProperty(ctx context.Context, entityID string, node *PropertyNode) error {
	node.Lots = []LotNode{}
	lots, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Lot, error) {
		return b.reader.ListLots(ctx, node.Property.ID)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		node.fail(&domain.FetchError{Entity: domain.EntityLot, ID: node.Property.ID, Err: err})
		node.rollUp()
		return nil
	}
	sortLots(lots)

	node.Lots = make([]LotNode, len(lots))
	g, gctx := b.group(ctx)
	for i, lot := range lots {
		g.Go(func() error {
			node.Lots[i].Lot = lot
			place := Placement{EntityID: entityID, PropertyID: node.Property.ID, LotID: lot.ID}
			return b.buildLot(gctx, place, &node.Lots[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	node.rollUp()
	return nil
}

// buildLot runs the document, lease and candidate branches of a lot
// concurrently. Each branch reports its own fetch error; any of them fails
// the lot.
func (b *builder) buildLot(ctx context.Context, place Placement, node *LotNode) error {
	lotID := node.Lot.ID
	var docErr, leaseErr, candErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.listDocuments(gctx, domain.OwnerLot, lotID)
		if err != nil {
			docErr = err
			return gctx.Err()
		}
		node.Documents, node.Ambiguous = b.partition(docs, domain.OwnerLot, lotID, place)
		return nil
	})
	g.Go(func() error {
		leaseErr = b.buildTenantGroups(gctx, place, node)
		if leaseErr != nil {
			return gctx.Err()
		}
		return nil
	})
	g.Go(func() error {
		candErr = b.buildCandidates(gctx, place, node)
		if candErr != nil {
			return gctx.Err()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := firstError(docErr, leaseErr, candErr); err != nil {
		node.fail(err)
	}
	node.rollUp()
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildTenantGroups follows the active leases of the lot to their tenant
// groups. Group ids are de-duplicated in first-occurrence order and a missing
// group skips its lease.
func (b *builder) buildTenantGroups(ctx context.Context, place Placement, node *LotNode) error {
	leases, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Lease, error) {
		return b.reader.ListActiveLeases(ctx, node.Lot.ID)
	})
	if err != nil {
		return &domain.FetchError{Entity: domain.EntityLease, ID: node.Lot.ID, Err: err}
	}

	seen := make(map[string]struct{}, len(leases))
	ids := make([]string, 0, len(leases))
	for _, lease := range leases {
		if !lease.IsActive() || lease.TenantGroupID == "" {
			continue
		}
		if _, dup := seen[lease.TenantGroupID]; dup {
			node.duplicateGroups = append(node.duplicateGroups, lease.TenantGroupID)
			continue
		}
		seen[lease.TenantGroupID] = struct{}{}
		ids = append(ids, lease.TenantGroupID)
	}

	groups := make([]TenantGroupNode, len(ids))
	missing := make([]bool, len(ids))
	g, gctx := b.group(ctx)
	for i, id := range ids {
		g.Go(func() error {
			groups[i].Group.ID = id
			found, err := b.buildTenantGroup(gctx, place, &groups[i])
			missing[i] = !found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	node.TenantGroups = make([]TenantGroupNode, 0, len(groups))
	for i := range groups {
		if missing[i] {
			node.missingGroups = append(node.missingGroups, ids[i])
			continue
		}
		node.TenantGroups = append(node.TenantGroups, groups[i])
	}
	sort.SliceStable(node.TenantGroups, func(i, j int) bool {
		return node.TenantGroups[i].Group.ID < node.TenantGroups[j].Group.ID
	})
	return nil
}

// buildTenantGroup reports false when the group does not exist. Errors
// returned from here are fatal; fetch failures mark the node instead.
func (b *builder) buildTenantGroup(ctx context.Context, place Placement, node *TenantGroupNode) (bool, error) {
	groupID := node.Group.ID
	group, err := fetch(ctx, b.sem, func(ctx context.Context) (TenantGroup, error) {
		return b.reader.GetTenantGroup(ctx, groupID)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		node.fail(&domain.FetchError{Entity: domain.EntityTenantGroup, ID: groupID, Err: err})
		node.rollUp()
		return true, nil
	}
	node.Group = group

	var docErr, tenantErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.listDocuments(gctx, domain.OwnerTenantGroup, groupID)
		if err != nil {
			docErr = err
			return gctx.Err()
		}
		node.Documents, node.Ambiguous = b.partition(docs, domain.OwnerTenantGroup, groupID, place)
		return nil
	})
	g.Go(func() error {
		tenants, err := fetch(gctx, b.sem, func(ctx context.Context) ([]Tenant, error) {
			return b.reader.ListTenants(ctx, groupID)
		})
		if err != nil {
			tenantErr = &domain.FetchError{Entity: domain.EntityTenant, ID: groupID, Err: err}
			return gctx.Err()
		}
		sortTenants(tenants)
		node.Tenants = make([]TenantNode, len(tenants))
		tg, tctx := b.group(gctx)
		for i, tenant := range tenants {
			tg.Go(func() error {
				tn := &node.Tenants[i]
				tn.Tenant = tenant
				docs, err := b.listDocuments(tctx, domain.OwnerTenant, tenant.ID)
				if err != nil {
					if ctxErr := tctx.Err(); ctxErr != nil {
						return ctxErr
					}
					tn.fail(err)
				} else {
					tn.Documents, tn.Ambiguous = b.partition(docs, domain.OwnerTenant, tenant.ID, place)
				}
				tn.rollUp()
				return nil
			})
		}
		return tg.Wait()
	})
	if err := g.Wait(); err != nil {
		return true, err
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	if err := firstError(docErr, tenantErr); err != nil {
		node.fail(err)
	}
	node.rollUp()
	return true, nil
}

func (b *builder) buildCandidates(ctx context.Context, place Placement, node *LotNode) error {
	candidates, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Candidate, error) {
		return b.reader.ListCandidates(ctx, node.Lot.ID)
	})
	if err != nil {
		return &domain.FetchError{Entity: domain.EntityCandidate, ID: node.Lot.ID, Err: err}
	}
	sortCandidates(candidates)

	nodes := make([]CandidateNode, len(candidates))
	g, gctx := b.group(ctx)
	for i, candidate := range candidates {
		g.Go(func() error {
			cn := &nodes[i]
			cn.Candidate = candidate
			docs, err := b.listDocuments(gctx, domain.OwnerCandidate, candidate.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				cn.fail(err)
			} else {
				cn.Documents, cn.Ambiguous = b.partition(docs, domain.OwnerCandidate, candidate.ID, place)
			}
			cn.rollUp()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	node.Candidates = nodes
	return nil
}

func (b *builder) listDocuments(ctx context.Context, kind domain.OwnerKind, id string) ([]Document, error) {
	docs, err := fetch(ctx, b.sem, func(ctx context.Context) ([]Document, error) {
		return b.docs.ListDocuments(ctx, domain.DocumentQuery{Kind: kind, ID: id})
	})
	if err != nil {
		return nil, &domain.FetchError{Entity: domain.EntityDocument, ID: id, Err: err}
	}
	return docs, nil
}

// partition resolves each fetched document once. Documents owned by exactly
// the queried record are returned first and documents without a single owner
// second. A document resolving to some other concrete owner does not belong
// under this node at all and is dropped.
func (b *builder) partition(docs []Document, kind domain.OwnerKind, id string, place Placement) (owned, ambiguous []ScopedDocument) {
	owned = make([]ScopedDocument, 0, len(docs))
	ambiguous = make([]ScopedDocument, 0)
	for _, doc := range docs {
		scoped := ScopedDocument{Document: doc, Owner: domain.ResolveOwner(doc), Placement: place}
		switch {
		case scoped.Owner.Is(kind, id):
			owned = append(owned, scoped)
		case scoped.Owner.Ambiguous():
			ambiguous = append(ambiguous, scoped)
		default:
			b.logger.Warn("document listed under foreign owner",
				"document_id", doc.ID, "queried_kind", string(kind), "queried_id", id,
				"owner_kind", string(scoped.Owner.Kind), "owner_id", scoped.Owner.ID)
		}
	}
	sortDocuments(owned)
	sortDocuments(ambiguous)
	return owned, ambiguous
}

func sortEntities(in []Entity) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Name != in[j].Name {
			return in[i].Name < in[j].Name
		}
		return in[i].ID < in[j].ID
	})
}

func sortProperties(in []Property) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Name != in[j].Name {
			return in[i].Name < in[j].Name
		}
		return in[i].ID < in[j].ID
	})
}

func sortLots(in []Lot) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Name != in[j].Name {
			return in[i].Name < in[j].Name
		}
		return in[i].ID < in[j].ID
	})
}

func sortTenants(in []Tenant) {
	sort.SliceStable(in, func(i, j int) bool {
		return personLess(in[i].LastName, in[i].FirstName, in[i].ID, in[j].LastName, in[j].FirstName, in[j].ID)
	})
}

func sortCandidates(in []Candidate) {
	sort.SliceStable(in, func(i, j int) bool {
		return personLess(in[i].LastName, in[i].FirstName, in[i].ID, in[j].LastName, in[j].FirstName, in[j].ID)
	})
}

func personLess(lastA, firstA, idA, lastB, firstB, idB string) bool {
	if lastA != lastB {
		return lastA < lastB
	}
	if firstA != firstB {
		return firstA < firstB
	}
	return idA < idB
}

func sortDocuments(in []ScopedDocument) {
	sort.SliceStable(in, func(i, j int) bool {
		if !in[i].UploadedAt.Equal(in[j].UploadedAt) {
			return in[i].UploadedAt.After(in[j].UploadedAt)
		}
		return in[i].ID < in[j].ID
	})
}
