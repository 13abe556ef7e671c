package core

// Flatten lists every document reachable from the forest in pre-order: lot
// documents, lot ambiguous documents, then each tenant group (its documents,
// ambiguous documents and tenants) and finally the candidates. Failed subtrees
// contribute nothing.
//
// Ambiguous documents appear once even when several queries returned them.
// Owned documents appear once per lot they were reached through, so a tenant
// group leasing two lots lists its documents under both and the result stays
// consistent with the rolled-up counts.
func Flatten(forest Forest) []ScopedDocument {
	out := make([]ScopedDocument, 0, forest.DocumentCount())
	type placedKey struct{ docID, lotID string }
	seenOwned := make(map[placedKey]struct{})
	seenAmbiguous := make(map[string]struct{})

	add := func(docs []ScopedDocument) {
		for _, doc := range docs {
			if doc.Ambiguous() {
				if _, ok := seenAmbiguous[doc.ID]; ok {
					continue
				}
				seenAmbiguous[doc.ID] = struct{}{}
			} else {
				key := placedKey{docID: doc.ID, lotID: doc.Placement.LotID}
				if _, ok := seenOwned[key]; ok {
					continue
				}
				seenOwned[key] = struct{}{}
			}
			out = append(out, doc)
		}
	}

	for _, e := range forest.Entities {
		for _, p := range e.Properties {
			if p.Failed {
				continue
			}
			for _, l := range p.Lots {
				if l.Failed {
					continue
				}
				add(l.Documents)
				add(l.Ambiguous)
				for _, g := range l.TenantGroups {
					if g.Failed {
						continue
					}
					add(g.Documents)
					add(g.Ambiguous)
					for _, t := range g.Tenants {
						if t.Failed {
							continue
						}
						add(t.Documents)
						add(t.Ambiguous)
					}
				}
				for _, c := range l.Candidates {
					if c.Failed {
						continue
					}
					add(c.Documents)
					add(c.Ambiguous)
				}
			}
		}
	}
	return out
}
