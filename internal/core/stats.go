package core

import (
	"strings"

	"rentcore/pkg/domain"
)

const uncategorized = "uncategorized"

// StatsSummary aggregates a flattened document set. Ambiguous documents are
// only counted in Ambiguous.
type StatsSummary struct {
	Total            int                      `json:"total"`
	TotalSize        int64                    `json:"total_size"`
	ByCategory       map[string]int           `json:"by_category"`
	DistinctTagCount int                      `json:"distinct_tag_count"`
	Ambiguous        int                      `json:"ambiguous"`
	ByAssociation    map[domain.OwnerKind]int `json:"by_association"`
}

// Summarize computes portfolio statistics over docs.
func Summarize(docs []ScopedDocument) StatsSummary {
	s := StatsSummary{
		ByCategory:    make(map[string]int),
		ByAssociation: make(map[domain.OwnerKind]int),
	}
	tags := make(map[string]struct{})
	for _, doc := range docs {
		if doc.Ambiguous() {
			s.Ambiguous++
			continue
		}
		s.Total++
		s.TotalSize += doc.FileSize
		category := doc.Category
		if category == "" {
			category = uncategorized
		}
		s.ByCategory[category]++
		s.ByAssociation[doc.Owner.Kind]++
		for _, tag := range doc.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				tags[tag] = struct{}{}
			}
		}
	}
	s.DistinctTagCount = len(tags)
	return s
}
