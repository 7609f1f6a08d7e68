package skills

import (
	"context"
	"sort"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// Filters narrows a search. Empty fields match everything.
type Filters struct {
	Category string                   `json:"category,omitempty"`
	Tags     []string                 `json:"tags,omitempty"`
	Type     skilltypes.ExecutionKind `json:"type,omitempty"`
}

// Search returns the skills whose name, description or tags contain query
// (case-insensitive) and that satisfy filters, sorted by name. An empty
// query matches every skill.
func (r *Registry) Search(query string, filters Filters) []*skilltypes.Skill {
	query = strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	var matches []*skilltypes.Skill
	for _, skill := range r.skills {
		if !filters.match(skill) {
			continue
		}
		if query != "" && !matchesQuery(skill, query) {
			continue
		}
		matches = append(matches, skill)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Name < matches[j].Name
	})
	return matches
}

func (f Filters) match(skill *skilltypes.Skill) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, skill.Category) {
		return false
	}
	if f.Type != "" && f.Type != skill.ExecutionKind() {
		return false
	}
	for _, tag := range f.Tags {
		if !skill.HasTag(tag) {
			return false
		}
	}
	return true
}

func matchesQuery(skill *skilltypes.Skill, query string) bool {
	if strings.Contains(strings.ToLower(skill.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(skill.Description), query) {
		return true
	}
	for _, tag := range skill.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// Stats summarises the registry
type Stats struct {
	TotalSkills     int                              `json:"total_skills"`
	ByCategory      map[string]int                   `json:"by_category"`
	ByOrigin        map[skilltypes.Origin]int        `json:"by_origin"`
	ByExecutionType map[skilltypes.ExecutionKind]int `json:"by_execution_type"`
	Discovered      int                              `json:"discovered"`
	Registered      int                              `json:"registered"`
	Invalid         int                              `json:"invalid"`
	Overridden      int                              `json:"overridden"`
	CacheSize       int                              `json:"cache_size"`
	CacheHits       int64                            `json:"cache_hits"`
	CacheMisses     int64                            `json:"cache_misses"`
	Executions      int64                            `json:"executions"`
}

// Stats returns counts by category, origin and execution type together with
// discovery and cache figures. Executions is only populated when a recorder
// is configured.
func (r *Registry) Stats(ctx context.Context) Stats {
	stats := Stats{
		ByCategory:      make(map[string]int),
		ByOrigin:        make(map[skilltypes.Origin]int),
		ByExecutionType: make(map[skilltypes.ExecutionKind]int),
		CacheSize:       r.cache.Len(),
		CacheHits:       r.cache.Hits(),
		CacheMisses:     r.cache.Misses(),
	}

	r.mu.RLock()
	stats.TotalSkills = len(r.skills)
	stats.Discovered = r.discovered
	stats.Registered = len(r.skills)
	if r.lastReport != nil {
		stats.Invalid = len(r.lastReport.Skipped)
		stats.Overridden = len(r.lastReport.Overridden)
	}
	for _, skill := range r.skills {
		category := skill.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.ByCategory[category]++
		stats.ByOrigin[skill.Source.Origin]++
		stats.ByExecutionType[skill.ExecutionKind()]++
	}
	r.mu.RUnlock()

	if r.recorder != nil {
		if n, err := r.recorder.Count(ctx); err == nil {
			stats.Executions = n
		}
	}
	return stats
}
