package workers

import (
	"sort"
	"strings"
)

// Matches reports whether p passes every set field of f. Search is a
// case-insensitive substring match over name, skills and description.
func (f Filter) Matches(p Profile) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.ListingType != "" && p.ListingType != f.ListingType {
		return false
	}
	if f.Availability != "" && p.Availability != f.Availability {
		return false
	}
	if f.Verified != nil && p.Verified != *f.Verified {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.MinRating != nil && p.Rating < *f.MinRating {
		return false
	}
	if f.Search != "" {
		return matchesSearch(p, strings.ToLower(f.Search))
	}
	return true
}

func matchesSearch(p Profile, needle string) bool {
	if strings.Contains(strings.ToLower(p.DisplayName), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, s := range p.Skills {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// SortForDiscovery orders verified first, then by rating, then pro workers.
func SortForDiscovery(ps []Profile) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Verified != b.Verified {
			return a.Verified
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.ProWorker != b.ProWorker {
			return a.ProWorker
		}
		return false
	})
}
