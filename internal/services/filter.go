package services

import (
	"superstore-dashboard/internal/models"
)

// Filter keeps the records whose Region, Segment and Category are all
// members of the selection. Matching is exact; an empty component yields an
// empty dataset. Record order is preserved.
func Filter(ds *Dataset, sel models.FilterSelection) *Dataset {
	out := &Dataset{
		Source:   ds.Source,
		Checksum: ds.Checksum,
		LoadedAt: ds.LoadedAt,
		Header:   ds.Header,
		Records:  []models.Record{},
	}
	if len(sel.Regions) == 0 || len(sel.Segments) == 0 || len(sel.Categories) == 0 {
		return out
	}

	regions := toSet(sel.Regions)
	segments := toSet(sel.Segments)
	categories := toSet(sel.Categories)

	out.Records = make([]models.Record, 0, len(ds.Records))
	for i := range ds.Records {
		rec := &ds.Records[i]
		if _, ok := regions[rec.Region]; !ok {
			continue
		}
		if _, ok := segments[rec.Segment]; !ok {
			continue
		}
		if _, ok := categories[rec.Category]; !ok {
			continue
		}
		out.Records = append(out.Records, *rec)
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
