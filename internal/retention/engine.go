// Package retention decides which backup artifacts to delete so that the
// kept set is bounded in count and age, spread evenly across the retention
// window, and always contains the newest artifact.
package retention

import (
	"sort"
	"time"

	"github.com/aelpxy/volsnap/internal/artifact"
	"github.com/aelpxy/volsnap/pkg/models"
)

type dated struct {
	name string
	at   time.Time
}

// SelectForDeletion returns the names from artifacts that policy does not
// retain, in input order. It never fails: names that do not parse are always
// selected.
func SelectForDeletion(artifacts []string, policy models.RetentionPolicy, now time.Time) []string {
	pool := survivors(artifacts, policy, now)
	retained := thin(pool, policy.Count)

	var doomed []string
	for _, name := range artifacts {
		if _, ok := retained[name]; !ok {
			doomed = append(doomed, name)
		}
	}
	return doomed
}

// Retained is the complement of SelectForDeletion.
func Retained(artifacts []string, policy models.RetentionPolicy, now time.Time) []string {
	doomed := make(map[string]struct{})
	for _, name := range SelectForDeletion(artifacts, policy, now) {
		doomed[name] = struct{}{}
	}

	var kept []string
	for _, name := range artifacts {
		if _, ok := doomed[name]; !ok {
			kept = append(kept, name)
		}
	}
	return kept
}

// survivors parses every name and drops the ones at or before the cutoff,
// returning the rest newest first.
func survivors(artifacts []string, policy models.RetentionPolicy, now time.Time) []dated {
	var cutoff time.Time
	bounded := policy.PeriodDays >= 0
	if bounded {
		cutoff = now.AddDate(0, 0, -policy.PeriodDays)
	}

	pool := make([]dated, 0, len(artifacts))
	for _, name := range artifacts {
		at, ok := artifact.Parse(name)
		if !ok {
			continue
		}
		if bounded && !at.After(cutoff) {
			continue
		}
		pool = append(pool, dated{name: name, at: at})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].at.After(pool[j].at)
	})
	return pool
}

// thin repeatedly keeps evenly spaced entries from pool until count entries
// are retained or the pool runs dry. Index 0 is kept on every pass, so the
// newest survivor is always retained.
func thin(pool []dated, count int) map[string]struct{} {
	retained := make(map[string]struct{})
	if count < 0 {
		for _, d := range pool {
			retained[d.name] = struct{}{}
		}
		return retained
	}

	for len(retained) < count && len(pool) > 0 {
		remaining := count - len(retained)
		interval := (len(pool) + remaining - 1) / remaining

		var rest []dated
		last := 0
		for i, d := range pool {
			if i == 0 || i-last >= interval {
				retained[d.name] = struct{}{}
				last = i
				continue
			}
			rest = append(rest, d)
		}
		pool = rest
	}
	return retained
}
