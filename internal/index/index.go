// Package index maintains the in-memory concept and topic inverted
// indexes spec §4.5 describes as the O(1) candidate filter that makes
// retrieval tractable: term -> set<thread id> maps rebuilt from the store
// at startup and kept current via notify_thread_change as threads mutate.
package index

import (
	"strings"
	"sync"
)

// Index is a single term -> set<thread id> inverted index, safe for
// concurrent use since gossip, the thread manager, and the retriever all
// touch it from different goroutines/processes' in-process caches.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string]struct{}
}

func New() *Index {
	return &Index{postings: make(map[string]map[string]struct{})}
}

// Notify replaces the terms registered for threadID. Passing a nil terms
// slice removes the thread from the index entirely (the "None meaning
// remove" case in spec §4.5).
func (ix *Index) Notify(threadID string, terms []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for term, ids := range ix.postings {
		delete(ids, threadID)
		if len(ids) == 0 {
			delete(ix.postings, term)
		}
	}
	for _, term := range terms {
		key := normalize(term)
		if key == "" {
			continue
		}
		set, ok := ix.postings[key]
		if !ok {
			set = make(map[string]struct{})
			ix.postings[key] = set
		}
		set[threadID] = struct{}{}
	}
}

// Lookup returns the union of postings for the given terms.
func (ix *Index) Lookup(terms []string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, term := range terms {
		for id := range ix.postings[normalize(term)] {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// ExtractMatching case-insensitively matches tokens in text against known
// index terms — not arbitrary keyword extraction, only terms the index
// already knows about.
func (ix *Index) ExtractMatching(text string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tokens := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:\"'()[]{}")
		if tok == "" {
			continue
		}
		if _, ok := ix.postings[tok]; ok {
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				out = append(out, tok)
			}
		}
	}
	return out
}

// Overlap is one pair of threads sharing at least minShared terms.
type Overlap struct {
	A, B         string
	Count        int
	SharedTerms  []string
}

// FindOverlaps enumerates every thread pair whose postings intersect in
// at least minShared terms. O(terms * avg_postings^2) — acceptable since
// gossip runs on a multi-minute cadence, not the retrieval hot path.
func (ix *Index) FindOverlaps(minShared int) []Overlap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	shared := make(map[[2]string][]string)
	for term, ids := range ix.postings {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				key := pairKey(list[i], list[j])
				shared[key] = append(shared[key], term)
			}
		}
	}

	out := make([]Overlap, 0, len(shared))
	for pair, terms := range shared {
		if len(terms) < minShared {
			continue
		}
		out = append(out, Overlap{A: pair[0], B: pair[1], Count: len(terms), SharedTerms: terms})
	}
	return out
}

// OverlapScore returns (shared_count, shared/min_size, richness) for a
// pair of thread term sets.
func OverlapScore(termsA, termsB []string) (sharedCount int, ratio float64, richness float64) {
	setA := toSet(termsA)
	setB := toSet(termsB)
	for t := range setA {
		if _, ok := setB[t]; ok {
			sharedCount++
		}
	}
	minSize := len(setA)
	if len(setB) < minSize {
		minSize = len(setB)
	}
	if minSize > 0 {
		ratio = float64(sharedCount) / float64(minSize)
	}
	richness = float64(sharedCount) / 5.0
	if richness > 1 {
		richness = 1
	}
	return sharedCount, ratio, richness
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[normalize(t)] = struct{}{}
	}
	return set
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// ThreadTerms pairs a thread id with the terms it contributes, used by
// Rebuild to reconstruct an index from a store scan at startup.
type ThreadTerms struct {
	ThreadID string
	Terms    []string
}

// Rebuild replaces the index's entire contents from a fresh scan,
// used once at process startup; no periodic refresh calls it afterwards.
func (ix *Index) Rebuild(items []ThreadTerms) {
	ix.mu.Lock()
	ix.postings = make(map[string]map[string]struct{})
	ix.mu.Unlock()

	for _, item := range items {
		ix.Notify(item.ThreadID, item.Terms)
	}
}

func pairKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
