package dedup

import (
	"sort"
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/naming"
)

// DefaultSimilarityThreshold is the title similarity above which two records
// without conflicting ids are treated as the same title.
const DefaultSimilarityThreshold = 0.92

// Options tunes the fuzzy edges of the grouper. Id and key equality are
// always authoritative and cannot be switched off.
type Options struct {
	SimilarityThreshold float64

	// RomanizationBridge links same-year records where exactly one title
	// is romanized Japanese.
	RomanizationBridge bool

	// RequireTokenOverlap restricts the bridge to pairs sharing a
	// significant title token or listed in Aliases.
	RequireTokenOverlap bool

	// Aliases maps a title to an equivalent localized title. Both sides
	// are normalized and the table is symmetric.
	Aliases map[string]string
}

// DefaultOptions returns the grouping settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		RomanizationBridge:  true,
		RequireTokenOverlap: true,
	}
}

// Group is a set of two or more records believed to denote one title.
type Group struct {
	Key     string
	Members []anime.Record
}

// IDs returns member ids in member order.
func (g Group) IDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Grouper partitions record collections into duplicate groups.
type Grouper struct {
	opts    Options
	aliases map[string]map[string]bool
}

// NewGrouper creates a grouper. A zero threshold falls back to the default.
func NewGrouper(opts Options) *Grouper {
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}

	aliases := make(map[string]map[string]bool)
	add := func(a, b string) {
		if aliases[a] == nil {
			aliases[a] = make(map[string]bool)
		}
		aliases[a][b] = true
	}
	for from, to := range opts.Aliases {
		a, b := naming.NormalizeTitle(from), naming.NormalizeTitle(to)
		if a == "" || b == "" || a == b {
			continue
		}
		add(a, b)
		add(b, a)
	}

	return &Grouper{opts: opts, aliases: aliases}
}

// candidate holds everything the pairwise tests need, computed once.
type candidate struct {
	rec       *anime.Record
	key       string
	season    naming.SeasonInfo
	titles    []string // normalized, non-empty, unique
	romanized bool
}

func (g *Grouper) prepare(r *anime.Record) candidate {
	c := candidate{
		rec:       r,
		key:       CanonicalKey(r),
		season:    naming.ExtractSeason(r.Title),
		romanized: naming.IsRomanized(r.Title),
	}
	seen := make(map[string]bool)
	for _, t := range r.Titles() {
		n := naming.NormalizeTitle(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		c.titles = append(c.titles, n)
	}
	return c
}

// Group returns the duplicate groups in records. Groups have at least two
// members, members are ordered by id, and groups are ordered by their first
// member. The result does not depend on the order of the input.
func (g *Grouper) Group(records []anime.Record) []Group {
	order := canonicalOrder(records)
	var groups []Group
	for _, idx := range g.groupIndices(records, order) {
		members := make([]anime.Record, len(idx))
		key := ""
		for i, j := range idx {
			members[i] = records[j]
			k := CanonicalKey(&records[j])
			if key == "" || moreAuthoritative(k, key) {
				key = k
			}
		}
		groups = append(groups, Group{Key: key, Members: members})
	}
	return groups
}

// GroupIndices is Group for callers that need positions in the input slice
// rather than copies, e.g. records that have no id yet. Each inner slice is
// in canonical order.
func (g *Grouper) GroupIndices(records []anime.Record) [][]int {
	return g.groupIndices(records, canonicalOrder(records))
}

func (g *Grouper) groupIndices(records []anime.Record, order []int) [][]int {
	n := len(order)
	cands := make([]candidate, n)
	for pos, idx := range order {
		cands[pos] = g.prepare(&records[idx])
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if g.linked(&cands[i], &cands[j]) {
				uf.union(i, j)
			}
		}
	}

	// Components keyed by root, emitted in order of their first position.
	byRoot := make(map[int][]int)
	var roots []int
	for pos := 0; pos < n; pos++ {
		root := uf.find(pos)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], order[pos])
	}

	var out [][]int
	for _, root := range roots {
		if members := byRoot[root]; len(members) >= 2 {
			out = append(out, members)
		}
	}
	return out
}

// linked reports whether any grouping edge joins a and b.
func (g *Grouper) linked(a, b *candidate) bool {
	// 1. Authoritative identity.
	if (a.key == b.key && a.key != KeyPrefixTitle) || sharesID(a.rec, b.rec) {
		return true
	}

	conflict := conflictingIDs(a.rec, b.rec)

	// 2. Same series. Two catalog entries for the same season of the same
	// base title are separate productions (remakes), not duplicates.
	if a.season.BaseTitle != "" && a.season.BaseTitle == b.season.BaseTitle {
		if !(conflict && naming.SameSeason(a.season, b.season)) {
			return true
		}
	}

	if conflict {
		return false
	}

	// 3. Near-identical titles.
	if !yearsDisagree(a.rec, b.rec) && g.bestSimilarity(a, b) >= g.opts.SimilarityThreshold {
		return true
	}

	// 4. Romanized vs localized title of the same release year.
	if g.opts.RomanizationBridge && yearsEqual(a.rec, b.rec) && a.romanized != b.romanized {
		if g.aliased(a, b) {
			return true
		}
		if !g.opts.RequireTokenOverlap {
			return true
		}
		return sharesSignificantToken(a, b)
	}

	return false
}

func (g *Grouper) bestSimilarity(a, b *candidate) float64 {
	best := 0.0
	for _, ta := range a.titles {
		for _, tb := range b.titles {
			if s := naming.NormalizedSimilarity(ta, tb); s > best {
				best = s
			}
		}
	}
	return best
}

func (g *Grouper) aliased(a, b *candidate) bool {
	if len(g.aliases) == 0 {
		return false
	}
	for _, ta := range a.titles {
		for _, tb := range b.titles {
			if g.aliases[ta][tb] {
				return true
			}
		}
	}
	return false
}

func sharesSignificantToken(a, b *candidate) bool {
	for _, ta := range a.titles {
		for _, tb := range b.titles {
			if naming.SharesSignificantToken(ta, tb) {
				return true
			}
		}
	}
	return false
}

func sharesID(a, b *anime.Record) bool {
	if a.MalID != nil && b.MalID != nil && *a.MalID == *b.MalID {
		return true
	}
	return a.AniListID != nil && b.AniListID != nil && *a.AniListID == *b.AniListID
}

// conflictingIDs reports whether both records carry an id from the same
// catalog and the ids differ.
func conflictingIDs(a, b *anime.Record) bool {
	if a.MalID != nil && b.MalID != nil && *a.MalID != *b.MalID {
		return true
	}
	return a.AniListID != nil && b.AniListID != nil && *a.AniListID != *b.AniListID
}

func yearsDisagree(a, b *anime.Record) bool {
	return a.Year != nil && b.Year != nil && *a.Year != *b.Year
}

func yearsEqual(a, b *anime.Record) bool {
	return a.Year != nil && b.Year != nil && *a.Year == *b.Year
}

// canonicalOrder returns input positions sorted by record identity so that
// grouping is independent of input order.
func canonicalOrder(records []anime.Record) []int {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return recordLess(&records[order[x]], &records[order[y]])
	})
	return order
}

func recordLess(a, b *anime.Record) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if c := strings.Compare(a.Title, b.Title); c != 0 {
		return c < 0
	}
	if c := compareOptInt(a.Year, b.Year); c != 0 {
		return c < 0
	}
	if c := compareOptInt(a.MalID, b.MalID); c != 0 {
		return c < 0
	}
	if c := compareOptInt(a.AniListID, b.AniListID); c != 0 {
		return c < 0
	}
	return optString(a.TitleEnglish) < optString(b.TitleEnglish)
}

// compareOptInt orders absent values after present ones.
func compareOptInt(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
