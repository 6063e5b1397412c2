package analytics

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/langchou/chargegazer/internal/models"
)

// NormalizeProviderName 统一运营商名称：去掉变音符号、大小写折叠、去首尾空白并合并连续空白
func NormalizeProviderName(name string) string {
	// transformer 和 caser 都有内部状态，每次调用单独创建
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = cases.Fold().String(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Similarity 两个已归一化名称的相似度 (0-1)，基于编辑距离
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// providerVariant 一个原始运营商名称
type providerVariant struct {
	raw        string
	normalized string
	sessions   int
	successful int
	failed     int
	energy     float64
}

// unionFind 并查集，根节点总是集合中最小的下标
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// GroupProviders 按名称相似度合并运营商并统计成功率
// threshold 为本次调用使用的阈值，通常取 Options().SimilarityThreshold
func (e *Engine) GroupProviders(sessions []models.Session, threshold float64) (models.GroupedProviders, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return models.GroupedProviders{}, err
	}

	groups := groupProviders(sessions, threshold)

	result := models.GroupedProviders{
		GroupedSuccessfulProviders: topGroups(groups, e.opts.MinGroupSessions, e.opts.TopProviders, func(g *models.ProviderGroup) int { return g.SuccessfulCount }),
		GroupedFailedProviders:     topGroups(groups, e.opts.MinGroupSessions, e.opts.TopProviders, func(g *models.ProviderGroup) int { return g.FailedCount }),
		AllProviders:               allGroups(groups),
		ProviderMatches:            providerMatches(groups),
		Threshold:                  threshold,
	}
	return result, nil
}

// groupProviders 返回按首次出现顺序排列的分组
func groupProviders(sessions []models.Session, threshold float64) []models.ProviderGroup {
	// 1. 按原始名称统计
	var variants []*providerVariant
	byRaw := make(map[string]*providerVariant)
	for i := range sessions {
		s := &sessions[i]
		raw := s.Provider
		if strings.TrimSpace(raw) == "" {
			raw = models.UnknownProvider
		}

		v, ok := byRaw[raw]
		if !ok {
			v = &providerVariant{raw: raw, normalized: NormalizeProviderName(raw)}
			byRaw[raw] = v
			variants = append(variants, v)
		}
		v.sessions++
		v.energy += s.EnergyAddedHvb
		if IsFailed(s) {
			v.failed++
		} else {
			v.successful++
		}
	}

	if len(variants) == 0 {
		return nil
	}

	// 2. 归一化后相同的名称直接视为同一节点，再两两比较相似度
	var names []string
	nameIndex := make(map[string]int)
	for _, v := range variants {
		if _, ok := nameIndex[v.normalized]; !ok {
			nameIndex[v.normalized] = len(names)
			names = append(names, v.normalized)
		}
	}

	uf := newUnionFind(len(names))
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if Similarity(names[i], names[j]) >= threshold {
				uf.union(i, j)
			}
		}
	}

	// 3. 汇总到分组
	type bucket struct {
		members []*providerVariant
	}
	var order []int
	buckets := make(map[int]*bucket)
	for _, v := range variants {
		root := uf.find(nameIndex[v.normalized])
		b, ok := buckets[root]
		if !ok {
			b = &bucket{}
			buckets[root] = b
			order = append(order, root)
		}
		b.members = append(b.members, v)
	}

	groups := make([]models.ProviderGroup, 0, len(order))
	for _, root := range order {
		b := buckets[root]
		g := models.ProviderGroup{Variants: make([]string, 0, len(b.members))}

		// 规范名取充电次数最多的原始名称，相同时取先出现的
		best := b.members[0]
		for _, v := range b.members {
			if v.sessions > best.sessions {
				best = v
			}
			g.Variants = append(g.Variants, v.raw)
			g.Total += v.sessions
			g.SuccessfulCount += v.successful
			g.FailedCount += v.failed
			g.TotalEnergyAdded += v.energy
		}

		g.CanonicalName = best.raw
		g.Provider = best.raw
		if g.Total > 0 {
			g.SuccessRate = float64(g.SuccessfulCount) / float64(g.Total) * 100
			g.FailureRate = 100 - g.SuccessRate
		}
		groups = append(groups, g)
	}

	return groups
}

// topGroups 取 count 最大的前 limit 个分组，只考虑充电次数不少于 minTotal 的分组
func topGroups(groups []models.ProviderGroup, minTotal, limit int, count func(*models.ProviderGroup) int) []models.ProviderGroup {
	top := make([]models.ProviderGroup, 0, limit)
	for i := range groups {
		if groups[i].Total >= minTotal && count(&groups[i]) > 0 {
			top = append(top, groups[i])
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		ci, cj := count(&top[i]), count(&top[j])
		if ci != cj {
			return ci > cj
		}
		return top[i].CanonicalName < top[j].CanonicalName
	})

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

// allGroups 所有分组，按总次数降序
func allGroups(groups []models.ProviderGroup) []models.ProviderGroup {
	all := make([]models.ProviderGroup, len(groups))
	copy(all, groups)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Total != all[j].Total {
			return all[i].Total > all[j].Total
		}
		return all[i].CanonicalName < all[j].CanonicalName
	})
	return all
}

func providerMatches(groups []models.ProviderGroup) []models.ProviderMatch {
	matches := make([]models.ProviderMatch, 0, len(groups))
	for _, g := range groups {
		canonical := NormalizeProviderName(g.CanonicalName)
		for _, raw := range g.Variants {
			matches = append(matches, models.ProviderMatch{
				OriginalProvider: raw,
				MatchedProvider:  g.CanonicalName,
				Similarity:       Similarity(NormalizeProviderName(raw), canonical),
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].OriginalProvider < matches[j].OriginalProvider
	})
	return matches
}

// topProviderCounts session_stats 中的 top 运营商（不限制最少次数）
func (e *Engine) topProviderCounts(groups []models.ProviderGroup, count func(*models.ProviderGroup) int) []models.ProviderCount {
	top := topGroups(groups, 0, e.opts.TopProviders, count)
	counts := make([]models.ProviderCount, 0, len(top))
	for i := range top {
		counts = append(counts, models.ProviderCount{
			Provider: top[i].CanonicalName,
			Count:    count(&top[i]),
		})
	}
	return counts
}
