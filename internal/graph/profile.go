package graph

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from responsibility keyword extraction.
var profileStopwords = map[string]bool{
	"get": true, "set": true, "new": true, "the": true, "and": true,
	"for": true, "with": true, "from": true, "into": true, "init": true,
}

// DeriveProfile computes a module's responsibility profile from slices
// of nodes and edges. The pipeline uses it to refresh profiles after a
// commit; MemStore derives its own internally.
func DeriveProfile(module GraphNode, nodes []GraphNode, edges []GraphEdge) ModuleProfile {
	nodeMap := make(map[uint64]GraphNode, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = n
	}
	edgeMap := make(map[uint64]GraphEdge, len(edges))
	for _, e := range edges {
		edgeMap[e.ID] = e
	}
	return deriveProfile(module, nodeMap, edgeMap)
}

// deriveProfile computes a module's responsibility profile from the nodes
// it contains and the edges touching them. Only placement scoring reads
// the result.
func deriveProfile(module GraphNode, nodes map[uint64]GraphNode, edges map[uint64]GraphEdge) ModuleProfile {
	p := ModuleProfile{
		ModuleID: module.ID,
		Path:     module.FilePath,
	}

	prefixCounts := make(map[string]int)
	keywordCounts := make(map[string]int)
	importSet := make(map[string]bool)
	exportSet := make(map[string]bool)
	typeCounts := make(map[string]int)
	memberIDs := make(map[uint64]bool)

	for id, n := range nodes {
		if n.ModuleID != module.ID || n.ID == module.ID {
			continue
		}
		memberIDs[id] = true
		switch n.Kind {
		case NodeKindFunction:
			p.FunctionCount++
			if prefix := NamePrefix(n.Name); prefix != "" {
				prefixCounts[prefix]++
			}
			for _, w := range splitIdentifier(n.Name) {
				if len(w) >= 3 && !profileStopwords[w] {
					keywordCounts[w]++
				}
			}
			for _, t := range signatureTypes(n.Signature) {
				typeCounts[t]++
			}
			p.ExternalEndpointCount += len(n.ExternalEndpoints)
		case NodeKindClass:
			p.ClassCount++
			typeCounts[n.Name]++
		}
	}

	for _, e := range edges {
		switch e.Kind {
		case EdgeKindImports:
			if memberIDs[e.SourceID] || e.SourceID == module.ID {
				if target, ok := nodes[e.TargetID]; ok {
					importSet[target.FilePath] = true
				}
			}
		case EdgeKindCalls:
			if memberIDs[e.TargetID] && !memberIDs[e.SourceID] {
				if source, ok := nodes[e.SourceID]; ok {
					exportSet[source.FilePath] = true
				}
			}
		}
	}

	p.FunctionNamePrefixes = topKeys(prefixCounts, 5)
	p.ResponsibilityKeywords = topKeys(keywordCounts, 8)
	p.PrimaryTypes = topKeys(typeCounts, 5)
	p.ImportSources = sortedKeys(importSet)
	p.ExportTargets = sortedKeys(exportSet)
	return p
}

// NamePrefix extracts the leading word of an identifier: "parseConfig" and
// "parse_config" both yield "parse".
func NamePrefix(name string) string {
	words := splitIdentifier(name)
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// splitIdentifier breaks camelCase, PascalCase, and snake_case identifiers
// into lowercase words.
func splitIdentifier(name string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range name {
		switch {
		case r == '_' || r == '-':
			flush()
		case unicode.IsUpper(r):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// signatureTypes pulls capitalized type names out of a canonical signature.
func signatureTypes(signature string) []string {
	var types []string
	var cur strings.Builder
	for _, r := range signature + " " {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cur.WriteRune(r)
			continue
		}
		word := cur.String()
		cur.Reset()
		if word == "" {
			continue
		}
		if first := rune(word[0]); unicode.IsUpper(first) && len(word) > 1 {
			types = append(types, word)
		}
	}
	return types
}

func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
