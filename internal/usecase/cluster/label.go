package cluster

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

var errNoLabel = errors.New("no label candidate")

const (
	commonTermShare         = 0.3
	minCommonTermDF         = 2
	maxCommonTerms          = 3
	fallbackLabelConfidence = 0.1
)

// clusterView is one cluster as the labelers see it.
type clusterView struct {
	members        []int
	records        []catalog.Record
	texts          []string
	combined       [][]float64
	centroid       []float64
	representative int
}

func (v *clusterView) size() int { return len(v.members) }

// labeler names a cluster.
type labeler interface {
	label(v *clusterView) (dc.Label, error)
}

func labelers() map[dc.LabelStrategy]labeler {
	return map[dc.LabelStrategy]labeler{
		dc.LabelCommonTerms:    commonTermsLabeler{},
		dc.LabelRepresentative: representativeLabeler{},
		dc.LabelSemantic:       conceptLabeler{},
		dc.LabelCentroid:       centroidLabeler{},
		dc.LabelHybrid: hybridLabeler{parts: []labeler{
			commonTermsLabeler{}, representativeLabeler{}, conceptLabeler{},
		}},
	}
}

// fallbackLabel is used when labeling fails; pos is the cluster's position
// in the sorted response.
func fallbackLabel(pos int) dc.Label {
	return dc.Label{
		Text:       fmt.Sprintf("Cluster %d", pos+1),
		Confidence: fallbackLabelConfidence,
		Strategy:   dc.LabelFallback,
	}
}

func unclusteredLabel() dc.Label {
	return dc.Label{Text: "Unclustered", Confidence: fallbackLabelConfidence, Strategy: dc.LabelFallback}
}

type commonTermsLabeler struct{}

// label names the cluster after the terms found in the most members. A term
// must appear in at least max(2, 30% of the cluster) members.
func (commonTermsLabeler) label(v *clusterView) (dc.Label, error) {
	if v.size() == 0 {
		return dc.Label{}, errNoLabel
	}
	df := make(map[string]int)
	for _, i := range v.members {
		for t := range termCounts(v.texts[i]) {
			df[t]++
		}
	}
	floor := max(minCommonTermDF, int(math.Ceil(commonTermShare*float64(v.size()))))
	var terms []string
	for t, c := range df {
		if c >= floor {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return dc.Label{}, errNoLabel
	}
	slices.SortFunc(terms, func(a, b string) int {
		return cmp.Or(cmp.Compare(df[b], df[a]), strings.Compare(a, b))
	})
	terms = terms[:min(maxCommonTerms, len(terms))]

	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = titleCase(t)
	}
	return dc.Label{
		Text:       strings.Join(parts, " / "),
		Confidence: float64(df[terms[0]]) / float64(v.size()),
		Strategy:   dc.LabelCommonTerms,
	}, nil
}

type representativeLabeler struct{}

// label names the cluster after its most central member: its provider when
// the cluster has several members, its name otherwise.
func (representativeLabeler) label(v *clusterView) (dc.Label, error) {
	if v.size() == 0 || v.representative < 0 {
		return dc.Label{}, errNoLabel
	}
	rep := v.records[v.representative]
	if v.size() == 1 {
		return dc.Label{Text: rep.Name, Confidence: 1, Strategy: dc.LabelRepresentative}, nil
	}
	same := 0
	for _, i := range v.members {
		if strings.EqualFold(v.records[i].Provider, rep.Provider) {
			same++
		}
	}
	return dc.Label{
		Text:       fmt.Sprintf("%s Models (%d)", rep.Provider, v.size()),
		Confidence: float64(same) / float64(v.size()),
		Strategy:   dc.LabelRepresentative,
	}, nil
}

type conceptLabeler struct{}

// label names the cluster after the dominant concept of its members: the
// domain when specific, the model type otherwise.
func (conceptLabeler) label(v *clusterView) (dc.Label, error) {
	counts := make(map[string]int)
	for _, i := range v.members {
		if c := conceptOf(&v.records[i]); c != "" {
			counts[c]++
		}
	}
	if len(counts) == 0 {
		return dc.Label{}, errNoLabel
	}
	concepts := make([]string, 0, len(counts))
	for c := range counts {
		concepts = append(concepts, c)
	}
	slices.SortFunc(concepts, func(a, b string) int {
		return cmp.Or(cmp.Compare(counts[b], counts[a]), strings.Compare(a, b))
	})
	top := concepts[0]
	return dc.Label{
		Text:       titleCase(top) + " Models",
		Confidence: float64(counts[top]) / float64(v.size()),
		Strategy:   dc.LabelSemantic,
	}, nil
}

func conceptOf(r *catalog.Record) string {
	if d := strings.ToLower(r.Domain); d != "" && d != catalog.DefaultDomain {
		return d
	}
	if t := strings.ToLower(r.ModelType); t != "" && t != catalog.DefaultModelType {
		return t
	}
	return ""
}

type centroidLabeler struct{}

// label names the cluster after the member nearest the combined centroid.
func (centroidLabeler) label(v *clusterView) (dc.Label, error) {
	if v.size() == 0 || v.centroid == nil {
		return dc.Label{}, errNoLabel
	}
	best, bestDist := -1, math.Inf(1)
	for _, i := range v.members {
		if d := euclidean(v.combined[i], v.centroid); d < bestDist {
			best, bestDist = i, d
		}
	}
	return dc.Label{
		Text:       v.records[best].Name,
		Confidence: 1 / (1 + bestDist),
		Strategy:   dc.LabelCentroid,
	}, nil
}

type hybridLabeler struct {
	parts []labeler
}

// label keeps the most confident label of its parts and records the
// others as alternatives. Earlier parts win ties.
func (h hybridLabeler) label(v *clusterView) (dc.Label, error) {
	var got []dc.Label
	for _, p := range h.parts {
		if l, err := p.label(v); err == nil {
			got = append(got, l)
		}
	}
	if len(got) == 0 {
		return dc.Label{}, errNoLabel
	}
	best := 0
	for i, l := range got {
		if l.Confidence > got[best].Confidence {
			best = i
		}
	}
	out := got[best]
	for i, l := range got {
		if i != best {
			out.Alternatives = append(out.Alternatives, l)
		}
	}
	return out, nil
}

func titleCase(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		fields[i] = string(unicode.ToUpper(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}
