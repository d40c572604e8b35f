package search

import "strings"

const (
	maxExpandedStrategyTerms = 5
	maxSubjectGroups         = 3
	maxTermsPerGroup         = 3
	maxSubjectTerms          = 10
)

// Enhanced is the result of query expansion: the deduplicated expansion
// terms, the subjects whose dictionaries matched, and the retrieval
// strategy strings derived from them.
type Enhanced struct {
	Terms      []string
	Subjects   []string
	Strategies []string
}

// SubjectStrategy returns the subject-context strategy string, empty when
// no subject was detected.
func (e Enhanced) SubjectStrategy() string {
	if len(e.Strategies) < 3 {
		return ""
	}
	return e.Strategies[2]
}

// EnhanceQuery expands query with subject-domain vocabulary. When subject
// names a known dictionary only that dictionary is scanned; otherwise every
// subject's dictionary is checked against the lower-cased query. With no
// dictionary hit at all the query's own words become the expansion terms.
func EnhanceQuery(query, subject string) Enhanced {
	q := strings.ToLower(query)

	scan := subjectOrder
	if subject != "" {
		if _, known := subjectDictionaries[subject]; known {
			scan = []string{subject}
		}
	}

	var terms []string
	var subjects []string
	for _, subj := range scan {
		matched := false
		for _, group := range subjectDictionaries[subj] {
			if strings.Contains(q, group.keyword) {
				matched = true
				terms = append(terms, group.keyword)
				terms = append(terms, group.terms...)
			}
		}
		if matched {
			subjects = append(subjects, subj)
		}
	}

	if len(terms) == 0 {
		terms = strings.Fields(q)
	}
	terms = dedupe(terms)

	strategies := []string{query, orJoin(terms, maxExpandedStrategyTerms)}
	if len(subjects) > 0 {
		strategies = append(strategies, subjectContextStrategy(subjects))
	}

	return Enhanced{Terms: terms, Subjects: subjects, Strategies: strategies}
}

// subjectContextStrategy draws up to maxTermsPerGroup terms from each
// matched subject's top keyword groups, capped at maxSubjectTerms total.
func subjectContextStrategy(subjects []string) string {
	var terms []string
	for _, subj := range subjects {
		groups := subjectDictionaries[subj]
		if len(groups) > maxSubjectGroups {
			groups = groups[:maxSubjectGroups]
		}
		for _, group := range groups {
			take := group.terms
			if len(take) > maxTermsPerGroup {
				take = take[:maxTermsPerGroup]
			}
			terms = append(terms, take...)
			if len(terms) >= maxSubjectTerms {
				break
			}
		}
		if len(terms) >= maxSubjectTerms {
			break
		}
	}
	if len(terms) > maxSubjectTerms {
		terms = terms[:maxSubjectTerms]
	}
	return strings.Join(dedupe(terms), " OR ")
}

func orJoin(terms []string, max int) string {
	if len(terms) > max {
		terms = terms[:max]
	}
	return strings.Join(terms, " OR ")
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
