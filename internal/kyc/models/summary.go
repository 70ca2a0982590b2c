package models

import "github.com/shopspring/decimal"

// Summary is the read-side analytics view over all cases.
type Summary struct {
	Total               int
	ByStatus            map[Status]int
	Approved            int
	Rejected            int
	UnderReview         int
	PendingManualReview int
	PEPMatches          int
	SanctionsMatches    int
	AdverseMediaCases   int
	// AverageRiskScore is the mean over scored cases only, rounded to two
	// decimal places. Zero when no case has a score.
	AverageRiskScore decimal.Decimal
}

// Summarize computes a Summary. Status figures come from counts when given
// and are tallied from apps otherwise; flag and score figures always come
// from apps.
func Summarize(counts map[Status]int, apps []*Application) Summary {
	s := Summary{ByStatus: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		s.ByStatus[st] = 0
	}
	if counts == nil {
		for _, a := range apps {
			s.ByStatus[a.Status]++
		}
	} else {
		for st, n := range counts {
			s.ByStatus[st] = n
		}
	}
	for _, n := range s.ByStatus {
		s.Total += n
	}

	sum := decimal.Zero
	scored := 0
	for _, a := range apps {
		if a.RequiresManualReview {
			s.PendingManualReview++
		}
		if a.PEPMatch {
			s.PEPMatches++
		}
		if a.SanctionsMatch {
			s.SanctionsMatches++
		}
		if a.AdverseMediaFound {
			s.AdverseMediaCases++
		}
		if a.RiskScore != nil {
			sum = sum.Add(decimal.NewFromInt(int64(*a.RiskScore)))
			scored++
		}
	}
	s.Approved = s.ByStatus[StatusApproved]
	s.Rejected = s.ByStatus[StatusRejected]
	s.UnderReview = s.ByStatus[StatusUnderReview]

	s.AverageRiskScore = decimal.Zero
	if scored > 0 {
		s.AverageRiskScore = sum.Div(decimal.NewFromInt(int64(scored))).Round(2)
	}
	return s
}
