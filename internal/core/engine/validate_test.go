package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/core"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func validSubmission() core.Submission {
	return core.Submission{
		ContactName: "Ana",
		Email:       "ana@x.io",
		Origin:      "Toronto",
		Destination: "Ottawa",
		ShipDate:    "2025-03-10",
		WeightKg:    floatPtr(120),
		Services:    []core.ServiceType{core.ServiceLTL},
		Consent:     true,
	}
}

func TestValidateSubmission(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.Submission)
		rule   string
	}{
		{name: "valid", mutate: func(*core.Submission) {}},
		{name: "missing fields", mutate: func(s *core.Submission) { s.ContactName = " "; s.WeightKg = nil }, rule: RuleRequiredFields},
		{name: "bad email", mutate: func(s *core.Submission) { s.Email = "not-an-email" }, rule: RuleEmailFormat},
		{name: "email without tld dot", mutate: func(s *core.Submission) { s.Email = "a@b" }, rule: RuleEmailFormat},
		{name: "bad ship date", mutate: func(s *core.Submission) { s.ShipDate = "next tuesday" }, rule: RuleShipDate},
		{name: "rfc3339 ship date", mutate: func(s *core.Submission) { s.ShipDate = "2025-03-10T08:00:00Z" }},
		{name: "zero weight", mutate: func(s *core.Submission) { s.WeightKg = floatPtr(0) }, rule: RuleWeight},
		{name: "negative pallets", mutate: func(s *core.Submission) { s.Pallets = intPtr(-1) }, rule: RuleNonNegative},
		{name: "no services", mutate: func(s *core.Submission) { s.Services = nil }, rule: RuleServices},
		{name: "empty services", mutate: func(s *core.Submission) { s.Services = []core.ServiceType{} }, rule: RuleServices},
		{name: "blank email", mutate: func(s *core.Submission) { s.Email = "   " }, rule: RuleRequiredFields},
		{name: "padded email", mutate: func(s *core.Submission) { s.Email = " ana@x.io " }},
		{name: "zero pieces", mutate: func(s *core.Submission) { s.Pieces = intPtr(0) }},
		{name: "negative volume", mutate: func(s *core.Submission) { s.Volume = floatPtr(-0.5) }, rule: RuleNonNegative},
		{name: "unknown service", mutate: func(s *core.Submission) { s.Services = []core.ServiceType{"RAIL"} }, rule: RuleServiceUnknown},
		{name: "no consent", mutate: func(s *core.Submission) { s.Consent = false }, rule: RuleConsent},
		{name: "note at limit", mutate: func(s *core.Submission) { s.Note = strings.Repeat("a", 500) }},
		{name: "note too long", mutate: func(s *core.Submission) { s.Note = strings.Repeat("a", 501) }, rule: RuleNoteLength},
		{name: "note counts characters", mutate: func(s *core.Submission) { s.Note = strings.Repeat("é", 500) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(&sub)

			err := ValidateSubmission(sub)
			if tc.rule == "" {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.rule, verr.Rule)
		})
	}
}

func TestValidateSubmissionListsMissingFields(t *testing.T) {
	err := ValidateSubmission(core.Submission{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"contactName", "email", "origin", "destination", "shipDate", "weightKg"}, verr.Fields)
	require.Contains(t, verr.Message, "contactName")
}

func TestValidateSubmissionReportsHighestPriorityRule(t *testing.T) {
	sub := validSubmission()
	sub.Note = strings.Repeat("a", 501)
	sub.Consent = false
	sub.Services = []core.ServiceType{"RAIL"}
	sub.Pallets = intPtr(-2)

	err := ValidateSubmission(sub)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, RuleNonNegative, verr.Rule)
	require.Equal(t, []string{"pallets"}, verr.Fields)
	require.Equal(t, "pallets must not be negative", verr.Message)
}

func TestValidateSubmissionNamesUnknownService(t *testing.T) {
	sub := validSubmission()
	sub.Services = []core.ServiceType{core.ServiceFTL, "RAIL"}

	err := ValidateSubmission(sub)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, RuleServiceUnknown, verr.Rule)
	require.Equal(t, []string{"services"}, verr.Fields)
	require.Equal(t, `Unknown service type "RAIL"`, verr.Message)
}
