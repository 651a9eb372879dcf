package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

const reportBody = `Area SEND inspection of Barnet Local Area Partnership

Inspection outcome

The local area partnership's special educational needs and/or disabilities
(SEND) arrangements typically lead to positive experiences and outcomes for
children and young people with SEND.

Ofsted and CQC ask that the local area partnership updates and publishes its
strategic plan. The next full area SEND inspection will be within approximately
five years.

As a result of this inspection, Ofsted and CQC ask that the partnership
publishes this report.

Information about the local area partnership
Barnet Council is responsible for education.`

func TestExtractOutcomeSection(t *testing.T) {
	t.Parallel()

	got := ExtractOutcomeSection(reportBody)
	assert.True(t, HasOutcomeSection(got))
	assert.Contains(t, got, "lead to positive experiences and outcomes for children")
	assert.Contains(t, got, "within approximately five years.")
	assert.NotContains(t, got, "publishes this report", "closing paragraph is dropped")
	assert.NotContains(t, got, "\n")
}

func TestExtractOutcomeSectionSingleParagraphKept(t *testing.T) {
	t.Parallel()

	got := ExtractOutcomeSection("INSPECTION OUTCOME\n\nOnly one\nparagraph.\n\nINFORMATION ABOUT THE LOCAL AREA PARTNERSHIP")
	assert.Equal(t, "Only one paragraph.", got)
}

func TestExtractOutcomeSectionMissingHeadings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeSectionNotFound, ExtractOutcomeSection("Inspection outcome but nothing closes it"))
	assert.False(t, HasOutcomeSection(OutcomeSectionNotFound))
}

func TestDetermineOutcomeGrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		section string
		want    *inspection.Grade
	}{
		{"positive", "typically lead to positive experiences", gradePtr(inspection.GradePositive)},
		{"inconsistent", "lead to inconsistent experiences and outcomes", gradePtr(inspection.GradeInconsistent)},
		{"concerns", "there are widespread and/or systemic failings leading to significant concerns", gradePtr(inspection.GradeSignificantConcerns)},
		{"declared order wins", "significant concerns were raised before; now positive experiences", gradePtr(inspection.GradePositive)},
		{"case sensitive", "Positive Experiences", nil},
		{"none", "no verdict", nil},
		{"sentinel", OutcomeSectionNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetermineOutcomeGrade(tt.section))
		})
	}
}

func TestExtractNextInspection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		section string
		want    string
	}{
		{"monitoring word", "a monitoring inspection will be carried out within approximately two years", "2 years"},
		{"monitoring wins", "the next full area SEND inspection will be within approximately five years. A monitoring inspection will be carried out within approximately 18 months", "18 months"},
		{"full reinspection", "The full reinspection will be within approximately three years.", "3 years"},
		{"next full", "The next full area SEND inspection will be within approximately five years.", "5 years"},
		{"case insensitive unit", "The next full area SEND inspection will be within approximately one Year.", "1 year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractNextInspection(tt.section)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}

	assert.Nil(t, ExtractNextInspection("no horizon stated"))
	assert.Nil(t, ExtractNextInspection(OutcomeSectionNotFound))
}

func gradePtr(g inspection.Grade) *inspection.Grade { return &g }
