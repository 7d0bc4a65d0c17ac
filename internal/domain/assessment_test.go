package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementsTableIsTotalAndDisjoint(t *testing.T) {
	for _, p := range AllPopulations {
		p := p
		t.Run(string(p), func(t *testing.T) {
			reqs := RequirementsFor(p)
			require.NotEmpty(t, reqs.Required, "every population needs a non-empty required set")

			required := make(map[AssessmentType]bool)
			for _, at := range reqs.Required {
				assert.False(t, required[at], "duplicate required type %s", at)
				required[at] = true
			}
			for _, at := range reqs.Optional {
				assert.False(t, required[at], "type %s is both required and optional", at)
			}
		})
	}
}

func TestRequiredImpliesAvailable(t *testing.T) {
	allTypes := []AssessmentType{
		AssessmentNutrition, AssessmentTraining, AssessmentPerformance,
		AssessmentYouth, AssessmentRecovery, AssessmentLifestyle, AssessmentGeneral,
	}
	for _, p := range AllPopulations {
		for _, at := range allTypes {
			if IsRequired(p, at) {
				assert.True(t, IsAvailable(p, at), "%s requires %s but it is not available", p, at)
			}
		}
	}
}

func TestAllTypesForHasNoDuplicates(t *testing.T) {
	for _, p := range AllPopulations {
		all := AllTypesFor(p)
		seen := make(map[AssessmentType]bool)
		for _, at := range all {
			assert.False(t, seen[at], "%s: duplicate type %s in union", p, at)
			seen[at] = true
			assert.True(t, IsAvailable(p, at))
		}
	}
}

func TestAthleteRequirements(t *testing.T) {
	reqs := RequirementsFor(PopulationAthlete)
	assert.ElementsMatch(t,
		[]AssessmentType{AssessmentNutrition, AssessmentTraining, AssessmentPerformance, AssessmentRecovery},
		reqs.Required)
	assert.ElementsMatch(t, []AssessmentType{AssessmentLifestyle}, reqs.Optional)
}

func TestIsRequiredFalseForUnavailableType(t *testing.T) {
	// PERFORMANCE is not offered to the general population at all.
	assert.False(t, IsAvailable(PopulationGeneral, AssessmentPerformance))
	assert.False(t, IsRequired(PopulationGeneral, AssessmentPerformance))
}
