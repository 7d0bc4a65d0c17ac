package domain

// AssessmentType identifies a questionnaire category a client may be asked
// to complete before packet generation.
type AssessmentType string

const (
	AssessmentNutrition   AssessmentType = "NUTRITION"
	AssessmentTraining    AssessmentType = "TRAINING"
	AssessmentPerformance AssessmentType = "PERFORMANCE"
	AssessmentYouth       AssessmentType = "YOUTH"
	AssessmentRecovery    AssessmentType = "RECOVERY"
	AssessmentLifestyle   AssessmentType = "LIFESTYLE"
	AssessmentGeneral     AssessmentType = "GENERAL"
)

// AssessmentRequirements is the per-population split of assessment modules.
// Required modules gate packet generation; optional ones are offered but
// never block it.
type AssessmentRequirements struct {
	Required []AssessmentType `json:"required"`
	Optional []AssessmentType `json:"optional"`
}

// populationRequirements is the static configuration table mapping every
// Population to its assessment modules. The table is total (every population
// has a non-empty required set) and the required/optional sets of a row are
// disjoint. This is data, not logic; changing a row is a product decision,
// not a code change anywhere else.
var populationRequirements = map[Population]AssessmentRequirements{
	PopulationGeneral: {
		Required: []AssessmentType{AssessmentGeneral, AssessmentNutrition},
		Optional: []AssessmentType{AssessmentTraining, AssessmentLifestyle},
	},
	PopulationAthlete: {
		Required: []AssessmentType{AssessmentNutrition, AssessmentTraining, AssessmentPerformance, AssessmentRecovery},
		Optional: []AssessmentType{AssessmentLifestyle},
	},
	PopulationYouth: {
		Required: []AssessmentType{AssessmentYouth, AssessmentGeneral},
		Optional: []AssessmentType{AssessmentNutrition, AssessmentTraining},
	},
	PopulationRecovery: {
		Required: []AssessmentType{AssessmentRecovery, AssessmentGeneral},
		Optional: []AssessmentType{AssessmentNutrition, AssessmentLifestyle},
	},
	PopulationPregnancy: {
		Required: []AssessmentType{AssessmentGeneral, AssessmentNutrition, AssessmentLifestyle},
		Optional: []AssessmentType{AssessmentTraining},
	},
	PopulationPostpartum: {
		Required: []AssessmentType{AssessmentGeneral, AssessmentNutrition, AssessmentRecovery},
		Optional: []AssessmentType{AssessmentTraining, AssessmentLifestyle},
	},
	PopulationOlderAdult: {
		Required: []AssessmentType{AssessmentGeneral, AssessmentLifestyle},
		Optional: []AssessmentType{AssessmentNutrition, AssessmentTraining, AssessmentRecovery},
	},
	PopulationChronicCondition: {
		Required: []AssessmentType{AssessmentGeneral, AssessmentNutrition, AssessmentLifestyle},
		Optional: []AssessmentType{AssessmentTraining, AssessmentRecovery},
	},
}

// RequirementsFor returns the static requirements row for a population.
// Never fails; callers validate the Population tag upstream. An unknown tag
// returns the zero value.
func RequirementsFor(p Population) AssessmentRequirements {
	return populationRequirements[p]
}

// AllTypesFor returns the union of required and optional assessment types
// for a population, without duplicates, required types first.
func AllTypesFor(p Population) []AssessmentType {
	reqs := populationRequirements[p]
	seen := make(map[AssessmentType]bool, len(reqs.Required)+len(reqs.Optional))
	all := make([]AssessmentType, 0, len(reqs.Required)+len(reqs.Optional))
	for _, t := range reqs.Required {
		if !seen[t] {
			seen[t] = true
			all = append(all, t)
		}
	}
	for _, t := range reqs.Optional {
		if !seen[t] {
			seen[t] = true
			all = append(all, t)
		}
	}
	return all
}

// IsAvailable reports whether the assessment type is offered (required or
// optional) for the population.
func IsAvailable(p Population, t AssessmentType) bool {
	reqs := populationRequirements[p]
	return contains(reqs.Required, t) || contains(reqs.Optional, t)
}

// IsRequired reports whether the assessment type is mandatory for the
// population. Returns false, not an error, for types that are not available
// at all.
func IsRequired(p Population, t AssessmentType) bool {
	return contains(populationRequirements[p].Required, t)
}

func contains(types []AssessmentType, t AssessmentType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
