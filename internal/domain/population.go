package domain

// Population classifies a client into the wellness population that drives
// which assessment modules are offered before a packet can be generated.
type Population string

const (
	PopulationGeneral          Population = "GENERAL"
	PopulationAthlete          Population = "ATHLETE"
	PopulationYouth            Population = "YOUTH"
	PopulationRecovery         Population = "RECOVERY"
	PopulationPregnancy        Population = "PREGNANCY"
	PopulationPostpartum       Population = "POSTPARTUM"
	PopulationOlderAdult       Population = "OLDER_ADULT"
	PopulationChronicCondition Population = "CHRONIC_CONDITION"
)

// AllPopulations lists every valid Population tag.
var AllPopulations = []Population{
	PopulationGeneral,
	PopulationAthlete,
	PopulationYouth,
	PopulationRecovery,
	PopulationPregnancy,
	PopulationPostpartum,
	PopulationOlderAdult,
	PopulationChronicCondition,
}

// IsValid reports whether p is one of the known Population tags.
func (p Population) IsValid() bool {
	for _, known := range AllPopulations {
		if p == known {
			return true
		}
	}
	return false
}

// ClassificationFacts are the discovery-intake answers used to classify a
// client. All fields are optional; Age is a pointer so "not answered" is
// distinguishable from zero.
type ClassificationFacts struct {
	IsPregnant          bool `json:"isPregnant"`
	IsPostpartum        bool `json:"isPostpartum"`
	IsYouth             bool `json:"isYouth"`
	HasInjury           bool `json:"hasInjury"`
	IsAthlete           bool `json:"isAthlete"`
	HasChronicCondition bool `json:"hasChronicCondition"`
	Age                 *int `json:"age,omitempty"`
}

// Classify maps intake facts to a single Population. Pure and total: it
// always returns a valid tag and never fails.
//
// The checks run in strict priority order and the first match wins.
// Life-stage and injury classifications deliberately take precedence over
// athletic or general classification, so e.g. a 70-year-old athlete
// classifies as OLDER_ADULT, not ATHLETE.
func Classify(f ClassificationFacts) Population {
	switch {
	case f.IsPregnant:
		return PopulationPregnancy
	case f.IsPostpartum:
		return PopulationPostpartum
	case f.IsYouth || (f.Age != nil && *f.Age < 18):
		return PopulationYouth
	case f.Age != nil && *f.Age >= 65:
		return PopulationOlderAdult
	case f.HasChronicCondition:
		return PopulationChronicCondition
	case f.HasInjury:
		return PopulationRecovery
	case f.IsAthlete:
		return PopulationAthlete
	default:
		return PopulationGeneral
	}
}
