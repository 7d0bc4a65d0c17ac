package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PacketStatus type for the packet lifecycle
type PacketStatus string

const (
	PacketDraft       PacketStatus = "DRAFT"
	PacketUnpublished PacketStatus = "UNPUBLISHED" // Hidden from the client, visible to staff
	PacketPublished   PacketStatus = "PUBLISHED"   // Visible to the client
	PacketArchived    PacketStatus = "ARCHIVED"    // Terminal, read-only
)

// PacketType tags the content shape a packet carries.
type PacketType string

const (
	PacketTypeExerciseProgram PacketType = "EXERCISE_PROGRAM"
	PacketTypeNutritionPlan   PacketType = "NUTRITION_PLAN"
	PacketTypeGeneralWellness PacketType = "GENERAL_WELLNESS"
)

// ErrContentShape is returned by content validation when a payload does not
// match the packet's declared type.
var ErrContentShape = errors.New("packet content does not match declared packet type")

// Packet is a generated, editable, versioned per-client deliverable.
type Packet struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"` // Owning client, set at creation, never reassigned
	PacketType PacketType         `bson:"packetType" json:"packetType"`
	Status     PacketStatus       `bson:"status" json:"status"`

	// Version starts at 1 and increases by exactly 1 on every
	// content-affecting mutation. Pure status flips never bump it.
	// It doubles as the optimistic-concurrency token on every write.
	Version int `bson:"version" json:"version"`

	Content    PacketContent `bson:"content" json:"content"`
	CoachNotes string        `bson:"coachNotes,omitempty" json:"coachNotes,omitempty"`

	// RenderedArtifactRef points at the generated PDF in object storage.
	// Empty means "render pending" and never blocks a status transition.
	RenderedArtifactRef string `bson:"renderedArtifactRef,omitempty" json:"renderedArtifactRef,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// PublishedAt/PublishedBy record the most recent publish event. They are
	// not cleared on unpublish.
	PublishedAt    *time.Time          `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	PublishedBy    *primitive.ObjectID `bson:"publishedBy,omitempty" json:"publishedBy,omitempty"`
	LastModifiedBy primitive.ObjectID  `bson:"lastModifiedBy" json:"lastModifiedBy"`
}

// IsArchived reports whether the packet is in its terminal state.
func (p *Packet) IsArchived() bool {
	return p.Status == PacketArchived
}

// PacketContent is a closed tagged union keyed by Type. Exactly one variant
// pointer is non-nil and it must agree with Type.
type PacketContent struct {
	Type      PacketType              `bson:"type" json:"type"`
	Exercise  *ExerciseProgramContent `bson:"exercise,omitempty" json:"exercise,omitempty"`
	Nutrition *NutritionPlanContent   `bson:"nutrition,omitempty" json:"nutrition,omitempty"`
	Wellness  *GeneralWellnessContent `bson:"wellness,omitempty" json:"wellness,omitempty"`
}

// ExerciseProgramContent is the content shape of an exercise-program packet.
type ExerciseProgramContent struct {
	Title string        `bson:"title" json:"title"`
	Weeks []ProgramWeek `bson:"weeks" json:"weeks"`
}

// ProgramWeek groups the days of one program week.
type ProgramWeek struct {
	Number int          `bson:"number" json:"number"`
	Days   []ProgramDay `bson:"days" json:"days"`
}

// ProgramDay is a single session within a week.
type ProgramDay struct {
	Name      string          `bson:"name" json:"name"` // e.g., "Day 1: Upper Body"
	Notes     string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Exercises []ExerciseBlock `bson:"exercises" json:"exercises"`
}

// ExerciseBlock is one prescribed exercise with its parameters.
type ExerciseBlock struct {
	Name        string `bson:"name" json:"name"`
	MuscleGroup string `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"`
	Sets        int    `bson:"sets" json:"sets"`
	Reps        string `bson:"reps" json:"reps"` // e.g., "8-12", "AMRAP"
	RestSeconds int    `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Tempo       string `bson:"tempo,omitempty" json:"tempo,omitempty"`
	VideoURL    string `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
}

// NutritionPlanContent is the content shape of a nutrition-plan packet.
type NutritionPlanContent struct {
	Title          string `bson:"title" json:"title"`
	DailyCalories  int    `bson:"dailyCalories" json:"dailyCalories"`
	ProteinGrams   int    `bson:"proteinGrams,omitempty" json:"proteinGrams,omitempty"`
	CarbGrams      int    `bson:"carbGrams,omitempty" json:"carbGrams,omitempty"`
	FatGrams       int    `bson:"fatGrams,omitempty" json:"fatGrams,omitempty"`
	HydrationNotes string `bson:"hydrationNotes,omitempty" json:"hydrationNotes,omitempty"`
	Meals          []Meal `bson:"meals" json:"meals"`
}

// Meal is one meal slot in a nutrition plan.
type Meal struct {
	Name  string     `bson:"name" json:"name"` // e.g., "Breakfast"
	Items []MealItem `bson:"items" json:"items"`
}

// MealItem is a single food entry within a meal.
type MealItem struct {
	Description string `bson:"description" json:"description"`
	Quantity    string `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Calories    int    `bson:"calories,omitempty" json:"calories,omitempty"`
}

// GeneralWellnessContent is the content shape of a general-wellness packet.
type GeneralWellnessContent struct {
	Title           string            `bson:"title" json:"title"`
	Summary         string            `bson:"summary,omitempty" json:"summary,omitempty"`
	Sections        []WellnessSection `bson:"sections" json:"sections"`
	Recommendations []string          `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
}

// WellnessSection is a titled block of guidance text.
type WellnessSection struct {
	Heading string `bson:"heading" json:"heading"`
	Body    string `bson:"body" json:"body"`
}

// Validate checks that exactly one variant is set and that it matches the
// declared Type, then applies the variant's own rules. A failure is always
// ErrContentShape (wrapped with detail).
func (c PacketContent) Validate() error {
	set := 0
	if c.Exercise != nil {
		set++
	}
	if c.Nutrition != nil {
		set++
	}
	if c.Wellness != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one content variant, got %d", ErrContentShape, set)
	}

	switch c.Type {
	case PacketTypeExerciseProgram:
		if c.Exercise == nil {
			return fmt.Errorf("%w: type %s requires the exercise variant", ErrContentShape, c.Type)
		}
		return c.Exercise.validate()
	case PacketTypeNutritionPlan:
		if c.Nutrition == nil {
			return fmt.Errorf("%w: type %s requires the nutrition variant", ErrContentShape, c.Type)
		}
		return c.Nutrition.validate()
	case PacketTypeGeneralWellness:
		if c.Wellness == nil {
			return fmt.Errorf("%w: type %s requires the wellness variant", ErrContentShape, c.Type)
		}
		return c.Wellness.validate()
	default:
		return fmt.Errorf("%w: unknown packet type %q", ErrContentShape, c.Type)
	}
}

func (e *ExerciseProgramContent) validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: exercise program requires a title", ErrContentShape)
	}
	if len(e.Weeks) == 0 {
		return fmt.Errorf("%w: exercise program requires at least one week", ErrContentShape)
	}
	for _, w := range e.Weeks {
		for _, d := range w.Days {
			for _, ex := range d.Exercises {
				if ex.Name == "" {
					return fmt.Errorf("%w: exercise block in week %d is missing a name", ErrContentShape, w.Number)
				}
				if ex.Sets <= 0 {
					return fmt.Errorf("%w: exercise %q requires a positive set count", ErrContentShape, ex.Name)
				}
			}
		}
	}
	return nil
}

func (n *NutritionPlanContent) validate() error {
	if n.Title == "" {
		return fmt.Errorf("%w: nutrition plan requires a title", ErrContentShape)
	}
	if n.DailyCalories <= 0 {
		return fmt.Errorf("%w: nutrition plan requires a positive daily calorie target", ErrContentShape)
	}
	for _, m := range n.Meals {
		if m.Name == "" {
			return fmt.Errorf("%w: nutrition plan meal is missing a name", ErrContentShape)
		}
		for _, item := range m.Items {
			if item.Description == "" {
				return fmt.Errorf("%w: meal %q has an item without a description", ErrContentShape, m.Name)
			}
		}
	}
	return nil
}

func (g *GeneralWellnessContent) validate() error {
	if g.Title == "" {
		return fmt.Errorf("%w: wellness packet requires a title", ErrContentShape)
	}
	for _, s := range g.Sections {
		if s.Heading == "" {
			return fmt.Errorf("%w: wellness section is missing a heading", ErrContentShape)
		}
	}
	return nil
}

// Clone returns a deep copy of the content, used when snapshotting a version
// so later edits cannot mutate history.
func (c PacketContent) Clone() PacketContent {
	out := PacketContent{Type: c.Type}
	if c.Exercise != nil {
		ex := *c.Exercise
		ex.Weeks = make([]ProgramWeek, len(c.Exercise.Weeks))
		for i, w := range c.Exercise.Weeks {
			week := w
			week.Days = make([]ProgramDay, len(w.Days))
			for j, d := range w.Days {
				day := d
				day.Exercises = append([]ExerciseBlock(nil), d.Exercises...)
				week.Days[j] = day
			}
			ex.Weeks[i] = week
		}
		out.Exercise = &ex
	}
	if c.Nutrition != nil {
		nu := *c.Nutrition
		nu.Meals = make([]Meal, len(c.Nutrition.Meals))
		for i, m := range c.Nutrition.Meals {
			meal := m
			meal.Items = append([]MealItem(nil), m.Items...)
			nu.Meals[i] = meal
		}
		out.Nutrition = &nu
	}
	if c.Wellness != nil {
		we := *c.Wellness
		we.Sections = append([]WellnessSection(nil), c.Wellness.Sections...)
		we.Recommendations = append([]string(nil), c.Wellness.Recommendations...)
		out.Wellness = &we
	}
	return out
}
