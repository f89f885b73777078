package coach

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/runcoach/internal/errors"
	"github.com/myrjola/runcoach/internal/ptr"
)

type DistanceUnit string

const (
	Kilometers DistanceUnit = "kilometers"
	Miles      DistanceUnit = "miles"
)

type BiologicalSex string

const (
	Male           BiologicalSex = "male"
	Female         BiologicalSex = "female"
	PreferNotToSay BiologicalSex = "prefer_not_to_say"
)

type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "lightly_active"
	ModeratelyActive ActivityLevel = "moderately_active"
	VeryActive       ActivityLevel = "very_active"
)

type Confirmation string

const (
	Yes   Confirmation = "yes"
	No    Confirmation = "no"
	Maybe Confirmation = "maybe"
)

type FitnessLevel string

const (
	Beginner     FitnessLevel = "beginner"
	Intermediate FitnessLevel = "intermediate"
	Advanced     FitnessLevel = "advanced"
)

type RaceDistance string

const (
	FiveK        RaceDistance = "5k"
	TenK         RaceDistance = "10k"
	HalfMarathon RaceDistance = "half_marathon"
	Marathon     RaceDistance = "marathon"
)

type EquipmentAccess string

const (
	BodyweightOnly       EquipmentAccess = "bodyweight_only"
	DumbbellsKettlebells EquipmentAccess = "dumbbells_kettlebells"
	FullGym              EquipmentAccess = "full_gym"
)

// Fitness is either [BeginnerFitness] or [ExperiencedFitness]. Use [MatchFitness] to branch on it.
type Fitness interface {
	Level() FitnessLevel
	isFitness()
}

type BeginnerFitness struct {
	ActivityLevel      ActivityLevel
	CanRunNonstop30Min Confirmation
}

func (BeginnerFitness) Level() FitnessLevel { return Beginner }
func (BeginnerFitness) isFitness()          {}

type RecentRace struct {
	Time     string       `json:"time"`
	Distance RaceDistance `json:"distance"`
}

// ExperiencedFitness covers the intermediate and advanced levels.
type ExperiencedFitness struct {
	Experience            FitnessLevel
	AverageWeeklyDistance float64
	CurrentLongestRun     float64
	RecentRace            *RecentRace
	EasyRunPace           string
}

func (f ExperiencedFitness) Level() FitnessLevel { return f.Experience }
func (ExperiencedFitness) isFitness()            {}

// MatchFitness calls the function matching the variant of f.
func MatchFitness[T any](f Fitness, beginner func(BeginnerFitness) T, experienced func(ExperiencedFitness) T) T {
	switch v := f.(type) {
	case BeginnerFitness:
		return beginner(v)
	case ExperiencedFitness:
		return experienced(v)
	default:
		panic(fmt.Sprintf("coach: unhandled fitness variant %T", f))
	}
}

// GoalKind is the race distance or general objective the runner trains for.
type GoalKind string

const (
	GoalFiveK              = GoalKind(FiveK)
	GoalTenK               = GoalKind(TenK)
	GoalHalfMarathon       = GoalKind(HalfMarathon)
	GoalMarathon           = GoalKind(Marathon)
	GoalFitnessMaintenance GoalKind = "fitness_maintenance"
	GoalBaseBuilding       GoalKind = "base_building"
)

// IsRace reports whether k targets a race distance.
func (k GoalKind) IsRace() bool {
	switch k {
	case GoalFiveK, GoalTenK, GoalHalfMarathon, GoalMarathon:
		return true
	default:
		return false
	}
}

type GoalType string

const (
	Finish             GoalType = "finish"
	ImproveSpeed       GoalType = "improve_speed"
	SpecificTimeTarget GoalType = "specific_time_target"
)

// Goal is either [RaceGoal] or [GeneralGoal]. Use [MatchGoal] to branch on it.
type Goal interface {
	Kind() GoalKind
	Intent() GoalType
	isGoal()
}

type RaceGoal struct {
	Distance RaceDistance
	GoalType GoalType
	// RaceDate is a YYYY-MM-DD date or empty.
	RaceDate string
	// TargetTime is HH:MM:SS and only meaningful for SpecificTimeTarget.
	TargetTime string
}

func (g RaceGoal) Kind() GoalKind   { return GoalKind(g.Distance) }
func (g RaceGoal) Intent() GoalType { return g.GoalType }
func (RaceGoal) isGoal()            {}

type GeneralGoal struct {
	Objective GoalKind
	GoalType  GoalType
}

func (g GeneralGoal) Kind() GoalKind   { return g.Objective }
func (g GeneralGoal) Intent() GoalType { return g.GoalType }
func (GeneralGoal) isGoal()            {}

// MatchGoal calls the function matching the variant of g.
func MatchGoal[T any](g Goal, race func(RaceGoal) T, general func(GeneralGoal) T) T {
	switch v := g.(type) {
	case RaceGoal:
		return race(v)
	case GeneralGoal:
		return general(v)
	default:
		panic(fmt.Sprintf("coach: unhandled goal variant %T", g))
	}
}

type Logistics struct {
	DaysAvailable []DayOfWeek `json:"days_available"`
	LongRunDay    DayOfWeek   `json:"long_run_day"`
}

type StrengthProfile struct {
	EquipmentAccess EquipmentAccess `json:"equipment_access"`
	SessionsPerWeek int             `json:"sessions_per_week"`
}

// UserProfileInput is what the profile form submits. The backend converts Age to a birth date.
type UserProfileInput struct {
	Name              string           `json:"name"`
	Age               int              `json:"age"`
	BiologicalSex     BiologicalSex    `json:"biological_sex"`
	Units             DistanceUnit     `json:"units"`
	InjuryHistory     string           `json:"injury_history,omitempty"`
	Fitness           Fitness          `json:"-"`
	Logistics         Logistics        `json:"logistics"`
	Strength          *StrengthProfile `json:"strength,omitempty"`
	Goal              Goal             `json:"-"`
	FirstTrainingDate string           `json:"first_training_date"`
}

// UserProfile is the stored profile as returned by the backend.
type UserProfile struct {
	Name              string           `json:"name"`
	BirthDate         string           `json:"birth_date"`
	BiologicalSex     BiologicalSex    `json:"biological_sex"`
	Units             DistanceUnit     `json:"units"`
	InjuryHistory     string           `json:"injury_history,omitempty"`
	Fitness           Fitness          `json:"-"`
	Logistics         Logistics        `json:"logistics"`
	Strength          *StrengthProfile `json:"strength,omitempty"`
	Goal              Goal             `json:"-"`
	FirstTrainingDate string           `json:"first_training_date"`
}

// Input converts the stored profile to the form shape, deriving the age as of today.
func (p UserProfile) Input(today time.Time) UserProfileInput {
	age := 0
	if birth, err := time.Parse(time.DateOnly, p.BirthDate); err == nil {
		age = AgeOn(birth, today)
	}
	return UserProfileInput{
		Name:              p.Name,
		Age:               age,
		BiologicalSex:     p.BiologicalSex,
		Units:             p.Units,
		InjuryHistory:     p.InjuryHistory,
		Fitness:           p.Fitness,
		Logistics:         p.Logistics,
		Strength:          p.Strength,
		Goal:              p.Goal,
		FirstTrainingDate: p.FirstTrainingDate,
	}
}

// AgeOn returns the age in whole years of someone born on birth as of today.
func AgeOn(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

// BirthDateFromAge approximates a birth date for someone age years old today.
func BirthDateFromAge(age int, today time.Time) time.Time {
	return time.Date(today.Year()-age, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
}

type variantFields struct {
	Fitness json.RawMessage `json:"fitness"`
	Goal    json.RawMessage `json:"goal"`
}

func (p UserProfileInput) MarshalJSON() ([]byte, error) {
	type plain UserProfileInput
	v, err := encodeVariants(p.Fitness, p.Goal)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		variantFields
	}{plain(p), v})
}

func (p *UserProfileInput) UnmarshalJSON(data []byte) error {
	type plain UserProfileInput
	var aux struct {
		plain
		variantFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "unmarshal profile input")
	}
	*p = UserProfileInput(aux.plain)
	var err error
	p.Fitness, p.Goal, err = decodeVariants(aux.variantFields)
	return err
}

func (p UserProfile) MarshalJSON() ([]byte, error) {
	type plain UserProfile
	v, err := encodeVariants(p.Fitness, p.Goal)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		variantFields
	}{plain(p), v})
}

func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var aux struct {
		plain
		variantFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "unmarshal profile")
	}
	*p = UserProfile(aux.plain)
	var err error
	p.Fitness, p.Goal, err = decodeVariants(aux.variantFields)
	return err
}

func encodeVariants(f Fitness, g Goal) (variantFields, error) {
	var (
		v   variantFields
		err error
	)
	if v.Fitness, err = MarshalFitness(f); err != nil {
		return v, err
	}
	if v.Goal, err = MarshalGoal(g); err != nil {
		return v, err
	}
	return v, nil
}

func decodeVariants(v variantFields) (Fitness, Goal, error) {
	f, err := UnmarshalFitness(v.Fitness)
	if err != nil {
		return nil, nil, err
	}
	g, err := UnmarshalGoal(v.Goal)
	if err != nil {
		return nil, nil, err
	}
	return f, g, nil
}

type fitnessWire struct {
	Level                 FitnessLevel   `json:"level"`
	GeneralActivityLevel  *ActivityLevel `json:"general_activity_level,omitempty"`
	CanRunNonstop30Min    *Confirmation  `json:"can_run_nonstop_30min,omitempty"`
	AverageWeeklyDistance *float64       `json:"average_weekly_distance,omitempty"`
	CurrentLongestRun     *float64       `json:"current_longest_run,omitempty"`
	RecentRace            *RecentRace    `json:"recent_race,omitempty"`
	EasyRunPace           string         `json:"easy_run_pace,omitempty"`
}

// MarshalFitness encodes f with its level as the discriminator. A nil f encodes as null.
func MarshalFitness(f Fitness) ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	wire := MatchFitness(f,
		func(b BeginnerFitness) fitnessWire {
			return fitnessWire{
				Level:                Beginner,
				GeneralActivityLevel: ptr.NonZero(b.ActivityLevel),
				CanRunNonstop30Min:   ptr.NonZero(b.CanRunNonstop30Min),
			}
		},
		func(e ExperiencedFitness) fitnessWire {
			return fitnessWire{
				Level:                 e.Experience,
				AverageWeeklyDistance: ptr.Ref(e.AverageWeeklyDistance),
				CurrentLongestRun:     ptr.Ref(e.CurrentLongestRun),
				RecentRace:            e.RecentRace,
				EasyRunPace:           e.EasyRunPace,
			}
		},
	)
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal fitness")
	}
	return b, nil
}

// UnmarshalFitness decodes a fitness object discriminated by its level. Null decodes to nil.
func UnmarshalFitness(data []byte) (Fitness, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil //nolint:nilnil // absent fitness is not an error.
	}
	var wire fitnessWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "unmarshal fitness")
	}
	switch wire.Level {
	case Beginner:
		return BeginnerFitness{
			ActivityLevel:      ptr.Deref(wire.GeneralActivityLevel, ""),
			CanRunNonstop30Min: ptr.Deref(wire.CanRunNonstop30Min, ""),
		}, nil
	case Intermediate, Advanced:
		return ExperiencedFitness{
			Experience:            wire.Level,
			AverageWeeklyDistance: ptr.Deref(wire.AverageWeeklyDistance, 0),
			CurrentLongestRun:     ptr.Deref(wire.CurrentLongestRun, 0),
			RecentRace:            wire.RecentRace,
			EasyRunPace:           wire.EasyRunPace,
		}, nil
	default:
		return nil, errors.Wrap(ErrUnknownVariant, "fitness", slog.String("level", string(wire.Level)))
	}
}

type goalWire struct {
	Type          GoalKind `json:"type"`
	RaceDate      string   `json:"race_date,omitempty"`
	GoalType      GoalType `json:"goal_type"`
	TargetTimeStr string   `json:"target_time_str,omitempty"`
}

// MarshalGoal encodes g with its type as the discriminator. A nil g encodes as null.
func MarshalGoal(g Goal) ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	wire := MatchGoal(g,
		func(r RaceGoal) goalWire {
			return goalWire{
				Type:          GoalKind(r.Distance),
				RaceDate:      r.RaceDate,
				GoalType:      r.GoalType,
				TargetTimeStr: r.TargetTime,
			}
		},
		func(gg GeneralGoal) goalWire {
			return goalWire{Type: gg.Objective, RaceDate: "", GoalType: gg.GoalType, TargetTimeStr: ""}
		},
	)
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal goal")
	}
	return b, nil
}

// UnmarshalGoal decodes a goal object discriminated by its type. Null decodes to nil.
func UnmarshalGoal(data []byte) (Goal, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil //nolint:nilnil // absent goal is not an error.
	}
	var wire goalWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "unmarshal goal")
	}
	switch {
	case wire.Type.IsRace():
		return RaceGoal{
			Distance:   RaceDistance(wire.Type),
			GoalType:   wire.GoalType,
			RaceDate:   wire.RaceDate,
			TargetTime: wire.TargetTimeStr,
		}, nil
	case wire.Type == GoalFitnessMaintenance || wire.Type == GoalBaseBuilding:
		return GeneralGoal{Objective: wire.Type, GoalType: wire.GoalType}, nil
	default:
		return nil, errors.Wrap(ErrUnknownVariant, "goal", slog.String("type", string(wire.Type)))
	}
}
