package profileform

import "github.com/myrjola/runcoach/internal/coach"

// Option is a value and label pair of a select or radio group.
type Option struct {
	Value string
	Label string
}

//nolint:gochecknoglobals // read-only option lists rendered by the templates.
var (
	BiologicalSexOptions = []Option{
		{Value: string(coach.Male), Label: "Male"},
		{Value: string(coach.Female), Label: "Female"},
		{Value: string(coach.PreferNotToSay), Label: "Prefer not to say"},
	}
	UnitOptions = []Option{
		{Value: string(coach.Kilometers), Label: "Kilometers"},
		{Value: string(coach.Miles), Label: "Miles"},
	}
	LevelOptions = []Option{
		{Value: string(coach.Beginner), Label: "Beginner"},
		{Value: string(coach.Intermediate), Label: "Intermediate"},
		{Value: string(coach.Advanced), Label: "Advanced"},
	}
	ActivityLevelOptions = []Option{
		{Value: string(coach.Sedentary), Label: "Sedentary - Minimal daily activity, mostly sitting"},
		{Value: string(coach.LightlyActive), Label: "Lightly Active - Light activity daily, 1-3 short sessions/week"},
		{Value: string(coach.ModeratelyActive), Label: "Moderately Active - 3-4 workouts/week or active job"},
		{Value: string(coach.VeryActive), Label: "Very Active - Daily intense workouts or demanding physical job"},
	}
	ConfirmationOptions = []Option{
		{Value: string(coach.Yes), Label: "yes"},
		{Value: string(coach.No), Label: "no"},
		{Value: string(coach.Maybe), Label: "maybe"},
	}
	RaceDistanceOptions = []Option{
		{Value: string(coach.FiveK), Label: "5k"},
		{Value: string(coach.TenK), Label: "10k"},
		{Value: string(coach.HalfMarathon), Label: "Half Marathon"},
		{Value: string(coach.Marathon), Label: "Marathon"},
	}
	EquipmentOptions = []Option{
		{Value: string(coach.BodyweightOnly), Label: "Bodyweight Only"},
		{Value: string(coach.DumbbellsKettlebells), Label: "Dumbbells / Kettlebells"},
		{Value: string(coach.FullGym), Label: "Full Gym"},
	}
	SessionsPerWeekOptions = []Option{
		{Value: "1", Label: "1 session"},
		{Value: "2", Label: "2 sessions"},
		{Value: "3", Label: "3 sessions"},
	}
	GoalKindOptions = []Option{
		{Value: string(coach.GoalFiveK), Label: "5k"},
		{Value: string(coach.GoalTenK), Label: "10k"},
		{Value: string(coach.GoalHalfMarathon), Label: "Half Marathon"},
		{Value: string(coach.GoalMarathon), Label: "Marathon"},
		{Value: string(coach.GoalFitnessMaintenance), Label: "Fitness Maintenance"},
		{Value: string(coach.GoalBaseBuilding), Label: "Base Building"},
	}
	GoalTypeOptions = []Option{
		{Value: string(coach.Finish), Label: "Finish"},
		{Value: string(coach.ImproveSpeed), Label: "Improve Speed"},
		{Value: string(coach.SpecificTimeTarget), Label: "Specific Time Target"},
	}
)

// Label returns the label of value in options or value itself.
func Label(options []Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
