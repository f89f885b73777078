// Package profileform implements the four page profile wizard: page navigation, page scoped validation and the
// conversion between the form fields and [coach.UserProfileInput].
package profileform

import (
	"math"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/plandate"
)

// Page is one step of the wizard.
type Page string

const (
	PagePersonal  Page = "personal"
	PageFitness   Page = "fitness"
	PageLogistics Page = "logistics"
	PageGoal      Page = "goal"
)

// Pages lists the wizard steps in order.
//
//nolint:gochecknoglobals // read-only lookup table.
var Pages = []Page{PagePersonal, PageFitness, PageLogistics, PageGoal}

func (p Page) Title() string {
	switch p {
	case PagePersonal:
		return "Personal Details"
	case PageFitness:
		return "Fitness Level"
	case PageLogistics:
		return "Logistics & Strength"
	case PageGoal:
		return "Goal"
	default:
		return string(p)
	}
}

// Index returns the zero-based position of p in [Pages] or -1.
func (p Page) Index() int {
	return slices.Index(Pages, p)
}

// TimeLayout selects how [FormatTime] groups digits.
type TimeLayout string

const (
	LayoutMinSec     TimeLayout = "MM:SS"
	LayoutHourMinSec TimeLayout = "HH:MM:SS"
)

//nolint:gochecknoglobals // compiled once.
var (
	nonDigit       = regexp.MustCompile(`\D`)
	hourMinSecExpr = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	minSecExpr     = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// FormatTime strips everything but digits from value, truncates the excess and inserts the colons of layout. It is
// applied to every time-like field on decode so that partially typed values come back formatted.
func FormatTime(value string, layout TimeLayout) string {
	digits := nonDigit.ReplaceAllString(value, "")
	maxDigits := 6
	if layout == LayoutMinSec {
		maxDigits = 4
	}
	if len(digits) > maxDigits {
		digits = digits[:maxDigits]
	}
	switch {
	case len(digits) <= 2:
		return digits
	case len(digits) <= 4:
		return digits[:2] + ":" + digits[2:]
	default:
		return digits[:2] + ":" + digits[2:4] + ":" + digits[4:]
	}
}

// Form is the wizard state. It is kept in the web session between requests so every field is exported and
// serialisable.
type Form struct {
	Page Page

	Name             string
	Age              int
	BiologicalSex    coach.BiologicalSex
	Units            coach.DistanceUnit
	HasInjuryHistory bool
	InjuryHistory    string

	Level                 coach.FitnessLevel
	ActivityLevel         coach.ActivityLevel
	CanRunNonstop30Min    coach.Confirmation
	AverageWeeklyDistance float64
	CurrentLongestRun     float64
	RecentRaceTime        string
	RecentRaceDistance    coach.RaceDistance
	EasyRunPace           string

	FirstTrainingDate string
	DaysAvailable     []coach.DayOfWeek
	LongRunDay        coach.DayOfWeek
	WantsStrength     bool
	EquipmentAccess   coach.EquipmentAccess
	SessionsPerWeek   int

	GoalKind   coach.GoalKind
	GoalType   coach.GoalType
	RaceDate   string
	TargetTime string

	Errors map[string]string
}

// New returns an empty wizard on the first page. The first training date defaults to the day after today.
func New(today time.Time) Form {
	return Form{
		Page:              PagePersonal,
		BiologicalSex:     coach.PreferNotToSay,
		Units:             coach.Kilometers,
		Level:             coach.Beginner,
		FirstTrainingDate: plandate.Format(plandate.AddDays(plandate.Day(today), 1)),
		GoalKind:          coach.GoalFiveK,
		GoalType:          coach.Finish,
	}
}

// FromProfile pre-fills the wizard with a stored profile. The age is derived from the birth date as of today.
func FromProfile(profile coach.UserProfile, today time.Time) Form {
	return FromInput(profile.Input(today))
}

// FromInput pre-fills the wizard with in.
func FromInput(in coach.UserProfileInput) Form {
	f := Form{
		Page:              PagePersonal,
		Name:              in.Name,
		Age:               in.Age,
		BiologicalSex:     in.BiologicalSex,
		Units:             in.Units,
		HasInjuryHistory:  in.InjuryHistory != "",
		InjuryHistory:     in.InjuryHistory,
		FirstTrainingDate: in.FirstTrainingDate,
		DaysAvailable:     slices.Clone(in.Logistics.DaysAvailable),
		LongRunDay:        in.Logistics.LongRunDay,
		Level:             coach.Beginner,
		GoalKind:          coach.GoalFiveK,
		GoalType:          coach.Finish,
	}
	if in.Strength != nil {
		f.WantsStrength = true
		f.EquipmentAccess = in.Strength.EquipmentAccess
		f.SessionsPerWeek = in.Strength.SessionsPerWeek
	}
	if in.Fitness != nil {
		coach.MatchFitness(in.Fitness,
			func(b coach.BeginnerFitness) struct{} {
				f.ActivityLevel = b.ActivityLevel
				f.CanRunNonstop30Min = b.CanRunNonstop30Min
				return struct{}{}
			},
			func(e coach.ExperiencedFitness) struct{} {
				f.Level = e.Experience
				f.AverageWeeklyDistance = e.AverageWeeklyDistance
				f.CurrentLongestRun = e.CurrentLongestRun
				f.EasyRunPace = e.EasyRunPace
				if e.RecentRace != nil {
					f.RecentRaceTime = e.RecentRace.Time
					f.RecentRaceDistance = e.RecentRace.Distance
				}
				return struct{}{}
			})
	}
	if in.Goal != nil {
		f.setGoal(in.Goal)
	}
	return f
}

func (f *Form) setGoal(g coach.Goal) {
	f.GoalKind = g.Kind()
	f.GoalType = g.Intent()
	race := coach.MatchGoal(g,
		func(r coach.RaceGoal) [2]string { return [2]string{r.RaceDate, r.TargetTime} },
		func(coach.GeneralGoal) [2]string { return [2]string{} },
	)
	f.RaceDate, f.TargetTime = race[0], race[1]
}

// ApplyProposal folds a verifier proposal into the form and moves to the first page it changed so that the user
// can review it before resubmitting.
//
// A new goal replaces the current one. A new days-per-week count trims the available days in week order, always
// keeping the long run day. A count larger than the current selection leaves the days for the user to pick.
func (f *Form) ApplyProposal(p coach.Proposal) {
	f.Errors = nil
	var changed []Page
	if p.NewDaysPerWeek != nil && *p.NewDaysPerWeek > 0 {
		f.DaysAvailable = keepDays(f.DaysAvailable, f.LongRunDay, *p.NewDaysPerWeek)
		changed = append(changed, PageLogistics)
	}
	if p.NewGoal != nil {
		f.setGoal(p.NewGoal)
		changed = append(changed, PageGoal)
	}
	if len(changed) > 0 {
		f.Page = changed[0]
	}
}

func keepDays(days []coach.DayOfWeek, longRun coach.DayOfWeek, n int) []coach.DayOfWeek {
	if len(days) <= n {
		return days
	}
	var kept []coach.DayOfWeek
	if slices.Contains(days, longRun) {
		kept = append(kept, longRun)
	}
	for _, d := range coach.Week {
		if len(kept) == n {
			break
		}
		if d != longRun && slices.Contains(days, d) {
			kept = append(kept, d)
		}
	}
	return sortDays(kept)
}

func sortDays(days []coach.DayOfWeek) []coach.DayOfWeek {
	slices.SortFunc(days, func(a, b coach.DayOfWeek) int {
		return plandate.WeekdayOffset(a) - plandate.WeekdayOffset(b)
	})
	return days
}

// Decode reads the fields of the current page from values. Fields of other pages are left alone. Available days
// are not decoded; they change through [Form.ToggleDay].
func (f *Form) Decode(values url.Values) {
	switch f.Page {
	case PagePersonal:
		f.Name = values.Get("name")
		f.Age = atoi(values.Get("age"))
		f.BiologicalSex = coach.BiologicalSex(values.Get("biological_sex"))
		f.Units = coach.DistanceUnit(values.Get("units"))
		f.HasInjuryHistory = checked(values, "has_injury_history")
		f.InjuryHistory = ""
		if f.HasInjuryHistory {
			f.InjuryHistory = strings.TrimSpace(values.Get("injury_history"))
		}
	case PageFitness:
		f.decodeFitness(values)
	case PageLogistics:
		f.FirstTrainingDate = values.Get("first_training_date")
		f.LongRunDay = coach.DayOfWeek(values.Get("long_run_day"))
		if !slices.Contains(f.DaysAvailable, f.LongRunDay) {
			f.LongRunDay = ""
		}
		wasWanted := f.WantsStrength
		f.WantsStrength = checked(values, "wants_strength")
		switch {
		case !f.WantsStrength:
			f.EquipmentAccess, f.SessionsPerWeek = "", 0
		case !wasWanted:
			f.EquipmentAccess, f.SessionsPerWeek = coach.BodyweightOnly, 1
		default:
			f.EquipmentAccess = coach.EquipmentAccess(values.Get("equipment_access"))
			f.SessionsPerWeek = atoi(values.Get("sessions_per_week"))
		}
	case PageGoal:
		f.GoalKind = coach.GoalKind(values.Get("goal_kind"))
		if f.GoalKind == "" {
			f.GoalKind = coach.GoalFiveK
		}
		f.GoalType = coach.Finish
		f.RaceDate, f.TargetTime = "", ""
		if f.GoalKind.IsRace() {
			if gt := coach.GoalType(values.Get("goal_type")); gt != "" {
				f.GoalType = gt
			}
			f.RaceDate = values.Get("race_date")
			if f.GoalType == coach.SpecificTimeTarget {
				f.TargetTime = FormatTime(values.Get("target_time"), LayoutHourMinSec)
			}
		}
	}
}

func (f *Form) decodeFitness(values url.Values) {
	level := coach.FitnessLevel(values.Get("level"))
	if level == "" {
		level = coach.Beginner
	}
	if level != f.Level {
		// Switching between beginner and experienced starts the new branch empty.
		f.Level = level
		f.ActivityLevel, f.CanRunNonstop30Min = "", ""
		f.AverageWeeklyDistance, f.CurrentLongestRun = 0, 0
		f.RecentRaceTime, f.RecentRaceDistance, f.EasyRunPace = "", "", ""
		return
	}
	if level == coach.Beginner {
		f.ActivityLevel = coach.ActivityLevel(values.Get("activity_level"))
		f.CanRunNonstop30Min = coach.Confirmation(values.Get("can_run_nonstop_30min"))
		return
	}
	f.AverageWeeklyDistance = atof(values.Get("average_weekly_distance"))
	f.CurrentLongestRun = atof(values.Get("current_longest_run"))
	f.RecentRaceTime = FormatTime(values.Get("recent_race_time"), LayoutHourMinSec)
	f.RecentRaceDistance = coach.RaceDistance(values.Get("recent_race_distance"))
	f.EasyRunPace = FormatTime(values.Get("easy_run_pace"), LayoutMinSec)
}

func checked(values url.Values, key string) bool {
	v := values.Get(key)
	return v == "on" || v == "true"
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// atof parses s as a finite number. Anything else, NaN and Inf included, reads as 0.
func atof(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// ToggleDay adds or removes day from the available days. Removing the long run day also clears it.
func (f *Form) ToggleDay(day coach.DayOfWeek) {
	if !slices.Contains(coach.Week, day) {
		return
	}
	if i := slices.Index(f.DaysAvailable, day); i >= 0 {
		f.DaysAvailable = slices.Delete(f.DaysAvailable, i, i+1)
		if f.LongRunDay == day {
			f.LongRunDay = ""
		}
		return
	}
	f.DaysAvailable = sortDays(append(f.DaysAvailable, day))
}

// IsFirst reports whether the wizard is on its first page.
func (f *Form) IsFirst() bool { return f.Page.Index() <= 0 }

// IsLast reports whether the wizard is on its last page.
func (f *Form) IsLast() bool { return f.Page.Index() == len(Pages)-1 }

// Next validates the current page and moves forward when it has no errors.
func (f *Form) Next(today time.Time) bool {
	f.Errors = f.ValidatePage(f.Page, today)
	if len(f.Errors) > 0 {
		return false
	}
	if !f.IsLast() {
		f.Page = Pages[f.Page.Index()+1]
	}
	return true
}

// Back moves to the previous page without validating and clears any errors.
func (f *Form) Back() {
	f.Errors = nil
	if !f.IsFirst() {
		f.Page = Pages[f.Page.Index()-1]
	}
}

// Submit validates the current page and returns the profile to send to the backend. Before the last page it behaves
// like [Form.Next] and reports false.
//
// Only the current page is validated. Earlier pages were validated when the user left them.
func (f *Form) Submit(today time.Time) (coach.UserProfileInput, bool) {
	if !f.IsLast() {
		f.Next(today)
		return coach.UserProfileInput{}, false
	}
	f.Errors = f.ValidatePage(f.Page, today)
	if len(f.Errors) > 0 {
		return coach.UserProfileInput{}, false
	}
	return f.Input(), true
}

// ValidatePage returns the field errors of page keyed by field name.
func (f *Form) ValidatePage(page Page, today time.Time) map[string]string {
	errs := map[string]string{}
	switch page {
	case PagePersonal:
		f.validatePersonal(errs)
	case PageFitness:
		f.validateFitness(errs)
	case PageLogistics:
		f.validateLogistics(errs, today)
	case PageGoal:
		f.validateGoal(errs)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *Form) validatePersonal(errs map[string]string) {
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required"
	}
	if f.Age <= 0 {
		errs["age"] = "Age must be greater than 0"
	}
}

func (f *Form) validateFitness(errs map[string]string) {
	if f.Level == coach.Beginner {
		if f.ActivityLevel == "" {
			errs["activity_level"] = "Activity level is required"
		}
		if f.CanRunNonstop30Min == "" {
			errs["can_run_nonstop_30min"] = "Please answer this question"
		}
		return
	}
	if f.AverageWeeklyDistance <= 0 {
		errs["average_weekly_distance"] = "Distance must be positive"
	}
	if f.CurrentLongestRun <= 0 {
		errs["current_longest_run"] = "Distance must be positive"
	}
	switch {
	case f.RecentRaceTime == "" && f.RecentRaceDistance != "":
		errs["recent_race_time"] = "Race time is required when a race distance is given"
	case f.RecentRaceTime != "" && !hourMinSecExpr.MatchString(f.RecentRaceTime):
		errs["recent_race_time"] = "Format must be HH:MM:SS"
	case f.RecentRaceTime != "" && f.RecentRaceDistance == "":
		errs["recent_race_distance"] = "Race distance is required when a race time is given"
	}
	if f.EasyRunPace != "" && !minSecExpr.MatchString(f.EasyRunPace) {
		errs["easy_run_pace"] = "Format must be MM:SS"
	}
}

func (f *Form) validateLogistics(errs map[string]string, today time.Time) {
	if f.FirstTrainingDate == "" {
		errs["first_training_date"] = "First training date is required"
	} else if first, err := plandate.Parse(f.FirstTrainingDate); err != nil || !first.After(plandate.Day(today)) {
		errs["first_training_date"] = "First training date must be in the future"
	}
	if len(f.DaysAvailable) == 0 {
		errs["days_available"] = "Select at least one available day"
	}
	if f.LongRunDay == "" || !slices.Contains(f.DaysAvailable, f.LongRunDay) {
		errs["long_run_day"] = "Select a day for your long run"
	}
	if f.WantsStrength {
		if f.EquipmentAccess == "" {
			errs["equipment_access"] = "Equipment access is required"
		}
		if f.SessionsPerWeek < 1 || f.SessionsPerWeek > 3 {
			errs["sessions_per_week"] = "Sessions per week must be between 1 and 3"
		}
	}
}

func (f *Form) validateGoal(errs map[string]string) {
	if f.GoalKind.IsRace() && f.RaceDate != "" && f.FirstTrainingDate != "" {
		race, raceErr := plandate.Parse(f.RaceDate)
		first, firstErr := plandate.Parse(f.FirstTrainingDate)
		if raceErr == nil && firstErr == nil && !race.After(first) {
			errs["race_date"] = "Race date must be after first training date"
		}
	}
	if f.GoalType == coach.SpecificTimeTarget {
		if f.TargetTime == "" {
			errs["target_time"] = "Target time is required"
		} else if !hourMinSecExpr.MatchString(f.TargetTime) {
			errs["target_time"] = "Format must be HH:MM:SS"
		}
	}
}

// Input converts the form to the shape the backend accepts.
func (f *Form) Input() coach.UserProfileInput {
	in := coach.UserProfileInput{
		Name:          strings.TrimSpace(f.Name),
		Age:           f.Age,
		BiologicalSex: f.BiologicalSex,
		Units:         f.Units,
		Logistics: coach.Logistics{
			DaysAvailable: slices.Clone(f.DaysAvailable),
			LongRunDay:    f.LongRunDay,
		},
		FirstTrainingDate: f.FirstTrainingDate,
	}
	if f.HasInjuryHistory {
		in.InjuryHistory = f.InjuryHistory
	}
	if f.WantsStrength {
		in.Strength = &coach.StrengthProfile{EquipmentAccess: f.EquipmentAccess, SessionsPerWeek: f.SessionsPerWeek}
	}

	if f.Level == coach.Beginner || f.Level == "" {
		in.Fitness = coach.BeginnerFitness{ActivityLevel: f.ActivityLevel, CanRunNonstop30Min: f.CanRunNonstop30Min}
	} else {
		experienced := coach.ExperiencedFitness{
			Experience:            f.Level,
			AverageWeeklyDistance: f.AverageWeeklyDistance,
			CurrentLongestRun:     f.CurrentLongestRun,
			EasyRunPace:           f.EasyRunPace,
		}
		if f.RecentRaceTime != "" || f.RecentRaceDistance != "" {
			experienced.RecentRace = &coach.RecentRace{Time: f.RecentRaceTime, Distance: f.RecentRaceDistance}
		}
		in.Fitness = experienced
	}

	if f.GoalKind.IsRace() {
		goal := coach.RaceGoal{Distance: coach.RaceDistance(f.GoalKind), GoalType: f.GoalType, RaceDate: f.RaceDate}
		if f.GoalType == coach.SpecificTimeTarget {
			goal.TargetTime = f.TargetTime
		}
		in.Goal = goal
	} else {
		in.Goal = coach.GeneralGoal{Objective: f.GoalKind, GoalType: f.GoalType}
	}
	return in
}
