// Package profile holds the user profile snapshot the planner consumes.
// Profile loading itself is an external collaborator behind a narrow port.
package profile

// Locale is a BCP 47 language tag used for translation on the read path.
type Locale string

// DefaultLocale is used when the profile provider reports no language.
const DefaultLocale Locale = "en"

// Profile is the frozen view of a user taken at generation time.
// It travels inside the request snapshot and never changes afterwards.
type Profile struct {
	UserID          string   `json:"userId"`
	DietKey         string   `json:"dietKey"`
	Allergies       []string `json:"allergies,omitempty"`
	Dislikes        []string `json:"dislikes,omitempty"`
	MealPreferences []string `json:"mealPreferences,omitempty"`
	HouseholdSize   int      `json:"householdSize,omitempty"`
	ScalingPolicy   string   `json:"scalingPolicy,omitempty"`
	Language        Locale   `json:"language,omitempty"`
}

// HardAvoidRule blocks candidates at load time by ingredient code or by a
// case-insensitive name substring.
type HardAvoidRule struct {
	FoodCode      string `json:"foodCode,omitempty"`
	NameSubstring string `json:"nameSubstring,omitempty"`
}
