package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// UserProfileModel is the stored profile snapshot source. Profile editing
// happens upstream; this service only reads it.
type UserProfileModel struct {
	ID            uuid.UUID   `gorm:"type:char(36);primaryKey"`
	UserID        string      `gorm:"type:varchar(64);not null;uniqueIndex"`
	DietKey       string      `gorm:"type:varchar(64);not null"`
	Allergies     StringSlice `gorm:"type:json"`
	Dislikes      StringSlice `gorm:"type:json"`
	MealPrefs     StringSlice `gorm:"type:json"`
	HouseholdSize int         `gorm:"default:1"`
	ScalingPolicy string      `gorm:"type:varchar(32)"`
	Language      string      `gorm:"type:varchar(16)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HardAvoidRuleModel is one household-level exclusion rule.
type HardAvoidRuleModel struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID        string    `gorm:"type:varchar(64);not null;index"`
	FoodCode      string    `gorm:"type:varchar(64)"`
	NameSubstring string    `gorm:"type:varchar(128)"`
	CreatedAt     time.Time
}

// BeforeCreate hook for UserProfileModel
func (m *UserProfileModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate hook for HardAvoidRuleModel
func (m *HardAvoidRuleModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (UserProfileModel) TableName() string {
	return "user_profiles"
}

func (HardAvoidRuleModel) TableName() string {
	return "hard_avoid_rules"
}

// ProfileProvider loads profile snapshots from the database
type ProfileProvider struct {
	db *gorm.DB
}

// NewProfileProvider creates a new profile provider
func NewProfileProvider(db *gorm.DB) outbound.ProfileProvider {
	return &ProfileProvider{db: db}
}

// LoadProfile returns the stored profile snapshot for a user
func (p *ProfileProvider) LoadProfile(ctx context.Context, userID string) (profile.Profile, error) {
	var model UserProfileModel

	result := p.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return profile.Profile{}, fmt.Errorf("profile not found for user %s", userID)
		}
		return profile.Profile{}, result.Error
	}

	return profile.Profile{
		UserID:          model.UserID,
		DietKey:         model.DietKey,
		Allergies:       model.Allergies,
		Dislikes:        model.Dislikes,
		MealPreferences: model.MealPrefs,
		HouseholdSize:   model.HouseholdSize,
		ScalingPolicy:   model.ScalingPolicy,
		Language:        profile.Locale(model.Language),
	}, nil
}

// Language returns the user's preferred locale, or the default
func (p *ProfileProvider) Language(ctx context.Context, userID string) (profile.Locale, error) {
	var model UserProfileModel

	result := p.db.WithContext(ctx).Select("language").First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return profile.DefaultLocale, nil
		}
		return profile.DefaultLocale, result.Error
	}

	if model.Language == "" {
		return profile.DefaultLocale, nil
	}
	return profile.Locale(model.Language), nil
}

// HardAvoidRules returns the household-level exclusion rules
func (p *ProfileProvider) HardAvoidRules(ctx context.Context, userID string) ([]profile.HardAvoidRule, error) {
	var models []HardAvoidRuleModel

	err := p.db.WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error
	if err != nil {
		return nil, err
	}

	rules := make([]profile.HardAvoidRule, 0, len(models))
	for _, m := range models {
		rules = append(rules, profile.HardAvoidRule{
			FoodCode:      m.FoodCode,
			NameSubstring: m.NameSubstring,
		})
	}
	return rules, nil
}
