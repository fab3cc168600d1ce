package config

import (
	"sync"

	"github.com/spf13/viper"
)

var configMutex sync.Mutex

// UpdateFormDefaults updates the reset defaults and saves them to file
func (c *Config) UpdateFormDefaults(d FormDefaults) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	c.FormDefaults = d

	viper.Set("form_defaults.plan_target", d.PlanTarget)
	viper.Set("form_defaults.achievement_factor", d.AchievementFactor)
	viper.Set("form_defaults.required_manpower", d.RequiredManpower)
	viper.Set("form_defaults.actual_manpower", d.ActualManpower)
	viper.Set("form_defaults.start_time", d.StartTime)
	viper.Set("form_defaults.end_time", d.EndTime)
	viper.Set("form_defaults.break_time", d.BreakTime)

	return viper.WriteConfig()
}

// UpdateAutosave updates the draft autosave settings and saves to file
func (c *Config) UpdateAutosave(a AutosaveConfig) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	c.Autosave = a
	viper.Set("autosave.enabled", a.Enabled)
	viper.Set("autosave.interval_minutes", a.IntervalMinutes)

	return viper.WriteConfig()
}
