// Package validation wraps go-playground/validator/v10 behind a thread-safe
// singleton validator and human-readable error translation, used by
// internal/config to validate the resolved bootstrap Options before the
// supervisor starts.
//
// Beyond the stock tags, it registers "secretlocation", which accepts any
// string parsing under the "[PROVIDER:]<address>[!FORMAT][|JP:<path>]"
// grammar; env_locations and config_locations carry it.
//
// Example:
//
//	type Options struct {
//	    APIBaseURL   string        `validate:"required,url"`
//	    Timeout      time.Duration `validate:"gt=0"`
//	    EnvLocations []string      `validate:"dive,secretlocation"`
//	}
//
//	if err := validation.ValidateStruct(&opts); err != nil {
//	    return fmt.Errorf("invalid configuration: %w", err)
//	}
package validation
