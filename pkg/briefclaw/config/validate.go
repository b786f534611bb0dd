package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, err := ParseClock(fl.Field().String())
		return err == nil
	})
}

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks the configuration needed to serve or run the pipeline.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.BotToken() == "" {
		return fmt.Errorf("%s: %w", c.Platform, ErrMissingToken)
	}

	known := make(map[string]bool, len(c.Briefing.Buckets))
	for _, b := range c.Briefing.Buckets {
		known[b.Name] = true
	}
	if !c.Sources.News.Disabled && !known[c.Sources.News.Bucket] {
		return fmt.Errorf("invalid config: news bucket %q is not listed in briefing.buckets", c.Sources.News.Bucket)
	}
	for _, f := range c.Sources.Feeds {
		if !known[f.Bucket] {
			return fmt.Errorf("invalid config: feed %q bucket %q is not listed in briefing.buckets", f.Name, f.Bucket)
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "hhmm":
		return fmt.Sprintf("%s must be HH:MM", field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
