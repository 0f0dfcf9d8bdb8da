package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/sznuper/agentprobe/internal/probe"
)

// CronParser accepts standard five-field expressions and descriptors such as
// @hourly and @every 5m.
var CronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a schedule.cron expression with the parser the daemon uses.
func ParseCron(spec string) (cron.Schedule, error) {
	return CronParser.Parse(spec)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := ParseCron(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the config for errors that would make a run meaningless.
// All problems are reported together, one per line.
func Validate(cfg *Config) error {
	var problems []string

	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	for i, ep := range cfg.Endpoints {
		if ep.Address == "" {
			continue
		}
		if ep.Kind == "" {
			if _, err := probe.ResolveKind(ep.Address); err != nil {
				problems = append(problems, fmt.Sprintf("endpoints[%d] (%s): %v", i, ep.Name, err))
			}
			continue
		}
		if err := probe.CheckKind(ep.Kind, ep.Address); err != nil {
			problems = append(problems, fmt.Sprintf("endpoints[%d] (%s): %v", i, ep.Name, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "\n"))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: required", field)
	case "min":
		return fmt.Sprintf("%s: at least %s required", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s: duplicate %s", field, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", field, fe.Value(), fe.Param())
	case "duration":
		return fmt.Sprintf("%s: %q is not a positive duration", field, fe.Value())
	case "cronspec":
		return fmt.Sprintf("%s: %q is not a valid cron expression", field, fe.Value())
	case "excluded_with":
		return fmt.Sprintf("%s: cannot be combined with %s", field, strings.ToLower(fe.Param()))
	case "email":
		return fmt.Sprintf("%s: %q is not an email address", field, fe.Value())
	case "url":
		return fmt.Sprintf("%s: %q is not a URL", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q check (value %v)", field, fe.Tag(), fe.Value())
	}
}
