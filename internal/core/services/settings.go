package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindList
)

// settingSpec describes how a key is parsed and validated.
type settingSpec struct {
	kind        valueKind
	rule        string
	description string
}

var settingSpecs = map[string]settingSpec{
	"identity":                   {kindString, "identity", "credential identity used by commands"},
	"client_secrets":             {kindString, "required", "path of the OAuth client secrets file"},
	"scopes":                     {kindList, "min=1,dive,url", "scopes requested at login (comma separated)"},
	"log_file":                   {kindString, "", "file receiving a copy of every log line"},
	"storage.backend":            {kindString, "oneof=file sqlite memory", "credential store backend: file, sqlite or memory"},
	"storage.dir":                {kindString, "required", "directory of the credential store"},
	"token.margin":               {kindDuration, "gte=0", "refresh tokens expiring within this window"},
	"token.watch":                {kindBool, "", "drop cached tokens when their file is removed"},
	"dispatcher.max_attempts":    {kindInt, "gte=1,lte=20", "attempts spent on transient failures"},
	"dispatcher.initial_backoff": {kindDuration, "gte=0", "first retry interval"},
	"dispatcher.max_backoff":     {kindDuration, "gte=0", "longest retry interval"},
	"dispatcher.multiplier":      {kindFloat, "gte=1", "retry interval growth factor"},
	"dispatcher.jitter":          {kindFloat, "gte=0,lte=1", "retry interval randomization in [0, 1]"},
	"dispatcher.attempt_timeout": {kindDuration, "gte=0", "timeout of one HTTP attempt"},
	"dispatcher.max_pages":       {kindInt, "gte=0", "fail listings that need more pages than this (0 = unlimited)"},
	"login.callback_port":        {kindInt, "gte=0,lte=65535", "loopback port for the login redirect (0 = any)"},
	"login.timeout":              {kindDuration, "gt=0", "how long to wait for consent"},
	"metrics.addr":               {kindString, "omitempty,hostname_port", "serve Prometheus metrics on this address"},
}

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// SettingsService reads and writes the user's configuration file.
type SettingsService struct {
	configStore driven.ConfigStore
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	validate := validator.New()
	_ = validate.RegisterValidation("identity", func(fl validator.FieldLevel) bool {
		return identityPattern.MatchString(fl.Field().String())
	})
	return &SettingsService{configStore: configStore, validate: validate}
}

// Get returns a known key and its stored value.
func (s *SettingsService) Get(key string) (*driving.Setting, error) {
	spec, ok := settingSpecs[key]
	if !ok {
		return nil, unknownKey(key)
	}
	val, set := s.configStore.Get(key)
	return &driving.Setting{Key: key, Value: val, Set: set, Description: spec.description}, nil
}

// Set parses raw for key, validates it and persists it.
func (s *SettingsService) Set(key, raw string) error {
	spec, ok := settingSpecs[key]
	if !ok {
		return unknownKey(key)
	}

	value, checked, err := parseSetting(spec.kind, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	if spec.rule != "" {
		if err := s.validate.Var(checked, spec.rule); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", domain.ErrInvalidInput, key, raw, err)
		}
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes key so the default applies again.
func (s *SettingsService) Unset(key string) error {
	if _, ok := settingSpecs[key]; !ok {
		return unknownKey(key)
	}
	return s.configStore.Unset(key)
}

// List returns every known key in sorted order.
func (s *SettingsService) List() []driving.Setting {
	keys := make([]string, 0, len(settingSpecs))
	for k := range settingSpecs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]driving.Setting, 0, len(keys))
	for _, k := range keys {
		val, set := s.configStore.Get(k)
		out = append(out, driving.Setting{Key: k, Value: val, Set: set, Description: settingSpecs[k].description})
	}
	return out
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// parseSetting returns the value to store and the value to validate.
// Durations are stored as text so the config loader can parse them.
func parseSetting(kind valueKind, raw string) (stored, checked any, err error) {
	switch kind {
	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("not an integer")
		}
		return n, n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("not a number")
		}
		return f, f, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("not a boolean")
		}
		return b, b, nil
	case kindDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("not a duration (e.g. 90s, 5m)")
		}
		return d.String(), int64(d), nil
	case kindList:
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items, items, nil
	default:
		return raw, raw, nil
	}
}

func unknownKey(key string) error {
	return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
}
