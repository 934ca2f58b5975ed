// Package policy holds the compliance rules that operators tune without a
// rebuild: prohibited terms, spam heuristics, opt-in/opt-out keywords, the
// consent validity horizon, quality-score weights and the send-limit tier
// table. Policies are loaded from YAML.
//
// Two baselines exist:
//   - Default() is the shipped policy used when no file is configured.
//   - Conservative() is used when a configured file cannot be found: no extra
//     terms are denied and only the lowest send tier is available.
//
// Sections omitted from a loaded file resolve the same way as Conservative():
// empty lists stay empty, omitted numeric knobs fall back to their defaults
// (an explicit 0 is kept for scoring weights and cold-start score), and a
// missing tier table collapses to the lowest default tier. Opt-out keywords
// are never empty; the default STOP set is always honored.
package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrPolicyMissing is returned (wrapped) by Load when the configured file
// does not exist. The accompanying Policy is Conservative() and usable.
var ErrPolicyMissing = errors.New("policy file not found")

// Policy is the full compliance rule set.
type Policy struct {
	Consent  ConsentPolicy `yaml:"consent"`
	Window   WindowPolicy  `yaml:"window"`
	Content  ContentPolicy `yaml:"content"`
	Keywords KeywordPolicy `yaml:"keywords"`
	Quality  QualityPolicy `yaml:"quality"`
	Tiers    []Tier        `yaml:"tiers"`
	Status   StatusPolicy  `yaml:"status"`
}

// ConsentPolicy controls how long an opt-in stays valid.
type ConsentPolicy struct {
	ValidityDays int `yaml:"validity_days"`
}

// WindowPolicy controls the customer-service window length.
type WindowPolicy struct {
	Hours float64 `yaml:"hours"`
}

// ContentPolicy configures the message content validator.
type ContentPolicy struct {
	MaxLength                  int      `yaml:"max_length"`
	MaxConsecutiveExclamations int      `yaml:"max_consecutive_exclamations"`
	MaxExclamations            int      `yaml:"max_exclamations"`
	UrgencyPhrases             []string `yaml:"urgency_phrases"`
	SpamPatterns               []string `yaml:"spam_patterns"`
	AllowedDomains             []string `yaml:"allowed_domains"`
	MaxCapsRatio               float64  `yaml:"max_caps_ratio"`
	MinCapsLetters             int      `yaml:"min_caps_letters"`
	ProhibitedTerms            []string `yaml:"prohibited_terms"`
}

// KeywordPolicy lists inbound keywords that change consent state.
type KeywordPolicy struct {
	OptOut []string `yaml:"opt_out"`
	OptIn  []string `yaml:"opt_in"`
}

// QualityPolicy configures the quality score computation.
type QualityPolicy struct {
	WindowDays     int     `yaml:"window_days"`
	ColdStartScore float64 `yaml:"cold_start_score"`
	DeliveryBase   float64 `yaml:"delivery_base"`
	FailWeight     float64 `yaml:"fail_weight"`
	BlockWeight    float64 `yaml:"block_weight"`
	ReportWeight   float64 `yaml:"report_weight"`
}

// Tier maps a minimum quality score to send limits.
type Tier struct {
	Name        string  `yaml:"name"        json:"name"`
	MinScore    float64 `yaml:"min_score"   json:"min_score"`
	DailyLimit  int     `yaml:"daily_limit" json:"daily_limit"`
	HourlyLimit int     `yaml:"hourly_limit" json:"hourly_limit"`
}

// StatusPolicy configures the composite dashboard score.
type StatusPolicy struct {
	WindowDays    int     `yaml:"window_days"`
	QualityWeight float64 `yaml:"quality_weight"`
}

const (
	defaultValidityDays    = 365
	defaultWindowHours     = 24
	defaultMaxLength       = 4096
	defaultMaxConsecutive  = 2
	defaultMaxExclamations = 3
	defaultMaxCapsRatio    = 0.7
	defaultMinCapsLetters  = 12
	defaultQualityWindow   = 7
	defaultColdStartScore  = 100
	defaultDeliveryBase    = 50
	defaultFailWeight      = 0.5
	defaultBlockWeight     = 2
	defaultReportWeight    = 4
	defaultStatusWindow    = 7
	defaultQualityWeight   = 0.6
)

var defaultTiers = []Tier{
	{Name: "high", MinScore: 80, DailyLimit: 1000, HourlyLimit: 100},
	{Name: "medium", MinScore: 50, DailyLimit: 250, HourlyLimit: 25},
	{Name: "low", MinScore: 0, DailyLimit: 50, HourlyLimit: 10},
}

var defaultOptOut = []string{"STOP", "BAJA", "CANCELAR", "DETENER", "PARAR", "UNSUBSCRIBE", "NO MAS", "SALIR"}

// Default returns the shipped policy.
func Default() Policy {
	p := Policy{
		Consent: ConsentPolicy{ValidityDays: defaultValidityDays},
		Window:  WindowPolicy{Hours: defaultWindowHours},
		Content: ContentPolicy{
			MaxLength:                  defaultMaxLength,
			MaxConsecutiveExclamations: defaultMaxConsecutive,
			MaxExclamations:            defaultMaxExclamations,
			UrgencyPhrases: []string{
				"ganaste", "has ganado", "haz clic ahora", "haz clic aqui", "ultima oportunidad",
				"oferta por tiempo limitado", "actua ahora", "urgente", "premio garantizado",
			},
			SpamPatterns: []string{
				`(?i)\bgratis\b.*\bya\b`,
				`\${2,}`,
			},
			AllowedDomains: []string{"wa.me", "whatsapp.com"},
			MaxCapsRatio:   defaultMaxCapsRatio,
			MinCapsLetters: defaultMinCapsLetters,
			ProhibitedTerms: []string{
				"tarjeta de credito sin intereses",
				"prestamo sin aval",
				"credito preaprobado",
				"duplica tu dinero",
				"inversion garantizada",
			},
		},
		Keywords: KeywordPolicy{
			OptOut: append([]string(nil), defaultOptOut...),
			OptIn:  []string{"START", "ALTA", "SUSCRIBIR", "ACEPTO"},
		},
		Quality: QualityPolicy{
			WindowDays:     defaultQualityWindow,
			ColdStartScore: defaultColdStartScore,
			DeliveryBase:   defaultDeliveryBase,
			FailWeight:     defaultFailWeight,
			BlockWeight:    defaultBlockWeight,
			ReportWeight:   defaultReportWeight,
		},
		Tiers:  append([]Tier(nil), defaultTiers...),
		Status: StatusPolicy{WindowDays: defaultStatusWindow, QualityWeight: defaultQualityWeight},
	}
	p.normalize()
	return p
}

// Conservative returns the fallback used when configuration is missing.
func Conservative() Policy {
	p := scoringDefaults()
	p.normalize()
	return p
}

// scoringDefaults is the zero Policy with the quality and status knobs set.
// Those knobs accept 0 as a real value, so a document is decoded on top of
// them instead of normalize treating 0 as unset.
func scoringDefaults() Policy {
	return Policy{
		Quality: QualityPolicy{
			ColdStartScore: defaultColdStartScore,
			DeliveryBase:   defaultDeliveryBase,
			FailWeight:     defaultFailWeight,
			BlockWeight:    defaultBlockWeight,
			ReportWeight:   defaultReportWeight,
		},
		Status: StatusPolicy{QualityWeight: defaultQualityWeight},
	}
}

// Load reads a YAML policy. An empty path yields Default(). A missing file
// yields Conservative() together with an error wrapping ErrPolicyMissing;
// malformed YAML or an invalid rule is a hard error.
func Load(path string) (Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Conservative(), fmt.Errorf("%w: %s", ErrPolicyMissing, path)
		}
		return Policy{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML document into a normalized, validated Policy.
func Parse(b []byte) (Policy, error) {
	p := scoringDefaults()
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks rule consistency. It assumes normalize has run.
func (p Policy) Validate() error {
	for _, t := range p.Tiers {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New("tier name must not be empty")
		}
		if t.MinScore < 0 || t.MinScore > 100 {
			return fmt.Errorf("tier %q: min_score must be in [0,100]", t.Name)
		}
		if t.DailyLimit < 0 || t.HourlyLimit < 0 {
			return fmt.Errorf("tier %q: limits must be >= 0", t.Name)
		}
		if t.HourlyLimit > t.DailyLimit {
			return fmt.Errorf("tier %q: hourly_limit exceeds daily_limit", t.Name)
		}
	}
	for _, s := range p.Content.SpamPatterns {
		if _, err := regexp.Compile(s); err != nil {
			return fmt.Errorf("spam pattern %q: %w", s, err)
		}
	}
	if p.Content.MaxCapsRatio <= 0 || p.Content.MaxCapsRatio > 1 {
		return errors.New("max_caps_ratio must be in (0,1]")
	}
	if p.Status.QualityWeight < 0 || p.Status.QualityWeight > 1 {
		return errors.New("status quality_weight must be in [0,1]")
	}
	if p.Quality.ColdStartScore < 0 || p.Quality.ColdStartScore > 100 {
		return errors.New("cold_start_score must be in [0,100]")
	}
	if p.Quality.DeliveryBase < 0 || p.Quality.DeliveryBase > 100 {
		return errors.New("delivery_base must be in [0,100]")
	}
	if p.Quality.FailWeight < 0 || p.Quality.BlockWeight < 0 || p.Quality.ReportWeight < 0 {
		return errors.New("quality weights must be >= 0")
	}
	return nil
}

// ConsentValidity returns the consent horizon as a duration.
func (p Policy) ConsentValidity() time.Duration {
	return time.Duration(p.Consent.ValidityDays) * 24 * time.Hour
}

// WindowLength returns the customer-service window as a duration.
func (p Policy) WindowLength() time.Duration {
	return time.Duration(p.Window.Hours * float64(time.Hour))
}

// QualityWindow returns the trailing window used for quality scoring.
func (p Policy) QualityWindow() time.Duration {
	return time.Duration(p.Quality.WindowDays) * 24 * time.Hour
}

// StatusWindow returns the trailing window used for the status roll-up.
func (p Policy) StatusWindow() time.Duration {
	return time.Duration(p.Status.WindowDays) * 24 * time.Hour
}

// LowestTier returns the tier with the smallest min_score.
func (p Policy) LowestTier() Tier {
	if len(p.Tiers) == 0 {
		return defaultTiers[len(defaultTiers)-1]
	}
	return p.Tiers[len(p.Tiers)-1]
}

// normalize fills numeric defaults, trims list entries and orders tiers by
// descending min_score.
func (p *Policy) normalize() {
	if p.Consent.ValidityDays <= 0 {
		p.Consent.ValidityDays = defaultValidityDays
	}
	if p.Window.Hours <= 0 {
		p.Window.Hours = defaultWindowHours
	}

	c := &p.Content
	if c.MaxLength <= 0 {
		c.MaxLength = defaultMaxLength
	}
	if c.MaxConsecutiveExclamations <= 0 {
		c.MaxConsecutiveExclamations = defaultMaxConsecutive
	}
	if c.MaxExclamations <= 0 {
		c.MaxExclamations = defaultMaxExclamations
	}
	if c.MaxCapsRatio == 0 {
		c.MaxCapsRatio = defaultMaxCapsRatio
	}
	if c.MinCapsLetters <= 0 {
		c.MinCapsLetters = defaultMinCapsLetters
	}
	c.UrgencyPhrases = cleanList(c.UrgencyPhrases)
	c.SpamPatterns = cleanList(c.SpamPatterns)
	c.ProhibitedTerms = cleanList(c.ProhibitedTerms)
	c.AllowedDomains = cleanList(c.AllowedDomains)
	for i, d := range c.AllowedDomains {
		c.AllowedDomains[i] = strings.TrimPrefix(strings.ToLower(d), "www.")
	}

	p.Keywords.OptOut = cleanList(p.Keywords.OptOut)
	if len(p.Keywords.OptOut) == 0 {
		p.Keywords.OptOut = append([]string(nil), defaultOptOut...)
	}
	p.Keywords.OptIn = cleanList(p.Keywords.OptIn)

	q := &p.Quality
	if q.WindowDays <= 0 {
		q.WindowDays = defaultQualityWindow
	}

	if len(p.Tiers) == 0 {
		p.Tiers = []Tier{defaultTiers[len(defaultTiers)-1]}
	}
	sort.SliceStable(p.Tiers, func(i, j int) bool { return p.Tiers[i].MinScore > p.Tiers[j].MinScore })

	if p.Status.WindowDays <= 0 {
		p.Status.WindowDays = defaultStatusWindow
	}
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
