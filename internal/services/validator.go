// Package services – Validator
//
// Validator classifies an outbound message body against the content policy.
// It is pure: no I/O, safe for concurrent use once built.
//
// Checks run in order and stop at the first failure:
//  1. empty body (media types may be caption-less) and maximum length
//  2. spam heuristics: exclamation runs and totals, urgency phrases, policy
//     regexes, links to non-allowlisted domains, shouting in capitals
//  3. prohibited terms
//
// Phrase and term matching is case- and accent-insensitive, so "Tarjeta de
// Crédito" matches a denylist entry written as "tarjeta de credito".
package services

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/wa-compliance/internal/policy"
)

// Content rejection reasons.
const (
	ReasonEmptyContent      = "empty_content"
	ReasonTooLong           = "too_long"
	ReasonSpamPattern       = "spam_pattern"
	ReasonProhibitedContent = "prohibited_content"
)

// Message types accepted by the validator.
const (
	MessageTypeText     = "text"
	MessageTypeTemplate = "template"
)

// mediaTypes may be sent without a caption.
var mediaTypes = map[string]bool{
	"image":    true,
	"document": true,
	"audio":    true,
	"video":    true,
	"sticker":  true,
	"location": true,
}

// ValidationResult is the outcome of Validate. Detail names the rule that
// matched (for example "urgency_phrase" or the offending term).
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// urlRE finds explicit links (scheme or www.-prefixed).
var urlRE = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)

// bareHostRE finds scheme-less links such as "spam.com/promo". The host must
// end in a common TLD and must not follow '@', '.', '/' or a word character,
// so e-mail addresses and parts of explicit links are skipped.
var bareHostRE = regexp.MustCompile(`(?i)(?:^|[^\w@./-])((?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+(?:com|net|org|info|biz|io|co|cl|ar|mx|pe|ly|gl|xyz|top|click|link|app|site|online|shop|store)\b(?:[/?#][^\s<>"']*)?)`)

// Validator checks message content against a compiled ContentPolicy.
type Validator struct {
	maxLength      int
	maxRun         int
	maxTotal       int
	maxCapsRatio   float64
	minCapsLetters int
	urgency        []string
	patterns       []*regexp.Regexp
	allowed        []string
	prohibited     []string
}

// NewValidator compiles c. It fails only on an invalid spam regex.
func NewValidator(c policy.ContentPolicy) (*Validator, error) {
	v := &Validator{
		maxLength:      c.MaxLength,
		maxRun:         c.MaxConsecutiveExclamations,
		maxTotal:       c.MaxExclamations,
		maxCapsRatio:   c.MaxCapsRatio,
		minCapsLetters: c.MinCapsLetters,
		allowed:        c.AllowedDomains,
	}
	for _, p := range c.UrgencyPhrases {
		if f := Fold(p); f != "" {
			v.urgency = append(v.urgency, f)
		}
	}
	for _, p := range c.ProhibitedTerms {
		if f := Fold(p); f != "" {
			v.prohibited = append(v.prohibited, f)
		}
	}
	for _, p := range c.SpamPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		v.patterns = append(v.patterns, re)
	}
	return v, nil
}

// MustValidator is NewValidator for policies that already passed Validate.
func MustValidator(c policy.ContentPolicy) *Validator {
	v, err := NewValidator(c)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate classifies text sent as messageType.
func (v *Validator) Validate(text, messageType string) ValidationResult {
	messageType = strings.ToLower(strings.TrimSpace(messageType))
	text = strings.TrimSpace(text)

	if text == "" {
		if mediaTypes[messageType] {
			return ValidationResult{Valid: true}
		}
		return ValidationResult{Reason: ReasonEmptyContent}
	}
	if v.maxLength > 0 && utf8.RuneCountInString(text) > v.maxLength {
		return ValidationResult{Reason: ReasonTooLong}
	}

	folded := Fold(text)
	if detail := v.spam(text, folded); detail != "" {
		return ValidationResult{Reason: ReasonSpamPattern, Detail: detail}
	}
	for _, term := range v.prohibited {
		if strings.Contains(folded, term) {
			return ValidationResult{Reason: ReasonProhibitedContent, Detail: term}
		}
	}
	return ValidationResult{Valid: true}
}

// spam returns the name of the first spam rule text trips, or "".
func (v *Validator) spam(text, folded string) string {
	run, maxRun, total := 0, 0, 0
	for _, r := range text {
		if r == '!' {
			run++
			total++
			if run > maxRun {
				maxRun = run
			}
			continue
		}
		run = 0
	}
	if v.maxRun > 0 && maxRun > v.maxRun {
		return "exclamation_run"
	}
	if v.maxTotal > 0 && total > v.maxTotal {
		return "exclamation_count"
	}

	for _, p := range v.urgency {
		if strings.Contains(folded, p) {
			return "urgency_phrase"
		}
	}
	for _, re := range v.patterns {
		if re.MatchString(text) {
			return "pattern"
		}
	}
	for _, link := range urlRE.FindAllString(text, -1) {
		if !v.domainAllowed(link) {
			return "link"
		}
	}
	for _, m := range bareHostRE.FindAllStringSubmatch(text, -1) {
		if !v.domainAllowed(m[1]) {
			return "link"
		}
	}
	if v.shouting(text) {
		return "capitals"
	}
	return ""
}

func (v *Validator) domainAllowed(link string) bool {
	if !strings.Contains(link, "://") {
		link = "http://" + link
	}
	u, err := url.Parse(strings.TrimRight(link, ".,;:!?)"))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range v.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (v *Validator) shouting(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < v.minCapsLetters || letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > v.maxCapsRatio
}

// Fold lowercases s, strips diacritics and collapses whitespace so that
// "  Última   OPORTUNIDAD" and "ultima oportunidad" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}
