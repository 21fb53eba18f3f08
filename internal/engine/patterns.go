package engine

import "regexp"

// pattern is a regex recognizer for one entity type. When the regex has a capture group,
// the first group is the entity span. Context words found shortly before the match raise
// the score by contextBoost.
type pattern struct {
	entity       string
	re           *regexp.Regexp
	score        float64
	context      []string
	contextBoost float64
	validate     func(string) bool // optional; failed validation sets the score to invalidScore
	invalidScore float64
}

const contextWindow = 40 // characters before the match searched for context words

var defaultPatterns = []pattern{
	{
		entity: "EMAIL_ADDRESS",
		re:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		score:  1.0,
	},
	{
		entity:       "CREDIT_CARD",
		re:           regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{1,4}\b`),
		score:        0.9,
		validate:     luhnValid,
		invalidScore: 0.3,
	},
	{
		entity:       "US_SSN",
		re:           regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		score:        0.85,
		context:      []string{"ssn", "social security"},
		contextBoost: 0.1,
	},
	{
		entity:       "PHONE_NUMBER",
		re:           regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?\(?\b\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`),
		score:        0.6,
		context:      []string{"phone", "tel", "call", "mobile", "cell"},
		contextBoost: 0.3,
	},
	{
		entity: "IBAN_CODE",
		re:     regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`),
		score:  0.85,
	},
	{
		entity: "IP_ADDRESS",
		re:     regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
		score:  0.8,
	},
	{
		entity:       "US_DRIVER_LICENSE",
		re:           regexp.MustCompile(`\b[A-Z]\d{7,8}\b`),
		score:        0.6,
		context:      []string{"driver", "license", "licence", "dl"},
		contextBoost: 0.3,
	},
	{
		entity:       "DATE_TIME",
		re:           regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`),
		score:        0.6,
		context:      []string{"born", "birth", "dob"},
		contextBoost: 0.25,
	},
	{
		entity: "PERSON",
		re:     regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
		score:  0.85,
	},
	{
		entity:       "MEDICAL_LICENSE",
		re:           regexp.MustCompile(`\b[A-Z]{2}\d{7}\b`),
		score:        0.4,
		context:      []string{"dea", "medical", "physician", "npi"},
		contextBoost: 0.45,
	},
}

// luhnValid reports whether the digits of s pass the Luhn checksum.
func luhnValid(s string) bool {
	sum, n := 0, 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		n++
	}
	return n >= 12 && sum%10 == 0
}
