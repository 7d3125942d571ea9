package feedback

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Grammar issue messages.
const (
	IssueLowercaseI   = "Use 'I' (capital) instead of 'i'"
	IssueDoubleSpace  = "Multiple spaces detected"
	IssueCapitalStart = "Text should start with capital letter"
)

// Rule inspects text and reports at most one issue.
type Rule func(text string) (issue string, found bool)

// Rules are applied in this order; issue order feeds feedback and
// suggestions.
var Rules = []Rule{
	LowercaseI,
	DoubleSpace,
	CapitalStart,
}

// LowercaseI flags a standalone lowercase "i". Any of the phrases "I am",
// "I have" or "I will" anywhere in the text suppresses the rule.
func LowercaseI(text string) (string, bool) {
	if !strings.Contains(strings.ToLower(text), " i ") {
		return "", false
	}
	for _, phrase := range []string{"I am", "I have", "I will"} {
		if strings.Contains(text, phrase) {
			return "", false
		}
	}
	return IssueLowercaseI, true
}

// DoubleSpace flags two consecutive spaces.
func DoubleSpace(text string) (string, bool) {
	if strings.Contains(text, "  ") {
		return IssueDoubleSpace, true
	}
	return "", false
}

// CapitalStart flags text whose very first character is not an uppercase
// letter. Leading whitespace counts as a violation.
func CapitalStart(text string) (string, bool) {
	r, _ := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return IssueCapitalStart, true
	}
	return "", false
}

// CheckGrammar runs every rule and collects the issues found.
func CheckGrammar(text string) []string {
	var issues []string
	for _, rule := range Rules {
		if issue, ok := rule(text); ok {
			issues = append(issues, issue)
		}
	}
	return issues
}
