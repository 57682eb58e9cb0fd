package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	PlaceholderImageURL = "https://via.placeholder.com/300x300/f3f4f6/9ca3af?text=No+Image"
	DefaultTruncate     = 50
)

var gradeColors = map[string]string{
	"a": "green",
	"b": "lime",
	"c": "yellow",
	"d": "orange",
	"e": "red",
}

// GradeColor maps a Nutri-Score letter to its badge colour.
func GradeColor(grade string) string {
	if c, ok := gradeColors[strings.ToLower(strings.TrimSpace(grade))]; ok {
		return c
	}
	return "gray"
}

type ScoreBand string

const (
	ScoreUnknown ScoreBand = "unknown"
	ScoreGood    ScoreBand = "good"
	ScoreFair    ScoreBand = "fair"
	ScorePoor    ScoreBand = "poor"
	ScoreBad     ScoreBand = "bad"
)

// BandFor buckets a nutrition score. Zero means no score was reported.
func BandFor(score FlexInt) ScoreBand {
	switch {
	case score == 0:
		return ScoreUnknown
	case score >= 70:
		return ScoreGood
	case score >= 50:
		return ScoreFair
	case score >= 30:
		return ScorePoor
	default:
		return ScoreBad
	}
}

// FormatCreated renders a created_t unix timestamp as a date.
func FormatCreated(createdT FlexInt) string {
	if createdT == 0 {
		return "Unknown"
	}
	return time.Unix(int64(createdT), 0).UTC().Format("2006-01-02")
}

// Truncate shortens text to max runes and marks the cut with "...".
func Truncate(text string, max int) string {
	if max <= 0 {
		max = DefaultTruncate
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "..."
}

// NormalizeBarcode keeps only the digits of a scanned or typed barcode,
// e.g. "00-626061" -> "00626061".
func NormalizeBarcode(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

func (p Product) DisplayName() string {
	if name := strings.TrimSpace(p.ProductName); name != "" {
		return name
	}
	return "Unknown Product"
}

func (p Product) ImageURLOrPlaceholder() string {
	if p.ImageURL == "" {
		return PlaceholderImageURL
	}
	return p.ImageURL
}

// Grade returns the upper-cased Nutri-Score letter, or "" when ungraded.
func (p Product) Grade() string {
	return strings.ToUpper(p.NutritionGrades)
}
