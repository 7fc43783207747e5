package model

import (
	"fmt"
	"strings"
)

// Category is one of the three questionnaire categories.
type Category string

const (
	CategoryVata  Category = "vata"
	CategoryPitta Category = "pitta"
	CategoryKapha Category = "kapha"
)

// Categories lists the categories in their canonical A, B, C order.
var Categories = []Category{CategoryVata, CategoryPitta, CategoryKapha}

// ParseCategory accepts the letter form (A, B, C) or the category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", string(CategoryVata):
		return CategoryVata, nil
	case "b", string(CategoryPitta):
		return CategoryPitta, nil
	case "c", string(CategoryKapha):
		return CategoryKapha, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

const (
	// ClassBalanced is the primary classification when all three scores are close.
	ClassBalanced = "tridosha"
	// ClassNone marks an absent secondary classification.
	ClassNone = "none"
)

// ConstitutionProfile is the derived result of the assessment stage.
type ConstitutionProfile struct {
	Vata      int    `json:"vata"`
	Pitta     int    `json:"pitta"`
	Kapha     int    `json:"kapha"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Score returns the percentage stored for c.
func (p ConstitutionProfile) Score(c Category) int {
	switch c {
	case CategoryVata:
		return p.Vata
	case CategoryPitta:
		return p.Pitta
	case CategoryKapha:
		return p.Kapha
	}
	return 0
}
