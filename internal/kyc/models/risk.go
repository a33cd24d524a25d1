package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel buckets a risk score for reviewers.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk is an advisory score attached to review candidates. It never drives
// a transition.
type Risk struct {
	Score int       `json:"score"`
	Level RiskLevel `json:"level"`
}

const maxRiskScore = 100

var (
	lowIncome  = decimal.NewFromInt(300_000)
	highIncome = decimal.NewFromInt(5_000_000)
)

// AssessRisk scores d as of now.
func AssessRisk(d *Data, now time.Time) Risk {
	if d == nil {
		return Risk{Score: maxRiskScore, Level: RiskHigh}
	}
	score := 0

	if dob, err := time.Parse(time.DateOnly, d.DateOfBirth); err == nil {
		switch age := ageAt(dob, now); {
		case age < 25:
			score += 10
		case age > 65:
			score += 5
		}
	}

	if d.AnnualIncome != nil {
		switch {
		case d.AnnualIncome.LessThan(lowIncome):
			score += 15
		case d.AnnualIncome.GreaterThan(highIncome):
			score += 5
		}
	}

	switch d.EmploymentStatus {
	case "unemployed":
		score += 20
	case "self_employed":
		score += 10
	}
	if d.InvestmentExperience == "beginner" {
		score += 15
	}
	if d.RiskTolerance == "high" {
		score += 10
	}
	if len(d.Documents) < 2 {
		score += 25
	}

	score = min(score, maxRiskScore)
	return Risk{Score: score, Level: levelFor(score)}
}

func levelFor(score int) RiskLevel {
	switch {
	case score < 30:
		return RiskLow
	case score < 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
