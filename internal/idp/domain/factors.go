package domain

import (
	"slices"
	"strings"
)

// AuthFactor is one authentication method within an ACR's factor
// combination, e.g. OTP, BIO or WLA.
type AuthFactor struct {
	Type     string   `json:"type"`
	Count    int      `json:"count,omitempty"`
	SubTypes []string `json:"subTypes,omitempty"`
}

// AuthChallenge is a single factor response submitted by the UI during
// authentication.
type AuthChallenge struct {
	AuthFactorType string `json:"authFactorType"`
	Challenge      string `json:"challenge"`
	Format         string `json:"format,omitempty"`
}

// FactorTypes returns the sorted distinct factor types of a combination.
func FactorTypes(combo []AuthFactor) []string {
	set := make(map[string]struct{}, len(combo))
	for _, f := range combo {
		set[strings.ToUpper(f.Type)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ChallengeTypes returns the sorted distinct factor types the UI
// actually answered.
func ChallengeTypes(challenges []AuthChallenge) []string {
	set := make(map[string]struct{}, len(challenges))
	for _, c := range challenges {
		set[strings.ToUpper(c.AuthFactorType)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
