// Package match evaluates detected deals against user-defined filter rules.
package match

import (
	"sort"
	"strings"

	"github.com/sells-group/dealscout/internal/model"
)

// Result is one matched rule for a deal.
type Result struct {
	Rule      model.FilterRule `json:"rule"`
	IsDefault bool             `json:"is_default"`
}

// Match evaluates a deal against a rule set. Rules are ordered with all
// isolated rules first (stable otherwise) and evaluated in that literal
// order; the first isolated rule that matches returns immediately with only
// that rule. When nothing matches and a default target exists, a single
// synthetic match against it is returned. Inactive rules are skipped.
//
// Given the same rule set and deal, the output is fully reproducible.
func Match(deal model.Deal, rules []model.FilterRule, defaultTarget *model.FilterRule) []Result {
	ordered := append([]model.FilterRule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].IsIsolated && !ordered[j].IsIsolated
	})

	var matched []Result
	for _, rule := range ordered {
		if !rule.IsActive {
			continue
		}
		if !Matches(rule.Criteria, deal) {
			continue
		}
		if rule.IsIsolated {
			// Priority short-circuit: remaining rules are not evaluated.
			return []Result{{Rule: rule}}
		}
		matched = append(matched, Result{Rule: rule})
	}

	if len(matched) == 0 && defaultTarget != nil {
		return []Result{{Rule: *defaultTarget, IsDefault: true}}
	}
	return matched
}

// Matches evaluates every criterion conjunctively. An empty criterion is no
// constraint and auto-passes.
func Matches(c model.Criteria, deal model.Deal) bool {
	if c.PriceMin != nil && deal.Price < *c.PriceMin {
		return false
	}
	if c.PriceMax != nil && deal.Price > *c.PriceMax {
		return false
	}
	if c.DiscountMin != nil && deal.PercentOff < *c.DiscountMin {
		return false
	}
	if c.DiscountMax != nil && deal.PercentOff > *c.DiscountMax {
		return false
	}
	if !categoryMatch(c.Categories, deal.Category) {
		return false
	}
	if !membership(c.DealTypes, string(deal.Type)) {
		return false
	}
	if !membership(c.Conditions, string(dealCondition(deal))) {
		return false
	}
	if !membership(c.Marketplaces, deal.Marketplace) {
		return false
	}
	return true
}

// dealCondition reads the condition off the warehouse variant; every other
// deal shape is a new-condition item.
func dealCondition(deal model.Deal) model.Condition {
	if deal.Warehouse != nil {
		return deal.Warehouse.Condition
	}
	return model.ConditionNew
}

// categoryMatch is substring-tolerant in both directions and honors the
// "all" wildcard, so a rule category "electronics" matches a deal category
// "Electronics & Accessories".
func categoryMatch(categories []string, dealCategory string) bool {
	if len(categories) == 0 {
		return true
	}
	dc := strings.ToLower(strings.TrimSpace(dealCategory))
	for _, c := range categories {
		rc := strings.ToLower(strings.TrimSpace(c))
		if rc == "all" {
			return true
		}
		if dc == "" {
			continue
		}
		if strings.Contains(dc, rc) || strings.Contains(rc, dc) {
			return true
		}
	}
	return false
}

func membership(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, candidate := range values {
		if strings.EqualFold(strings.TrimSpace(candidate), v) {
			return true
		}
	}
	return false
}
