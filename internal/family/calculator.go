package family

import (
	"context"

	"github.com/kinship-labs/kinship/internal/models"
)

// relationPair keys the fallback table: (inviter→member, inviter→invitee).
type relationPair struct {
	toMember  string
	toInvitee string
}

// fallbackRules covers the common compositions when a type carries no
// explicit rule. Type-specific calculation_rules always take precedence.
var fallbackRules = map[relationPair]string{
	{"parent", "spouse"}:  "step_parent",
	{"parent", "sibling"}: "aunt_uncle",
	{"parent", "parent"}:  "grandparent",

	{"child", "spouse"}:  "step_child",
	{"child", "sibling"}: "niece_nephew",
	{"child", "child"}:   "grandchild",

	{"spouse", "child"}:   "step_child",
	{"spouse", "parent"}:  "parent_in_law",
	{"spouse", "sibling"}: "sibling_in_law",

	{"sibling", "spouse"}: "sibling_in_law",
	{"sibling", "child"}:  "niece_nephew",
	{"sibling", "parent"}: "aunt_uncle",

	{"grandparent", "spouse"}: "step_grandparent",
	{"grandchild", "spouse"}:  "step_grandchild",
}

// Calculator composes two adjacent relationship labels into the label the
// invitee should hold toward a member. It memoizes rule-map lookups for its
// lifetime, which is intended to span a single request: the same
// inviter-to-member relation recurs across many members in one invitation.
// A Calculator is not safe for concurrent use.
type Calculator struct {
	registry *Registry
	rules    map[string]map[string]string
}

// NewCalculator creates a calculator backed by the given registry.
func NewCalculator(registry *Registry) *Calculator {
	return &Calculator{
		registry: registry,
		rules:    make(map[string]map[string]string),
	}
}

// Derive computes the relationship the invitee should hold toward a member,
// given toMember (the inviter's relationship to the member) and toInvitee
// (the intended relationship between inviter and invitee). The type-specific
// rule map is consulted first, then the fallback table. An unresolvable
// composition yields "", never an error: the caller skips that member.
//
// The composition is deliberately single-hop. It never chains through more
// than one intermediate, which bounds the blast radius of an invitation and
// keeps derived edges acyclic.
func (c *Calculator) Derive(ctx context.Context, toMember, toInvitee string) (string, error) {
	toMember = models.NormalizeRelationName(toMember)
	toInvitee = models.NormalizeRelationName(toInvitee)

	rules, err := c.rulesFor(ctx, toMember)
	if err != nil {
		return "", err
	}

	if derived := rules[models.CompositionKey(toInvitee)]; derived != "" {
		return derived, nil
	}

	return fallbackRules[relationPair{toMember, toInvitee}], nil
}

func (c *Calculator) rulesFor(ctx context.Context, name string) (map[string]string, error) {
	if cached, ok := c.rules[name]; ok {
		return cached, nil
	}

	rules, err := c.registry.Rules(ctx, name)
	if err != nil {
		return nil, err
	}
	c.rules[name] = rules
	return rules, nil
}
