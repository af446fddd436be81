package carriers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the carrier rules available to scans. It starts with the
// builtin rules; custom rules and configuration overrides are layered on top.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates a registry seeded with the builtin rules
func NewRegistry() *Registry {
	return &Registry{rules: BuiltinRules()}
}

// Get returns the rule for key, compared case-insensitively
func (r *Registry) Get(key string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[strings.ToUpper(key)]
	return rule, ok
}

// Add validates rule and registers it, replacing any rule with the same key
func (r *Registry) Add(rule Rule) error {
	rule.Key = strings.ToUpper(strings.TrimSpace(rule.Key))
	if rule.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidRule)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Key] = rule
	return nil
}

// Override applies the non-empty fields of override on top of the rule with
// the same key. An unknown key registers override as a new rule.
func (r *Registry) Override(override Rule) error {
	base, ok := r.Get(override.Key)
	if !ok {
		return r.Add(override)
	}
	return r.Add(mergeRule(base, override))
}

// Remove deletes the rule for key
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, strings.ToUpper(key))
}

// Keys returns all registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns all rules sorted by key
func (r *Registry) List() []Rule {
	keys := r.Keys()

	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]Rule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, r.rules[k])
	}
	return rules
}

func mergeRule(base, override Rule) Rule {
	merged := base
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.SearchCriteria != "" {
		merged.SearchCriteria = override.SearchCriteria
	}
	if override.TrackingPattern != "" {
		merged.TrackingPattern = override.TrackingPattern
	}
	if override.ETAString != "" {
		merged.ETAString = override.ETAString
	}
	if override.ETADatePattern != "" {
		merged.ETADatePattern = override.ETADatePattern
	}
	if len(override.StatusStrings) > 0 {
		merged.StatusStrings = override.StatusStrings
	}
	if override.TrackingLinkURL != "" {
		merged.TrackingLinkURL = override.TrackingLinkURL
	}
	if override.APIURL != "" {
		merged.APIURL = override.APIURL
	}
	if override.APIKey != "" {
		merged.APIKey = override.APIKey
	}
	if override.APITemplate != "" {
		merged.APITemplate = override.APITemplate
	}
	return merged
}
