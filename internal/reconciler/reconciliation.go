// Package reconciler combines normalization, matching and allocation into
// the operations exposed to callers: Normalize, Reconcile and Allocate.
//
// A Service holds one configuration of each engine component and is safe to
// reuse across requests; every index is rebuilt per call. The Orchestrator
// runs the whole pipeline from raw records and reports step progress.
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultConfig(), nil, nil, log, nil)
//	if err != nil {
//		return err
//	}
//	result, err := service.Reconcile(companyTrips, map[string][]models.Trip{
//		"supplier1": supplierTrips,
//	})
package reconciler

import (
	"fmt"
	"strings"

	"ride-reconciliation-service/internal/models"
)

// LabelMatch decides how a company trip's supplier label is compared
type LabelMatch string

const (
	LabelExact    LabelMatch = "exact"
	LabelContains LabelMatch = "contains"
)

// SupplierProfile ties a supplier key to its source shape and to the
// supplier labels used for it in the company ledger
type SupplierProfile struct {
	Key           string       `json:"key" mapstructure:"key"`
	Shape         models.Shape `json:"shape" mapstructure:"shape"`
	CompanyLabels []string     `json:"company_labels" mapstructure:"company_labels"`
	Match         LabelMatch   `json:"match" mapstructure:"match"`
}

// Owns reports whether a company ledger supplier label refers to this
// supplier. Contains matching ignores case.
func (p SupplierProfile) Owns(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for _, l := range p.CompanyLabels {
		switch p.Match {
		case LabelContains:
			if strings.Contains(strings.ToLower(label), strings.ToLower(l)) {
				return true
			}
		default:
			if label == l {
				return true
			}
		}
	}
	return false
}

// Config holds options for the reconciliation service
type Config struct {
	// Strategy forces a matching path; auto selects one from the supplier keys
	Strategy models.Strategy `json:"strategy" mapstructure:"strategy"`

	Suppliers []SupplierProfile `json:"suppliers" mapstructure:"suppliers"`
}

// DefaultConfig returns the three supplier profiles of the ride ledger
func DefaultConfig() *Config {
	return &Config{
		Strategy: models.StrategyAuto,
		Suppliers: []SupplierProfile{
			{
				Key:           "supplier1",
				Shape:         models.ShapeSupplier1,
				CompanyLabels: []string{"צוות גיל"},
				Match:         LabelExact,
			},
			{
				Key:           "supplier2",
				Shape:         models.ShapeSupplier2,
				CompanyLabels: []string{"גט", "gett"},
				Match:         LabelContains,
			},
			{
				Key:           "supplier3",
				Shape:         models.ShapeSupplier3,
				CompanyLabels: []string{"חורי"},
				Match:         LabelContains,
			},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !c.Strategy.IsValid() {
		return fmt.Errorf("invalid strategy: %q", c.Strategy)
	}
	seen := make(map[string]bool, len(c.Suppliers))
	for _, p := range c.Suppliers {
		if p.Key == "" {
			return fmt.Errorf("supplier profile key is required")
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate supplier profile: %s", p.Key)
		}
		seen[p.Key] = true
		if !p.Shape.IsSupplier() {
			return fmt.Errorf("supplier %s has non-supplier shape %q", p.Key, p.Shape)
		}
		switch p.Match {
		case LabelExact, LabelContains:
		default:
			return fmt.Errorf("supplier %s has invalid label match %q", p.Key, p.Match)
		}
	}
	return nil
}

// Profile returns the profile registered for key
func (c *Config) Profile(key string) (SupplierProfile, bool) {
	for _, p := range c.Suppliers {
		if p.Key == key {
			return p, true
		}
	}
	return SupplierProfile{}, false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{Strategy: c.Strategy, Suppliers: make([]SupplierProfile, len(c.Suppliers))}
	for i, p := range c.Suppliers {
		p.CompanyLabels = append([]string(nil), p.CompanyLabels...)
		clone.Suppliers[i] = p
	}
	return clone
}
