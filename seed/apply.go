package seed

import (
	"context"
	"fmt"

	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/mapping"
	"github.com/flowenginer/meta-hub/route"
)

// Result reports what Apply created, for the seed CLI's summary output.
type Result struct {
	DestinationIDs map[string]string // ref -> id
	MappingIDs     map[string]string // ref -> id
	RouteCount     int
}

// Apply creates every row a Fixture describes, in dependency order
// (destinations and mappings before the routes that reference them), and
// resolves each route's *_ref fields to the ids the repositories assigned.
func Apply(ctx context.Context, f Fixture, destinations destination.Repository, mappings mapping.Repository, routes route.Repository) (Result, error) {
	result := Result{
		DestinationIDs: make(map[string]string, len(f.Destinations)),
		MappingIDs:     make(map[string]string, len(f.Mappings)),
	}

	for _, dc := range f.Destinations {
		created, err := destinations.Create(ctx, destination.Destination{
			TenantID:    f.TenantID,
			Name:        dc.Name,
			Description: dc.Description,
			URL:         dc.URL,
			Method:      orDefault(dc.Method, destination.MethodPOST),
			Headers:     dc.Headers,
			AuthType:    orDefault(dc.AuthType, destination.AuthNone),
			AuthConfig:  authConfigFrom(dc.AuthConfig),
			TimeoutMs:   dc.TimeoutMs,
			IsActive:    true,
		})
		if err != nil {
			return Result{}, fmt.Errorf("creating destination %q: %w", dc.Ref, err)
		}
		result.DestinationIDs[dc.Ref] = created.ID
	}

	for _, mc := range f.Mappings {
		rules := make([]mapping.MappingRule, len(mc.Rules))
		for i, rc := range mc.Rules {
			rules[i] = rc.toMappingRule()
		}
		created, err := mappings.Create(ctx, mapping.Mapping{
			TenantID:     f.TenantID,
			Name:         mc.Name,
			Mode:         mc.Mode,
			Rules:        rules,
			Template:     mc.Template,
			StaticFields: mc.StaticFields,
			PassThrough:  mc.PassThrough,
		})
		if err != nil {
			return Result{}, fmt.Errorf("creating mapping %q: %w", mc.Ref, err)
		}
		result.MappingIDs[mc.Ref] = created.ID
	}

	for i, rc := range f.Routes {
		destID, ok := result.DestinationIDs[rc.DestinationRef]
		if !ok {
			return Result{}, fmt.Errorf("route[%d]: destination_ref %q was not created", i, rc.DestinationRef)
		}
		var mappingID string
		if rc.MappingRef != "" {
			mappingID, ok = result.MappingIDs[rc.MappingRef]
			if !ok {
				return Result{}, fmt.Errorf("route[%d]: mapping_ref %q was not created", i, rc.MappingRef)
			}
		}

		_, err := routes.Create(ctx, route.Route{
			TenantID:      f.TenantID,
			Label:         rc.Label,
			SourceType:    rc.SourceType,
			SourceID:      rc.SourceID,
			DestinationID: destID,
			MappingID:     mappingID,
			FilterRules:   filterRulesFrom(rc.FilterEventTypes),
			Priority:      rc.Priority,
			IsActive:      true,
		})
		if err != nil {
			return Result{}, fmt.Errorf("creating route[%d]: %w", i, err)
		}
		result.RouteCount++
	}

	return result, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
