package engine

import (
	"context"

	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/store"
)

// Filter returns every object of objectType that principal satisfies
// relation on. It consults the Visibility Cache first; on a miss it falls
// back to checking every candidate object reachable via a direct or
// userset tuple on relation, which is correct but, unlike a warmed Tiger
// bitmap, linear in the number of tuples touching objectType.
func (c *Checker) Filter(ctx context.Context, tenant string, objectType, relation string, principal Principal) ([]string, error) {
	if c.visibility != nil {
		if objs, ok := c.visibility.Visible(ctx, tenant, principal.String(), objectType); ok {
			return objs, nil
		}
	}

	candidates, err := c.candidateObjects(ctx, tenant, objectType, relation, principal)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true

		d, err := c.Check(ctx, tenant, store.ObjectRef{Type: objectType, ID: id}, relation, principal, Consistency{Mode: Eventual})
		if err != nil {
			return nil, err
		}
		if d.Allowed {
			out = append(out, id)
		}
	}
	return out, nil
}

// candidateObjects finds objects worth Check-ing against: anything
// reachable by following the subject's direct tuples and userset
// memberships backwards via LookupBySubject, restricted to objectType.
// This is a coarse over-approximation (it does not account for
// tuple-to-userset or intersection/exclusion rules narrowing the result),
// which is why Filter still runs a real Check per candidate rather than
// trusting this list outright.
func (c *Checker) candidateObjects(ctx context.Context, tenant, objectType, relation string, principal Principal) ([]string, error) {
	direct, err := c.store.LookupBySubject(ctx, tenant, principal.Type, principal.ID, "")
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, t := range direct {
		if t.ObjectType == objectType {
			ids = append(ids, t.ObjectID)
		}
	}

	return ids, nil
}

// Expand returns every concrete subject that satisfies relation on
// object, following userset tuples recursively: an in-process graph walk
// over the same Rule tree Check uses.
func (c *Checker) Expand(ctx context.Context, tenant string, object store.ObjectRef, relation string) ([]Principal, error) {
	model, err := c.schemas.Model(ctx, tenant)
	if err != nil {
		return nil, err
	}

	seen := make(map[Principal]bool)
	visited := make(map[string]bool)
	var out []Principal
	if err := c.expandRelation(ctx, tenant, model, object, relation, visited, seen, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Checker) expandRelation(ctx context.Context, tenant string, model schema.Model, object store.ObjectRef, relation string, visited map[string]bool, seen map[Principal]bool, out *[]Principal) error {
	key := object.String() + "#" + relation
	if visited[key] {
		return nil
	}
	visited[key] = true

	typeDef, ok := model.Type(object.Type)
	if !ok {
		return ErrUnknownType
	}
	relDef, ok := typeDef.Relation(relation)
	if !ok {
		return ErrUnknownRelation
	}

	return c.expandRule(ctx, tenant, model, object, relDef.Rule, visited, seen, out)
}

func (c *Checker) expandRule(ctx context.Context, tenant string, model schema.Model, object store.ObjectRef, rule schema.Rule, visited map[string]bool, seen map[Principal]bool, out *[]Principal) error {
	switch rule.Kind {
	case schema.This:
		tuples, err := c.store.LookupByObject(ctx, tenant, object.Type, object.ID, "")
		if err != nil {
			return err
		}
		for _, t := range tuples {
			if t.Expired(now()) {
				continue
			}
			if t.SubjectRelation == "" {
				p := Principal{Type: t.SubjectType, ID: t.SubjectID}
				if !seen[p] {
					seen[p] = true
					*out = append(*out, p)
				}
				continue
			}
			if err := c.expandRelation(ctx, tenant, model, store.ObjectRef{Type: t.SubjectType, ID: t.SubjectID}, t.SubjectRelation, visited, seen, out); err != nil {
				return err
			}
		}
		return nil

	case schema.Computed:
		return c.expandRelation(ctx, tenant, model, object, rule.Relation, visited, seen, out)

	case schema.TupleToUserset:
		linked, err := c.store.LookupTupleset(ctx, tenant, object.Type, object.ID, rule.Tupleset)
		if err != nil {
			return err
		}
		for _, l := range linked {
			if err := c.expandRelation(ctx, tenant, model, l, rule.Relation, visited, seen, out); err != nil {
				return err
			}
		}
		return nil

	case schema.Union, schema.Intersection, schema.Exclusion:
		// Expand is a may-satisfy enumeration: union/intersection/
		// exclusion all contribute candidate subjects from their
		// branches, and the caller who needs a definite answer for one
		// subject should use Check, which evaluates the full boolean
		// semantics (including exclusion) precisely.
		for _, child := range rule.Children {
			if err := c.expandRule(ctx, tenant, model, object, child, visited, seen, out); err != nil {
				return err
			}
		}
		return nil

	default:
		return ErrUnknownRelation
	}
}
