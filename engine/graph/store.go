// Package graph stores scraped listings in Neo4j as
// (:Make)-[:HAS_MODEL]->(:VehicleModel)<-[:OF_MODEL]-(:Listing).
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// statement is one parameterised Cypher query.
type statement struct {
	cypher string
	params map[string]any
}

// executor runs statements in a single write transaction.
type executor interface {
	Write(ctx context.Context, stmts ...statement) error
	Close(ctx context.Context) error
}

// Store writes listings to the graph.
type Store struct {
	exec executor
}

// New creates a Store on an existing driver. database may be empty for the
// server default.
func New(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{exec: &driverExecutor{driver: driver, database: database}}
}

// Connect opens a driver and verifies the server is reachable.
func Connect(ctx context.Context, url, user, password, database string) (*Store, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify %s: %w", url, err)
	}
	return New(driver, database), nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error { return s.exec.Close(ctx) }

var schema = []string{
	`CREATE CONSTRAINT listing_id IF NOT EXISTS FOR (n:Listing) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT make_id IF NOT EXISTS FOR (n:Make) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT vehicle_model_id IF NOT EXISTS FOR (n:VehicleModel) REQUIRE n.id IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints MERGE relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, c := range schema {
		if err := s.exec.Write(ctx, statement{cypher: c}); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

// SaveListing upserts one listing and, when make and model are known, its
// make/model hierarchy, all in one transaction.
func (s *Store) SaveListing(ctx context.Context, d domain.VehicleDetails) error {
	if d.Link == "" {
		return errors.New("graph: listing without link")
	}
	stmts := []statement{{
		cypher: `MERGE (l:Listing {id: $id}) SET l += $props`,
		params: map[string]any{"id": ListingID(d.Link), "props": listingProps(d)},
	}}

	if d.Make != "" && d.Model != "" {
		makeID := MakeID(d.Make)
		modelID := ModelID(d.Make, d.Model)
		stmts = append(stmts,
			statement{
				cypher: `MERGE (mk:Make {id: $id}) SET mk.name = $name`,
				params: map[string]any{"id": makeID, "name": d.Make},
			},
			statement{
				cypher: `MERGE (m:VehicleModel {id: $id}) SET m.name = $name, m.make_id = $makeID
				         WITH m
				         MATCH (mk:Make {id: $makeID})
				         MERGE (mk)-[:HAS_MODEL]->(m)`,
				params: map[string]any{"id": modelID, "name": d.Model, "makeID": makeID},
			},
			statement{
				cypher: `MATCH (l:Listing {id: $id}), (m:VehicleModel {id: $modelID})
				         MERGE (l)-[:OF_MODEL]->(m)`,
				params: map[string]any{"id": ListingID(d.Link), "modelID": modelID},
			},
		)
	}
	if err := s.exec.Write(ctx, stmts...); err != nil {
		return fmt.Errorf("graph: save %s: %w", d.Link, err)
	}
	return nil
}

// SaveAll saves every listing, continuing past failures. It returns how
// many were saved and the joined errors of the rest.
func (s *Store) SaveAll(ctx context.Context, details []domain.VehicleDetails) (int, error) {
	var errs []error
	saved := 0
	for _, d := range details {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.SaveListing(ctx, d); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// ListingID is a stable id for a listing link, insensitive to case.
func ListingID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(domain.LinkKey(link))).String()
}

// MakeID is the node id of a make, e.g. "Land Rover" -> "land-rover".
func MakeID(make string) string { return slug(make) }

// ModelID is the node id of a model scoped to its make.
func ModelID(make, model string) string { return slug(make) + "-" + slug(model) }

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

func listingProps(d domain.VehicleDetails) map[string]any {
	props := map[string]any{"link": d.Link}
	for k, v := range map[string]string{
		"make":              d.Make,
		"model":             d.Model,
		"year":              d.Year,
		"trim":              d.Trim,
		"price":             d.Price,
		"drivetrain":        d.Drivetrain,
		"kilometres":        d.Kilometres,
		"status":            d.Status,
		"body_type":         d.BodyType,
		"engine":            d.Engine,
		"cylinder":          d.Cylinder,
		"transmission":      d.Transmission,
		"exterior_colour":   d.ExteriorColour,
		"doors":             d.Doors,
		"fuel_type":         d.FuelType,
		"city_fuel_economy": d.CityFuelEconomy,
		"hwy_fuel_economy":  d.HwyFuelEconomy,
	} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// driverExecutor runs statements through a Neo4j managed write transaction.
type driverExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverExecutor) Write(ctx context.Context, stmts ...statement) error {
	sess := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.database,
	})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			if _, err := tx.Run(ctx, st.cypher, st.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (d *driverExecutor) Close(ctx context.Context) error { return d.driver.Close(ctx) }
