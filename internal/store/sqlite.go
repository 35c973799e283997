package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/clinigraph-server/internal/domain"
)

// SQLiteStore persists graph snapshots to a SQLite database file. Load reads
// the whole graph into memory; Save writes it back in one transaction. The
// flat tables mirror the snapshot's keyed collections.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// Open creates or opens the snapshot database, enables WAL mode, and applies
// schema migrations.
func Open(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	if err := runMigrations(dbPath, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, log: logger}, nil
}

// Load reads the full graph snapshot into memory.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	if err := s.loadConcepts(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}
	if err := s.loadLinks(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading semantic links: %w", err)
	}
	if err := s.loadNodes(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	if err := s.loadEdges(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading edges: %w", err)
	}
	if err := s.loadSyndromes(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading syndromes: %w", err)
	}
	if err := s.loadTempConcepts(ctx, snap); err != nil {
		return nil, fmt.Errorf("loading temp concepts: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"concepts":      len(snap.Concepts),
		"nodes":         len(snap.Nodes),
		"links":         len(snap.Links),
		"edges":         len(snap.Edges),
		"temp_concepts": len(snap.TempConcepts),
	}).Debug("Snapshot loaded")

	return snap, nil
}

// Save writes the full snapshot back in one transaction, replacing the
// persisted state. Last write wins across concurrent round trips.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"concepts", "semantic_links", "nodes", "edges", "syndromes", "temp_concepts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := s.saveConcepts(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving concepts: %w", err)
	}
	if err := s.saveLinks(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving semantic links: %w", err)
	}
	if err := s.saveNodes(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving nodes: %w", err)
	}
	if err := s.saveEdges(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving edges: %w", err)
	}
	if err := s.saveSyndromes(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving syndromes: %w", err)
	}
	if err := s.saveTempConcepts(ctx, tx, snap); err != nil {
		return fmt.Errorf("saving temp concepts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadConcepts(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, type, synonyms, negatable, unit, widget, created_at, updated_at
		FROM concepts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		c := &domain.Concept{}
		var synonyms string
		var negatable int
		var widget string
		if err := rows.Scan(&c.ID, &c.Label, &c.Type, &synonyms, &negatable, &c.Unit, &widget, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		c.Negatable = negatable != 0
		c.UIHint = domain.UIHint{Widget: domain.WidgetType(widget), Unit: c.Unit}
		if err := json.Unmarshal([]byte(synonyms), &c.Synonyms); err != nil {
			return fmt.Errorf("concept %s synonyms: %w", c.ID, err)
		}
		snap.Concepts[c.ID] = c
	}
	return rows.Err()
}

func (s *SQLiteStore) saveConcepts(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, c := range snap.Concepts {
		synonyms, err := json.Marshal(emptyIfNil(c.Synonyms))
		if err != nil {
			return err
		}
		negatable := 0
		if c.Negatable {
			negatable = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO concepts (id, label, type, synonyms, negatable, unit, widget, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Label, string(c.Type), string(synonyms), negatable, c.Unit,
			string(c.UIHint.Widget), c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadLinks(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, relation, target, strength, count_seen, last_seen, sources
		FROM semantic_links`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		l := &domain.SemanticLink{}
		var sources string
		if err := rows.Scan(&l.Source, &l.Relation, &l.Target, &l.Strength, &l.CountSeen, &l.LastSeen, &sources); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(sources), &l.Sources); err != nil {
			return fmt.Errorf("link %s sources: %w", l.Source, err)
		}
		snap.Links[LinkKey(l.Source, l.Relation, l.Target)] = l
	}
	return rows.Err()
}

func (s *SQLiteStore) saveLinks(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, l := range snap.Links {
		sources, err := json.Marshal(emptyIfNil(l.Sources))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO semantic_links (source, relation, target, strength, count_seen, last_seen, sources)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.Source, string(l.Relation), l.Target, l.Strength, l.CountSeen, l.LastSeen, string(sources),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadNodes(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_key, label, kind, discipline, specialty, context, concept_trees, syndrome_ids, links, last_updated
		FROM nodes`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		n := &domain.Node{}
		var contextJSON, trees, syndromeIDs, links string
		if err := rows.Scan(&n.ID, &n.NodeKey, &n.Label, &n.Kind, &n.Discipline, &n.Specialty,
			&contextJSON, &trees, &syndromeIDs, &links, &n.LastUpdated); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(contextJSON), &n.Context); err != nil {
			return fmt.Errorf("node %s context: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(trees), &n.ConceptTrees); err != nil {
			return fmt.Errorf("node %s concept trees: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(syndromeIDs), &n.SyndromeIDs); err != nil {
			return fmt.Errorf("node %s syndrome ids: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(links), &n.Links); err != nil {
			return fmt.Errorf("node %s links: %w", n.ID, err)
		}
		snap.Nodes[n.ID] = n
	}
	return rows.Err()
}

func (s *SQLiteStore) saveNodes(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, n := range snap.Nodes {
		contextJSON, err := json.Marshal(n.Context)
		if err != nil {
			return err
		}
		trees, err := json.Marshal(n.ConceptTrees)
		if err != nil {
			return err
		}
		syndromeIDs, err := json.Marshal(emptyIfNil(n.SyndromeIDs))
		if err != nil {
			return err
		}
		links, err := json.Marshal(n.Links)
		if err != nil {
			return err
		}
		if n.Links == nil {
			links = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, node_key, label, kind, discipline, specialty, context, concept_trees, syndrome_ids, links, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.NodeKey, n.Label, string(n.Kind), n.Discipline, n.Specialty,
			string(contextJSON), string(trees), string(syndromeIDs), string(links), n.LastUpdated,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadEdges(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, relation, target_id, strength, count_seen, last_seen, sources
		FROM edges`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		e := &domain.GraphEdge{}
		var sources string
		if err := rows.Scan(&e.SourceID, &e.Relation, &e.TargetID, &e.Strength, &e.CountSeen, &e.LastSeen, &sources); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return fmt.Errorf("edge %s sources: %w", e.SourceID, err)
		}
		snap.Edges[EdgeKey(e.SourceID, e.Relation, e.TargetID)] = e
	}
	return rows.Err()
}

func (s *SQLiteStore) saveEdges(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, e := range snap.Edges {
		sources, err := json.Marshal(emptyIfNil(e.Sources))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO edges (source_id, relation, target_id, strength, count_seen, last_seen, sources)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SourceID, string(e.Relation), e.TargetID, e.Strength, e.CountSeen, e.LastSeen, string(sources),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadSyndromes(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, description, concept_ids FROM syndromes`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		syn := &domain.Syndrome{}
		var conceptIDs string
		if err := rows.Scan(&syn.ID, &syn.Label, &syn.Description, &conceptIDs); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(conceptIDs), &syn.ConceptIDs); err != nil {
			return fmt.Errorf("syndrome %s concept ids: %w", syn.ID, err)
		}
		snap.Syndromes[syn.ID] = syn
	}
	return rows.Err()
}

func (s *SQLiteStore) saveSyndromes(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, syn := range snap.Syndromes {
		conceptIDs, err := json.Marshal(emptyIfNil(syn.ConceptIDs))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO syndromes (id, label, description, concept_ids)
			VALUES (?, ?, ?, ?)`,
			syn.ID, syn.Label, syn.Description, string(conceptIDs),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadTempConcepts(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_label, norm_label, type_guess, status, count_seen, last_seen, source_document
		FROM temp_concepts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		tc := &domain.TempConcept{}
		var normLabel string
		if err := rows.Scan(&tc.ID, &tc.RawLabel, &normLabel, &tc.TypeGuess, &tc.Status, &tc.CountSeen, &tc.LastSeen, &tc.SourceDocument); err != nil {
			return err
		}
		snap.TempConcepts[normLabel] = tc
	}
	return rows.Err()
}

func (s *SQLiteStore) saveTempConcepts(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for normLabel, tc := range snap.TempConcepts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO temp_concepts (id, raw_label, norm_label, type_guess, status, count_seen, last_seen, source_document)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tc.ID, tc.RawLabel, normLabel, string(tc.TypeGuess), string(tc.Status), tc.CountSeen, tc.LastSeen, tc.SourceDocument,
		); err != nil {
			return err
		}
	}
	return nil
}

// emptyIfNil keeps JSON columns as [] instead of null.
func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
