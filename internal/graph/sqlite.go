package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Compile-time assertion: *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// schemaVersion is recorded in girder_meta. A mismatch on open is an
// error; there is no migration tooling.
const schemaVersion = 1

// SQLiteStore is the persistent Store implementation. Every write batch
// runs inside one transaction: it commits atomically or rolls back with
// the prior state intact.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and initializes if needed) a girder graph database.
// Pass ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping graph db: %w", wrapStoreErr(err))
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const graphDDL = `
CREATE TABLE IF NOT EXISTS girder_meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
  id                 INTEGER PRIMARY KEY,
  hash               TEXT NOT NULL UNIQUE,
  kind               TEXT NOT NULL,
  name               TEXT NOT NULL,
  signature          TEXT NOT NULL,
  file_path          TEXT NOT NULL,
  line_start         INTEGER NOT NULL,
  line_end           INTEGER NOT NULL,
  docstring          TEXT,
  is_public          INTEGER NOT NULL,
  type_hints_present INTEGER NOT NULL,
  has_docstring      INTEGER NOT NULL,
  param_count        INTEGER NOT NULL DEFAULT 0,
  endpoints          TEXT,
  module_id          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_hash   ON nodes(hash);
CREATE INDEX IF NOT EXISTS idx_nodes_file   ON nodes(file_path);
CREATE INDEX IF NOT EXISTS idx_nodes_module ON nodes(module_id);
CREATE INDEX IF NOT EXISTS idx_nodes_name   ON nodes(name, kind);

CREATE TABLE IF NOT EXISTS previous_hashes (
  node_id  INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  hash     TEXT NOT NULL,
  PRIMARY KEY (node_id, position)
);

CREATE TABLE IF NOT EXISTS edges (
  id         INTEGER PRIMARY KEY,
  source_id  INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  target_id  INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  kind       TEXT NOT NULL,
  file_path  TEXT NOT NULL,
  line       INTEGER NOT NULL,
  confidence REAL NOT NULL DEFAULT 1.0,
  tier       TEXT
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

CREATE TABLE IF NOT EXISTS module_profiles (
  module_id INTEGER PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
  profile   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resolution_cache (
  file_path    TEXT PRIMARY KEY,
  content_hash INTEGER NOT NULL,
  payload      TEXT NOT NULL
);
`

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(graphDDL); err != nil {
		return fmt.Errorf("migrate graph schema: %w", wrapStoreErr(err))
	}
	var stored string
	err := s.db.QueryRow(`SELECT value FROM girder_meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO girder_meta (key, value) VALUES ('schema_version', ?)`,
			fmt.Sprint(schemaVersion))
		if err != nil {
			return fmt.Errorf("record schema version: %w", wrapStoreErr(err))
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", wrapStoreErr(err))
	case stored != fmt.Sprint(schemaVersion):
		return fmt.Errorf("graph db schema v%s, expected v%d: %w", stored, schemaVersion, ErrStoreCorrupt)
	}
	return nil
}

// wrapStoreErr maps low-level sqlite failures onto the store's error
// taxonomy so callers can distinguish corruption from I/O trouble.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") {
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return err
}

// --- Lookups ---

func (s *SQLiteStore) GetNode(ctx context.Context, hash string) (*GraphNode, error) {
	return s.queryNode(ctx, `WHERE hash = ?`, hash)
}

func (s *SQLiteStore) GetNodeByID(ctx context.Context, id uint64) (*GraphNode, error) {
	return s.queryNode(ctx, `WHERE id = ?`, id)
}

const nodeColumns = `id, hash, kind, name, signature, file_path, line_start, line_end,
	COALESCE(docstring, ''), is_public, type_hints_present, has_docstring, param_count, COALESCE(endpoints, ''), module_id`

func (s *SQLiteStore) queryNode(ctx context.Context, where string, arg any) (*GraphNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes `+where, arg)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%v: %w", arg, ErrNodeNotFound)
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if err := s.loadPreviousHashes(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (*GraphNode, error) {
	var n GraphNode
	var kind, endpoints string
	err := r.Scan(&n.ID, &n.Hash, &kind, &n.Name, &n.Signature, &n.FilePath,
		&n.LineStart, &n.LineEnd, &n.Docstring, &n.IsPublic, &n.TypeHintsPresent,
		&n.HasDocstring, &n.ParamCount, &endpoints, &n.ModuleID)
	if err != nil {
		return nil, err
	}
	n.Kind = NodeKind(kind)
	if endpoints != "" {
		if err := json.Unmarshal([]byte(endpoints), &n.ExternalEndpoints); err != nil {
			return nil, fmt.Errorf("decode endpoints for node %d: %w", n.ID, ErrStoreCorrupt)
		}
	}
	return &n, nil
}

func (s *SQLiteStore) loadPreviousHashes(ctx context.Context, n *GraphNode) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash FROM previous_hashes WHERE node_id = ? ORDER BY position`, n.ID)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer rows.Close()
	n.PreviousHashes = nil
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return wrapStoreErr(err)
		}
		n.PreviousHashes = append(n.PreviousHashes, h)
	}
	return wrapStoreErr(rows.Err())
}

func (s *SQLiteStore) GetEdges(ctx context.Context, nodeID uint64, dir Direction) ([]GraphEdge, error) {
	var where string
	args := []any{nodeID}
	switch dir {
	case DirectionOutgoing:
		where = `source_id = ?`
	case DirectionIncoming:
		where = `target_id = ?`
	case DirectionBoth:
		where = `source_id = ? OR target_id = ?`
		args = append(args, nodeID)
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, kind, file_path, line, confidence, COALESCE(tier, '')
		 FROM edges WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()
	var out []GraphEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		out = append(out, e)
	}
	return out, wrapStoreErr(rows.Err())
}

func scanEdge(r rowScanner) (GraphEdge, error) {
	var e GraphEdge
	var kind string
	err := r.Scan(&e.ID, &e.SourceID, &e.TargetID, &kind, &e.FilePath,
		&e.Line, &e.Confidence, &e.Tier)
	e.Kind = EdgeKind(kind)
	return e, err
}

func (s *SQLiteStore) GetModuleProfile(ctx context.Context, moduleID uint64) (*ModuleProfile, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM module_profiles WHERE module_id = ?`, moduleID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("module %d: %w", moduleID, ErrNodeNotFound)
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	var p ModuleProfile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode profile for module %d: %w", moduleID, ErrStoreCorrupt)
	}
	return &p, nil
}

func (s *SQLiteStore) GetNodesInFile(ctx context.Context, filePath string) ([]GraphNode, error) {
	return s.queryNodes(ctx, `WHERE file_path = ? ORDER BY line_start`, filePath)
}

func (s *SQLiteStore) GetAllModules(ctx context.Context) ([]GraphNode, error) {
	return s.queryNodes(ctx, `WHERE kind = ? ORDER BY id`, string(NodeKindModule))
}

func (s *SQLiteStore) queryNodes(ctx context.Context, where string, args ...any) ([]GraphNode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes `+where, args...)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()
	var out []GraphNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	for i := range out {
		if err := s.loadPreviousHashes(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) PreviousHashes(ctx context.Context, nodeID uint64) ([]string, error) {
	n := GraphNode{ID: nodeID}
	if err := s.loadPreviousHashes(ctx, &n); err != nil {
		return nil, err
	}
	return n.PreviousHashes, nil
}

func (s *SQLiteStore) FindNodesByName(ctx context.Context, name string, kind NodeKind, excludeFile string) ([]GraphNode, error) {
	return s.queryNodes(ctx,
		`WHERE name = ? AND kind = ? AND file_path != ? ORDER BY id`,
		name, string(kind), excludeFile)
}

func (s *SQLiteStore) FindNodeByPreviousHash(ctx context.Context, hash string) (*GraphNode, error) {
	var nodeID uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT node_id FROM previous_hashes WHERE hash = ? ORDER BY position LIMIT 1`,
		hash).Scan(&nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("previous hash %s: %w", hash, ErrNodeNotFound)
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return s.GetNodeByID(ctx, nodeID)
}

func (s *SQLiteStore) FindModulesByPrefix(ctx context.Context, prefix, excludeFile string) ([]ModuleProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.profile FROM module_profiles p
		JOIN nodes n ON n.id = p.module_id
		WHERE n.file_path != ? ORDER BY p.module_id`, excludeFile)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()
	var out []ModuleProfile
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, wrapStoreErr(err)
		}
		var p ModuleProfile
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode module profile: %w", ErrStoreCorrupt)
		}
		for _, pre := range p.FunctionNamePrefixes {
			if pre == prefix {
				out = append(out, p)
				break
			}
		}
	}
	return out, wrapStoreErr(rows.Err())
}

// --- Writes ---

// UpdateNodes applies one atomic batch of node changes.
func (s *SQLiteStore) UpdateNodes(ctx context.Context, changes []NodeChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		switch c.Op {
		case ChangeAdd:
			if err := s.insertNodeTx(tx, c.Node); err != nil {
				return err
			}
		case ChangeUpdate:
			if err := s.updateNodeTx(tx, c.Node, c.OldHash); err != nil {
				return err
			}
		case ChangeRemove:
			if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, c.ID); err != nil {
				return wrapStoreErr(err)
			}
		default:
			return fmt.Errorf("unknown node change op %q", c.Op)
		}
	}
	return wrapStoreErr(tx.Commit())
}

func (s *SQLiteStore) insertNodeTx(tx *sql.Tx, node GraphNode) error {
	hash := node.Hash
	var existingName, existingFile string
	err := tx.QueryRow(`SELECT name, file_path FROM nodes WHERE hash = ?`, hash).
		Scan(&existingName, &existingFile)
	switch {
	case err == nil:
		if existingName != node.Name || existingFile != node.FilePath {
			disambiguated := DisambiguateHash(hash, node.FilePath)
			slog.Info("hash collision disambiguated",
				"hash", hash, "existing", existingName, "incoming", node.Name,
				"disambiguated", disambiguated)
			hash = disambiguated
		}
	case !errors.Is(err, sql.ErrNoRows):
		return wrapStoreErr(err)
	}

	endpoints, err := encodeEndpoints(node.ExternalEndpoints)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`
		INSERT INTO nodes (hash, kind, name, signature, file_path, line_start, line_end,
			docstring, is_public, type_hints_present, has_docstring, param_count, endpoints, module_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hash, string(node.Kind), node.Name, node.Signature, node.FilePath,
		node.LineStart, node.LineEnd, node.Docstring, node.IsPublic,
		node.TypeHintsPresent, node.HasDocstring, node.ParamCount, endpoints, node.ModuleID)
	if err != nil {
		return fmt.Errorf("insert node %q: %w", node.Name, wrapStoreErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wrapStoreErr(err)
	}
	return s.writePreviousHashesTx(tx, uint64(id), node.PreviousHashes)
}

func (s *SQLiteStore) updateNodeTx(tx *sql.Tx, node GraphNode, oldHash string) error {
	prev := node.PreviousHashes
	if oldHash != "" && oldHash != node.Hash {
		prev = pushPrevious(oldHash, prev)
	}
	endpoints, err := encodeEndpoints(node.ExternalEndpoints)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		UPDATE nodes SET hash = ?, kind = ?, name = ?, signature = ?, file_path = ?,
			line_start = ?, line_end = ?, docstring = ?, is_public = ?,
			type_hints_present = ?, has_docstring = ?, param_count = ?, endpoints = ?, module_id = ?
		WHERE id = ?`,
		node.Hash, string(node.Kind), node.Name, node.Signature, node.FilePath,
		node.LineStart, node.LineEnd, node.Docstring, node.IsPublic,
		node.TypeHintsPresent, node.HasDocstring, node.ParamCount, endpoints, node.ModuleID, node.ID)
	if err != nil {
		return fmt.Errorf("update node %d: %w", node.ID, wrapStoreErr(err))
	}
	return s.writePreviousHashesTx(tx, node.ID, prev)
}

func (s *SQLiteStore) writePreviousHashesTx(tx *sql.Tx, nodeID uint64, hashes []string) error {
	if _, err := tx.Exec(`DELETE FROM previous_hashes WHERE node_id = ?`, nodeID); err != nil {
		return wrapStoreErr(err)
	}
	if len(hashes) > MaxPreviousHashes {
		hashes = hashes[:MaxPreviousHashes]
	}
	for i, h := range hashes {
		if _, err := tx.Exec(
			`INSERT INTO previous_hashes (node_id, position, hash) VALUES (?, ?, ?)`,
			nodeID, i, h); err != nil {
			return wrapStoreErr(err)
		}
	}
	return nil
}

func encodeEndpoints(endpoints []ExternalEndpoint) (string, error) {
	if len(endpoints) == 0 {
		return "", nil
	}
	data, err := json.Marshal(endpoints)
	if err != nil {
		return "", fmt.Errorf("encode endpoints: %w", err)
	}
	return string(data), nil
}

// UpdateEdges applies one atomic batch of edge changes.
func (s *SQLiteStore) UpdateEdges(ctx context.Context, changes []EdgeChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		switch c.Op {
		case ChangeAdd:
			_, err := tx.Exec(`
				INSERT INTO edges (source_id, target_id, kind, file_path, line, confidence, tier)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				c.Edge.SourceID, c.Edge.TargetID, string(c.Edge.Kind),
				c.Edge.FilePath, c.Edge.Line, c.Edge.Confidence, c.Edge.Tier)
			if err != nil {
				return fmt.Errorf("insert edge: %w", wrapStoreErr(err))
			}
		case ChangeRemove:
			if _, err := tx.Exec(`DELETE FROM edges WHERE id = ?`, c.ID); err != nil {
				return wrapStoreErr(err)
			}
		default:
			return fmt.Errorf("unknown edge change op %q", c.Op)
		}
	}
	return wrapStoreErr(tx.Commit())
}

// Apply commits node and edge changes as one transaction. Hash-addressed
// module and edge endpoints resolve against rows written earlier in the
// same batch; an edge removal whose row already cascaded away deletes
// zero rows and is not an error.
func (s *SQLiteStore) Apply(ctx context.Context, nodes []NodeChange, edges []EdgeChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	for _, c := range nodes {
		node := c.Node
		if c.ModuleHash != "" && node.ModuleID == 0 {
			id, err := s.nodeIDByHashTx(tx, c.ModuleHash)
			if err != nil {
				return fmt.Errorf("module for %q: %w", node.Name, err)
			}
			node.ModuleID = id
		}
		switch c.Op {
		case ChangeAdd:
			if err := s.insertNodeTx(tx, node); err != nil {
				return err
			}
		case ChangeUpdate:
			if err := s.updateNodeTx(tx, node, c.OldHash); err != nil {
				return err
			}
		case ChangeRemove:
			if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, c.ID); err != nil {
				return wrapStoreErr(err)
			}
		default:
			return fmt.Errorf("unknown node change op %q", c.Op)
		}
	}

	for _, c := range edges {
		switch c.Op {
		case ChangeAdd:
			edge := c.Edge
			if edge.SourceID == 0 && c.SourceHash != "" {
				if edge.SourceID, err = s.nodeIDByHashTx(tx, c.SourceHash); err != nil {
					return fmt.Errorf("edge source: %w", err)
				}
			}
			if edge.TargetID == 0 && c.TargetHash != "" {
				if edge.TargetID, err = s.nodeIDByHashTx(tx, c.TargetHash); err != nil {
					return fmt.Errorf("edge target: %w", err)
				}
			}
			_, err := tx.Exec(`
				INSERT INTO edges (source_id, target_id, kind, file_path, line, confidence, tier)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				edge.SourceID, edge.TargetID, string(edge.Kind),
				edge.FilePath, edge.Line, edge.Confidence, edge.Tier)
			if err != nil {
				return fmt.Errorf("insert edge: %w", wrapStoreErr(err))
			}
		case ChangeRemove:
			if _, err := tx.Exec(`DELETE FROM edges WHERE id = ?`, c.ID); err != nil {
				return wrapStoreErr(err)
			}
		default:
			return fmt.Errorf("unknown edge change op %q", c.Op)
		}
	}
	return wrapStoreErr(tx.Commit())
}

func (s *SQLiteStore) nodeIDByHashTx(tx *sql.Tx, hash string) (uint64, error) {
	var id uint64
	err := tx.QueryRow(`SELECT id FROM nodes WHERE hash = ?`, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("hash %s: %w", hash, ErrNodeNotFound)
	}
	return id, wrapStoreErr(err)
}

// ReplaceAll swaps in a full-rebuild graph inside one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, nodes []GraphNode, edges []GraphEdge) (*Snapshot, error) {
	prior, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"previous_hashes", "edges", "module_profiles", "nodes"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return nil, wrapStoreErr(err)
		}
	}
	for _, n := range nodes {
		if err := s.insertNodeTx(tx, n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		_, err := tx.Exec(`
			INSERT INTO edges (source_id, target_id, kind, file_path, line, confidence, tier)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SourceID, e.TargetID, string(e.Kind), e.FilePath, e.Line, e.Confidence, e.Tier)
		if err != nil {
			return nil, fmt.Errorf("insert edge: %w", wrapStoreErr(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return prior, nil
}

// Snapshot returns a copy of the committed graph.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.snapshot(ctx)
}

func (s *SQLiteStore) snapshot(ctx context.Context) (*Snapshot, error) {
	nodes, err := s.queryNodes(ctx, `ORDER BY id`)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, kind, file_path, line, confidence, COALESCE(tier, '')
		 FROM edges ORDER BY id`)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()
	var edges []GraphEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return &Snapshot{Nodes: nodes, Edges: edges}, nil
}

// SetModuleProfile upserts the derived profile for a module.
func (s *SQLiteStore) SetModuleProfile(ctx context.Context, p ModuleProfile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO module_profiles (module_id, profile) VALUES (?, ?)
		ON CONFLICT(module_id) DO UPDATE SET profile = excluded.profile`,
		p.ModuleID, string(payload))
	return wrapStoreErr(err)
}

// Stats reports committed graph counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	// SUM over zero rows is NULL, so an empty table needs the COALESCE.
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'module' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'function' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'class' THEN 1 ELSE 0 END), 0)
		FROM nodes`).Scan(&st.Nodes, &st.Modules, &st.Functions, &st.Classes)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&st.Edges); err != nil {
		return nil, wrapStoreErr(err)
	}
	return &st, nil
}

// SaveResolutionCache persists a file's resolver cache entry keyed by
// content hash.
func (s *SQLiteStore) SaveResolutionCache(ctx context.Context, filePath string, contentHash uint64, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_cache (file_path, content_hash, payload) VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET content_hash = excluded.content_hash, payload = excluded.payload`,
		filePath, int64(contentHash), string(payload))
	return wrapStoreErr(err)
}

// LoadResolutionCache returns the cached payload for filePath when the
// stored content hash still matches, else (nil, false).
func (s *SQLiteStore) LoadResolutionCache(ctx context.Context, filePath string, contentHash uint64) ([]byte, bool, error) {
	var stored int64
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, payload FROM resolution_cache WHERE file_path = ?`, filePath).
		Scan(&stored, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if uint64(stored) != contentHash {
		return nil, false, nil
	}
	return []byte(payload), true, nil
}
