package catalog

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ebalza/reliquary/pkg/db"
	"github.com/ebalza/reliquary/pkg/log"
)

var logger = log.ForComponent("catalog")

// SortField names a column the fallback query may order by. Only the three
// whitelisted fields ever reach the SQL text; everything else is rejected by
// the query compiler upstream.
type SortField string

const (
	SortByID        SortField = "id"
	SortByDateStart SortField = "date_start"
	SortByTitle     SortField = "title"
)

// Store provides access to the catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at dbPath and
// brings its schema up to date.
func Open(dbPath string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Apply performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := db.InitializeDatabase(sqlDB); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// DB returns the underlying database connection for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateArtifact inserts the artifact with its materials and tags and
// returns the new id.
func (s *Store) CreateArtifact(a *Artifact) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	res, err := tx.Exec(`
		INSERT INTO artifacts (title, description, culture, period, site, region,
			date_start, date_end, has_model, model_url, model_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Description, a.Culture, a.Period, a.Site, a.Region,
		a.DateStart, a.DateEnd, a.HasModel, a.ModelURL, a.ModelType)
	if err != nil {
		return 0, fmt.Errorf("inserting artifact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting artifact id: %w", err)
	}

	if err := replaceMaterials(tx, id, a.Materials); err != nil {
		return 0, err
	}
	if err := replaceTags(tx, id, a.Tags); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing artifact: %w", err)
	}
	committed = true
	a.ID = id
	return id, nil
}

// UpdateArtifact overwrites the stored artifact. Last write wins; there is
// no conflict detection.
func (s *Store) UpdateArtifact(a *Artifact) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	res, err := tx.Exec(`
		UPDATE artifacts SET title = ?, description = ?, culture = ?, period = ?,
			site = ?, region = ?, date_start = ?, date_end = ?,
			has_model = ?, model_url = ?, model_type = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		a.Title, a.Description, a.Culture, a.Period, a.Site, a.Region,
		a.DateStart, a.DateEnd, a.HasModel, a.ModelURL, a.ModelType, a.ID)
	if err != nil {
		return fmt.Errorf("updating artifact %d: %w", a.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of artifact %d: %w", a.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := replaceMaterials(tx, a.ID, a.Materials); err != nil {
		return err
	}
	if err := replaceTags(tx, a.ID, a.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing artifact %d: %w", a.ID, err)
	}
	committed = true
	return nil
}

// DeleteArtifact removes the artifact and, via foreign keys, its images,
// materials and tag links.
func (s *Store) DeleteArtifact(id int64) error {
	res, err := s.db.Exec("DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting artifact %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of artifact %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const artifactColumns = `id, title, description, culture, period, site, region,
	date_start, date_end, has_model, model_url, model_type, created_at, updated_at`

func scanArtifact(scanner interface{ Scan(...any) error }) (Artifact, error) {
	var a Artifact
	err := scanner.Scan(&a.ID, &a.Title, &a.Description, &a.Culture, &a.Period,
		&a.Site, &a.Region, &a.DateStart, &a.DateEnd, &a.HasModel,
		&a.ModelURL, &a.ModelType, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetArtifact loads a single artifact with its materials and tags.
func (s *Store) GetArtifact(id int64) (*Artifact, error) {
	row := s.db.QueryRow("SELECT "+artifactColumns+" FROM artifacts WHERE id = ?", id)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying artifact %d: %w", id, err)
	}
	if err := s.fillRelations(map[int64]*Artifact{a.ID: &a}); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArtifactsByIDs loads the given artifacts keyed by id. Missing ids are
// simply absent from the result, callers decide whether that is an error.
func (s *Store) GetArtifactsByIDs(ids []int64) (map[int64]*Artifact, error) {
	result := make(map[int64]*Artifact, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query("SELECT "+artifactColumns+" FROM artifacts WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		artifact := a
		result[a.ID] = &artifact
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.fillRelations(result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListArtifacts returns one page of artifacts ordered by the given sort
// field. A secondary `id ASC` key keeps equal-keyed rows in a stable order.
func (s *Store) ListArtifacts(field SortField, descending bool, limit, offset int) ([]Artifact, error) {
	var orderClause string
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	switch field {
	case SortByDateStart:
		orderClause = "date_start " + dir + ", id ASC"
	case SortByTitle:
		orderClause = "title COLLATE NOCASE " + dir + ", id ASC"
	case SortByID:
		orderClause = "id " + dir
	default:
		return nil, fmt.Errorf("unsupported sort field %q", field)
	}

	rows, err := s.db.Query(
		"SELECT "+artifactColumns+" FROM artifacts ORDER BY "+orderClause+" LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	var artifacts []Artifact
	byID := make(map[int64]*Artifact)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range artifacts {
		byID[artifacts[i].ID] = &artifacts[i]
	}
	if err := s.fillRelations(byID); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// CountArtifacts returns the real row count. The pagination total must come
// from here, never from the highest id.
func (s *Store) CountArtifacts() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return count, nil
}

// ForEachArtifact streams every artifact through fn in id order. Used by the
// engine rebuild.
func (s *Store) ForEachArtifact(fn func(Artifact) error) error {
	const batchSize = 500
	var lastID int64
	for {
		rows, err := s.db.Query(
			"SELECT "+artifactColumns+" FROM artifacts WHERE id > ? ORDER BY id LIMIT ?",
			lastID, batchSize)
		if err != nil {
			return fmt.Errorf("querying artifacts: %w", err)
		}

		var batch []Artifact
		for rows.Next() {
			a, err := scanArtifact(rows)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning artifact row: %w", err)
			}
			batch = append(batch, a)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}

		if len(batch) == 0 {
			return nil
		}

		byID := make(map[int64]*Artifact, len(batch))
		for i := range batch {
			byID[batch[i].ID] = &batch[i]
		}
		if err := s.fillRelations(byID); err != nil {
			return err
		}

		for _, a := range batch {
			if err := fn(a); err != nil {
				return err
			}
			lastID = a.ID
		}
	}
}

// fillRelations loads materials and tags for the given artifacts in two
// queries instead of two per artifact.
func (s *Store) fillRelations(artifacts map[int64]*Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(artifacts))
	for id := range artifacts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(
		"SELECT artifact_id, material FROM artifact_materials WHERE artifact_id IN ("+placeholders+") ORDER BY material",
		args...)
	if err != nil {
		return fmt.Errorf("querying materials: %w", err)
	}
	for rows.Next() {
		var id int64
		var material string
		if err := rows.Scan(&id, &material); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning material row: %w", err)
		}
		if a, ok := artifacts[id]; ok {
			a.Materials = append(a.Materials, material)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		logger.Warnf("failed to close rows: %v", err)
	}

	rows, err = s.db.Query(`
		SELECT at.artifact_id, t.name
		FROM artifact_tags at JOIN tags t ON t.id = at.tag_id
		WHERE at.artifact_id IN (`+placeholders+`) ORDER BY t.name`, args...)
	if err != nil {
		return fmt.Errorf("querying tags: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scanning tag row: %w", err)
		}
		if a, ok := artifacts[id]; ok {
			a.Tags = append(a.Tags, tag)
		}
	}
	return rows.Err()
}

func replaceMaterials(tx *sql.Tx, artifactID int64, materials []string) error {
	if _, err := tx.Exec("DELETE FROM artifact_materials WHERE artifact_id = ?", artifactID); err != nil {
		return fmt.Errorf("clearing materials for artifact %d: %w", artifactID, err)
	}
	for _, material := range materials {
		material = strings.TrimSpace(material)
		if material == "" {
			continue
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO artifact_materials (artifact_id, material) VALUES (?, ?)",
			artifactID, material); err != nil {
			return fmt.Errorf("inserting material for artifact %d: %w", artifactID, err)
		}
	}
	return nil
}

func replaceTags(tx *sql.Tx, artifactID int64, tags []string) error {
	if _, err := tx.Exec("DELETE FROM artifact_tags WHERE artifact_id = ?", artifactID); err != nil {
		return fmt.Errorf("clearing tags for artifact %d: %w", artifactID, err)
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.Exec("INSERT OR IGNORE INTO tags (name) VALUES (?)", tag); err != nil {
			return fmt.Errorf("inserting tag %q: %w", tag, err)
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO artifact_tags (artifact_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?`, artifactID, tag); err != nil {
			return fmt.Errorf("linking tag %q to artifact %d: %w", tag, artifactID, err)
		}
	}
	return nil
}

// AddImage attaches an image to an artifact.
func (s *Store) AddImage(img *Image) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO images (artifact_id, url, is_primary, sort_order) VALUES (?, ?, ?, ?)",
		img.ArtifactID, img.URL, img.Primary, img.SortOrder)
	if err != nil {
		return 0, fmt.Errorf("inserting image for artifact %d: %w", img.ArtifactID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting image id: %w", err)
	}
	img.ID = id
	return id, nil
}

// DeleteImage removes a single image.
func (s *Store) DeleteImage(id int64) error {
	res, err := s.db.Exec("DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting image %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of image %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ImagesForArtifact returns the artifact's images in their defined sort
// order (sort_order, then id for equal positions).
func (s *Store) ImagesForArtifact(artifactID int64) ([]Image, error) {
	rows, err := s.db.Query(
		"SELECT id, artifact_id, url, is_primary, sort_order FROM images WHERE artifact_id = ? ORDER BY sort_order, id",
		artifactID)
	if err != nil {
		return nil, fmt.Errorf("querying images for artifact %d: %w", artifactID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ArtifactID, &img.URL, &img.Primary, &img.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DistinctCultures returns the facet catalog for the culture dimension.
func (s *Store) DistinctCultures() ([]string, error) {
	return s.distinctColumn("SELECT DISTINCT culture FROM artifacts WHERE culture != '' ORDER BY culture")
}

// DistinctPeriods returns the facet catalog for the period dimension.
func (s *Store) DistinctPeriods() ([]string, error) {
	return s.distinctColumn("SELECT DISTINCT period FROM artifacts WHERE period != '' ORDER BY period")
}

// DistinctMaterials returns the facet catalog for the material dimension.
func (s *Store) DistinctMaterials() ([]string, error) {
	return s.distinctColumn("SELECT DISTINCT material FROM artifact_materials ORDER BY material")
}

// DistinctTags returns the facet catalog for the tag dimension.
func (s *Store) DistinctTags() ([]string, error) {
	return s.distinctColumn("SELECT name FROM tags ORDER BY name")
}

func (s *Store) distinctColumn(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying facet values: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning facet value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetStats summarizes the catalog.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM artifacts", &stats.Artifacts},
		{"SELECT COUNT(*) FROM images", &stats.Images},
		{"SELECT COUNT(DISTINCT culture) FROM artifacts WHERE culture != ''", &stats.Cultures},
		{"SELECT COUNT(DISTINCT material) FROM artifact_materials", &stats.Materials},
		{"SELECT COUNT(*) FROM tags", &stats.Tags},
		{"SELECT COUNT(*) FROM artifacts WHERE has_model = 1", &stats.WithModel},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}

	if stats.Artifacts > 0 {
		var oldest, newest int
		if err := s.db.QueryRow("SELECT MIN(date_start), MAX(date_end) FROM artifacts").Scan(&oldest, &newest); err != nil {
			return nil, fmt.Errorf("collecting date stats: %w", err)
		}
		stats.Oldest = &oldest
		stats.Newest = &newest
	}

	return stats, nil
}
