package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/material"
)

const materialColumns = `id, course_id, title, description, kind, academic_year, semester, filename, content_type, size,
	storage_key, uploaded_by, downloads, created_at, updated_at`

var materialOrdering = map[string]string{
	"title":         "title",
	"kind":          "kind",
	"academic_year": "academic_year",
	"downloads":     "downloads",
	"created_at":    "created_at",
}

type materialRow struct {
	ID           string      `db:"id"`
	CourseID     string      `db:"course_id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	Kind         string      `db:"kind"`
	AcademicYear string      `db:"academic_year"`
	Semester     int         `db:"semester"`
	Filename     string      `db:"filename"`
	ContentType  string      `db:"content_type"`
	Size         int64       `db:"size"`
	StorageKey   string      `db:"storage_key"`
	UploadedBy   null.String `db:"uploaded_by"`
	Downloads    int         `db:"downloads"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toMaterialRow(mat material.Material) materialRow {
	return materialRow{
		ID:           mat.ID,
		CourseID:     mat.CourseID,
		Title:        mat.Title,
		Description:  mat.Description,
		Kind:         mat.Kind,
		AcademicYear: mat.AcademicYear,
		Semester:     mat.Semester,
		Filename:     mat.Filename,
		ContentType:  mat.ContentType,
		Size:         mat.Size,
		StorageKey:   mat.StorageKey,
		UploadedBy:   nullString(mat.UploadedBy),
		Downloads:    mat.Downloads,
		CreatedAt:    mat.CreatedAt.UTC(),
		UpdatedAt:    mat.UpdatedAt.UTC(),
	}
}

func (r materialRow) material() material.Material {
	return material.Material{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Title:        r.Title,
		Description:  r.Description,
		Kind:         r.Kind,
		AcademicYear: r.AcademicYear,
		Semester:     r.Semester,
		Filename:     r.Filename,
		ContentType:  r.ContentType,
		Size:         r.Size,
		StorageKey:   r.StorageKey,
		UploadedBy:   r.UploadedBy.String,
		Downloads:    r.Downloads,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo materialRepository) CreateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	mat.ID = uuid.New().String()
	q := `INSERT INTO material (` + materialColumns + `)
		VALUES (:id, :course_id, :title, :description, :kind, :academic_year, :semester, :filename, :content_type,
			:size, :storage_key, :uploaded_by, :downloads, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toMaterialRow(mat)); err != nil {
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	return mat, nil
}

func (repo materialRepository) QueryMaterials(ctx context.Context, filter *material.QueryFilter, ordering []core.DBOrdering) ([]material.Material, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(title ILIKE ? OR filename ILIKE ?)", val, val)
		}
		if filter.CourseID != "" {
			if !validUUID(filter.CourseID) {
				return []material.Material{}, nil
			}
			where.add("course_id = ?", filter.CourseID)
		}
		if filter.Kind != "" {
			where.add("kind = ?", filter.Kind)
		}
		if filter.AcademicYear != "" {
			where.add("academic_year = ?", filter.AcademicYear)
		}
		if filter.UploadedBy != "" {
			if !validUUID(filter.UploadedBy) {
				return []material.Material{}, nil
			}
			where.add("uploaded_by = ?", filter.UploadedBy)
		}
	}
	q := `SELECT ` + materialColumns + ` FROM material` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, materialOrdering, "created_at DESC")

	var rows []materialRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	materials := make([]material.Material, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, r.material())
	}
	return materials, nil
}

func (repo materialRepository) GetMaterial(ctx context.Context, id string) (material.Material, error) {
	if !validUUID(id) {
		return material.Material{}, material.ErrNotFound
	}
	var row materialRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+materialColumns+` FROM material WHERE id = $1`, id); err != nil {
		return material.Material{}, trapNoRowsErr(err, material.ErrNotFound, "finding material")
	}
	return row.material(), nil
}

func (repo materialRepository) UpdateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	q := `UPDATE material SET course_id = :course_id, title = :title, description = :description, kind = :kind,
		academic_year = :academic_year, semester = :semester, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toMaterialRow(mat))
	if err != nil {
		return material.Material{}, errors.Wrap(err, "updating material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return material.Material{}, material.ErrNotFound
	}
	return mat, nil
}

func (repo materialRepository) IncrementDownloads(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE material SET downloads = downloads + 1 WHERE id = $1`, id)
	return errors.Wrap(err, "counting download")
}

func (repo materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM material WHERE id = $1`, id)
	return errors.Wrap(err, "deleting material")
}
