package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/material"
)

var materialFields = map[string]field[material.Material]{
	"title":         func(m material.Material) interface{} { return m.Title },
	"kind":          func(m material.Material) interface{} { return m.Kind },
	"academic_year": func(m material.Material) interface{} { return m.AcademicYear },
	"downloads":     func(m material.Material) interface{} { return m.Downloads },
	"created_at":    func(m material.Material) interface{} { return m.CreatedAt },
}

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(_ context.Context, mat material.Material) (material.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	mat.ID = uuid.New().String()
	repo.db.materials[mat.ID] = mat
	return mat, nil
}

func (repo *materialRepository) QueryMaterials(_ context.Context, filter *material.QueryFilter, ordering []core.DBOrdering) ([]material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	materials := make([]material.Material, 0, len(repo.db.materials))
	for _, m := range repo.db.materials {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, m.Title, m.Filename) {
				continue
			}
			if filter.CourseID != "" && m.CourseID != filter.CourseID {
				continue
			}
			if filter.Kind != "" && m.Kind != filter.Kind {
				continue
			}
			if filter.AcademicYear != "" && m.AcademicYear != filter.AcademicYear {
				continue
			}
			if filter.UploadedBy != "" && m.UploadedBy != filter.UploadedBy {
				continue
			}
		}
		materials = append(materials, m)
	}
	sortRows(materials, ordering, materialFields, core.DBOrdering{Field: "created_at"})
	return materials, nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, id string) (material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mat, ok := repo.db.materials[id]; ok {
		return mat, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) UpdateMaterial(_ context.Context, mat material.Material) (material.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.materials[mat.ID]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	// only metadata is updated
	orig.CourseID = mat.CourseID
	orig.Title = mat.Title
	orig.Description = mat.Description
	orig.Kind = mat.Kind
	orig.AcademicYear = mat.AcademicYear
	orig.Semester = mat.Semester
	orig.UpdatedAt = mat.UpdatedAt
	repo.db.materials[mat.ID] = orig
	return orig, nil
}

func (repo *materialRepository) IncrementDownloads(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if mat, ok := repo.db.materials[id]; ok {
		mat.Downloads++
		repo.db.materials[id] = mat
	}
	return nil
}

func (repo *materialRepository) DeleteMaterial(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.materials, id)
	return nil
}
