package material

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("material not found")

	errFileTooLarge = "file is too large"
	errEmptyFile    = "file is empty"
)

type (
	Repository interface {
		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		// QueryMaterials applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Material.Title or Material.Filename.
		QueryMaterials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		UpdateMaterial(ctx context.Context, mat Material) (Material, error)
		IncrementDownloads(ctx context.Context, id string) error
		DeleteMaterial(ctx context.Context, id string) error
	}

	// CourseFinder finds the course a material belongs to.
	CourseFinder interface {
		GetCourse(id string) (academics.Course, error)
	}

	ServiceInterface interface {
		Upload(nm NewMaterial, upload core.Upload, uploadedBy string) (Material, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error)
		Get(id string) (Material, error)
		Update(id string, nm NewMaterial) (Material, error)
		Delete(id string) error
		Open(id string) (Material, io.ReadCloser, error)
	}

	Service struct {
		repo    Repository
		courses CourseFinder
		files   core.FileStorage
		maxSize int64
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, courses CourseFinder, files core.FileStorage, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		courses: courses,
		files:   files,
		maxSize: conf.Server.MaxUploadSize,
	}
}

func (svc *Service) checkCourse(id string) error {
	if _, err := svc.courses.GetCourse(id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding course")
	}
	return nil
}

// Upload stores the file under `materials/` and records its metadata.
func (svc *Service) Upload(nm NewMaterial, upload core.Upload, uploadedBy string) (Material, error) {
	ctx := context.Background()
	if err := svc.checkCourse(nm.CourseID); err != nil {
		return Material{}, err
	}
	if svc.maxSize > 0 && upload.Size > svc.maxSize {
		return Material{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileTooLarge})
	}

	filename := core.CleanFilename(upload.Filename)
	key := core.NewStorageKey("materials", filename)
	r := upload.Content
	if svc.maxSize > 0 {
		r = io.LimitReader(r, svc.maxSize+1)
	}
	size, err := svc.files.Save(ctx, key, r)
	if err != nil {
		return Material{}, errors.Wrap(err, "saving material file")
	}
	if size == 0 || (svc.maxSize > 0 && size > svc.maxSize) {
		_ = svc.files.Delete(ctx, key)
		msg := errFileTooLarge
		if size == 0 {
			msg = errEmptyFile
		}
		return Material{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: msg})
	}

	now := core.Now()
	mat, err := svc.repo.CreateMaterial(ctx, Material{
		CourseID:     nm.CourseID,
		Title:        nm.Title,
		Description:  nm.Description,
		Kind:         nm.Kind,
		AcademicYear: nm.AcademicYear,
		Semester:     nm.Semester,
		Filename:     filename,
		ContentType:  upload.ContentType,
		Size:         size,
		StorageKey:   key,
		UploadedBy:   uploadedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		_ = svc.files.Delete(ctx, key)
		return Material{}, errors.Wrap(err, "creating material")
	}
	return mat, nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error) {
	return svc.repo.QueryMaterials(context.Background(), filter, ordering)
}

func (svc *Service) Get(id string) (Material, error) {
	return svc.repo.GetMaterial(context.Background(), id)
}

// Update changes the metadata of a material; the file is kept.
func (svc *Service) Update(id string, nm NewMaterial) (Material, error) {
	ctx := context.Background()
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if nm.CourseID != mat.CourseID {
		if err := svc.checkCourse(nm.CourseID); err != nil {
			return Material{}, err
		}
	}
	mat.CourseID = nm.CourseID
	mat.Title = nm.Title
	mat.Description = nm.Description
	mat.Kind = nm.Kind
	mat.AcademicYear = nm.AcademicYear
	mat.Semester = nm.Semester
	mat.UpdatedAt = core.Now()
	return svc.repo.UpdateMaterial(ctx, mat)
}

// Delete removes the row, then the file.
func (svc *Service) Delete(id string) error {
	ctx := context.Background()
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteMaterial(ctx, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return errors.Wrap(svc.files.Delete(ctx, mat.StorageKey), "deleting material file")
}

// Open returns the material and its content, and counts the download. Callers must close the reader.
func (svc *Service) Open(id string) (Material, io.ReadCloser, error) {
	ctx := context.Background()
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, nil, err
	}
	rc, err := svc.files.Open(ctx, mat.StorageKey)
	if err != nil {
		return Material{}, nil, errors.Wrap(err, "opening material file")
	}
	if err = svc.repo.IncrementDownloads(ctx, id); err != nil {
		_ = rc.Close()
		return Material{}, nil, errors.Wrap(err, "counting download")
	}
	mat.Downloads++
	return mat, rc, nil
}
