// Package testutil holds the fixtures shared by the tests of the API and the admin CLI.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/user"
)

// NewTestConfig returns the TEST config: in-memory database, files under a fresh temp dir, debug off.
func NewTestConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Database.Engine = "memory"
	conf.Storage.Driver = "local"
	conf.Storage.Root = filepath.Join(os.TempDir(), "chuo-test-"+uuid.New().String())
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse creates a course along with its faculty and department.
func CreateCourse(t *testing.T, repo academics.Repository, code, title string, published bool) academics.Course {
	t.Helper()
	ctx := context.Background()
	now := core.Now()

	fac, err := repo.CreateFaculty(ctx, academics.Faculty{
		Name: "Faculty of " + title, Code: "F" + code, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	dept, err := repo.CreateDepartment(ctx, academics.Department{
		FacultyID: fac.ID, Name: "Department of " + title, Code: "D" + code, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	course, err := repo.CreateCourse(ctx, academics.Course{
		DepartmentID:  dept.ID,
		Code:          code,
		Title:         title,
		Level:         academics.LevelUndergraduate,
		DurationYears: 3,
		IsPublished:   published,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return course
}
