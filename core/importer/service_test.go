package importer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/importer"
	"github.com/trezcool/chuo/core/library"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
)

func newBooksImporter(t *testing.T, batchSize int) (*importer.Service, *library.Service) {
	t.Helper()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	library.InitValidators(validate, translator)
	importer.InitValidators(validate, translator)

	books := library.NewService(inmemdb.NewBookRepository(inmemdb.Open()))
	conf := &core.Config{Importer: core.ImporterConfig{BatchSize: batchSize}}
	return importer.NewService(nil, books, nil, validate, translator, conf), books
}

func TestService_Import_failedBatch(t *testing.T) {
	svc, books := newBooksImporter(t, 2)
	csv := strings.Join([]string{
		"isbn,title,authors",
		"978-0-306-40615-7,Algorithms,Knuth",
		"9780306406157,Algorithms (copy),Knuth",
		",Compilers,Aho",
	}, "\n")

	report, err := svc.Import(importer.Request{Kind: importer.KindBooks}, "books.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	for i, rowErr := range report.Errors {
		assert.Equal(t, i+2, rowErr.Row)
		assert.True(t, strings.HasPrefix(rowErr.Error, "batch failed: "), rowErr.Error)
	}

	// the failed batch left nothing behind
	all, err := books.Query(nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Compilers", all[0].Title)
}

func TestService_Import_batches(t *testing.T) {
	svc, books := newBooksImporter(t, 2)
	rows := []string{"title,authors"}
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		rows = append(rows, title+",Someone")
	}

	report, err := svc.Import(importer.Request{Kind: importer.KindBooks}, "books.csv", strings.NewReader(strings.Join(rows, "\n")))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Inserted)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Errors)

	all, err := books.Query(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
