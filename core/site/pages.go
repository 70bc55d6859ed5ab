package site

import (
	"bytes"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/chuo/core"
)

// Page sections
const (
	SectionAbout        = "about"
	SectionAcademics    = "academics"
	SectionAdmissions   = "admissions"
	SectionLegal        = "legal"
	SectionTransparency = "transparency"
)

var (
	Sections = []string{SectionAbout, SectionAcademics, SectionAdmissions, SectionLegal, SectionTransparency}

	frontMatterDelim = []byte("---")
	dateLayout       = "2006-01-02"

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
)

// Page is a public informational page.
type Page struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Section   string    `json:"section"`
	Summary   string    `json:"summary"`
	Order     int       `json:"order"`
	Body      string    `json:"body"` // markdown
	HTML      string    `json:"html"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Section   string `yaml:"section"`
	Summary   string `yaml:"summary"`
	Order     int    `yaml:"order"`
	UpdatedAt string `yaml:"updated_at"`
}

// LoadPages parses every `.md` file of dir. The slug of a page is its file name without extension.
func LoadPages(fsys fs.FS, dir string) ([]Page, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading pages dir")
	}

	pages := make([]Page, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading page %s", entry.Name())
		}
		pg, err := ParsePage(strings.TrimSuffix(entry.Name(), ".md"), content)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing page %s", entry.Name())
		}
		pages = append(pages, pg)
	}
	sortPages(pages)
	return pages, nil
}

// ParsePage parses a markdown document starting with a YAML front matter block.
func ParsePage(slug string, content []byte) (Page, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, frontMatterDelim) {
		return Page{}, errors.New("missing front matter")
	}
	rest := content[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return Page{}, errors.New("unterminated front matter")
	}
	header, body := rest[:end], rest[end+1+len(frontMatterDelim):]

	var fm frontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return Page{}, errors.Wrap(err, "decoding front matter")
	}
	fm.Title = core.CleanString(fm.Title)
	fm.Section = core.CleanString(fm.Section, true /* lower */)
	if fm.Title == "" {
		return Page{}, errors.New("title is required")
	}
	if !core.StringInSlice(fm.Section, Sections) {
		return Page{}, errors.Errorf("unknown section: %q", fm.Section)
	}

	pg := Page{
		Slug:    slug,
		Title:   fm.Title,
		Section: fm.Section,
		Summary: core.CleanString(fm.Summary),
		Order:   fm.Order,
		Body:    strings.TrimSpace(string(body)),
	}
	if fm.UpdatedAt != "" {
		updatedAt, err := time.Parse(dateLayout, fm.UpdatedAt)
		if err != nil {
			return Page{}, errors.Wrap(err, "parsing updated_at")
		}
		pg.UpdatedAt = updatedAt.UTC()
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(pg.Body), &buf); err != nil {
		return Page{}, errors.Wrap(err, "rendering markdown")
	}
	pg.HTML = buf.String()
	return pg, nil
}

// sortPages orders pages by section, then order, then title.
func sortPages(pages []Page) {
	sectionIdx := make(map[string]int, len(Sections))
	for i, s := range Sections {
		sectionIdx[s] = i
	}
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		if a.Section != b.Section {
			return sectionIdx[a.Section] < sectionIdx[b.Section]
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Title < b.Title
	})
}
