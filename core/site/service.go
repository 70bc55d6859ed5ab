package site

import (
	"context"
	"io"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var (
	// errors
	ErrPageNotFound     = core.NewNotFoundError("page not found")
	ErrDocumentNotFound = core.NewNotFoundError("document not found")

	errFileTooLarge = "file is too large"
	errEmptyFile    = "file is empty"
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		// QueryDocuments returns the newest documents first unless ordering says otherwise.
		QueryDocuments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		DeleteDocument(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		ListPages(section string) []Page
		GetPage(slug string) (Page, error)
		UploadDocument(nd NewDocument, upload core.Upload) (Document, error)
		QueryDocuments(filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		GetDocument(id string) (Document, error)
		DeleteDocument(id string) error
		OpenDocument(id string) (Document, io.ReadCloser, error)
		Contact(cm ContactMessage)
	}

	Service struct {
		pages   []Page
		repo    Repository
		files   core.FileStorage
		mailSvc core.EmailService
		inbox   string
		maxSize int64
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(pages []Page, repo Repository, files core.FileStorage, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		pages:   pages,
		repo:    repo,
		files:   files,
		mailSvc: mailSvc,
		inbox:   conf.ContactInbox,
		maxSize: conf.Server.MaxUploadSize,
	}
}

// ListPages returns the pages of a section, or every page when section is empty.
func (svc *Service) ListPages(section string) []Page {
	section = core.CleanString(section, true /* lower */)
	pages := make([]Page, 0, len(svc.pages))
	for _, pg := range svc.pages {
		if section == "" || pg.Section == section {
			pages = append(pages, pg)
		}
	}
	return pages
}

func (svc *Service) GetPage(slug string) (Page, error) {
	slug = core.CleanString(slug, true /* lower */)
	for _, pg := range svc.pages {
		if pg.Slug == slug {
			return pg, nil
		}
	}
	return Page{}, ErrPageNotFound
}

// UploadDocument stores the file under `documents/` and records it.
func (svc *Service) UploadDocument(nd NewDocument, upload core.Upload) (Document, error) {
	ctx := context.Background()
	if svc.maxSize > 0 && upload.Size > svc.maxSize {
		return Document{}, core.NewFieldError("file", errFileTooLarge)
	}

	filename := core.CleanFilename(upload.Filename)
	key := core.NewStorageKey("documents", filename)
	r := upload.Content
	if svc.maxSize > 0 {
		r = io.LimitReader(r, svc.maxSize+1)
	}
	size, err := svc.files.Save(ctx, key, r)
	if err != nil {
		return Document{}, errors.Wrap(err, "saving document file")
	}
	if size == 0 || (svc.maxSize > 0 && size > svc.maxSize) {
		_ = svc.files.Delete(ctx, key)
		if size == 0 {
			return Document{}, core.NewFieldError("file", errEmptyFile)
		}
		return Document{}, core.NewFieldError("file", errFileTooLarge)
	}

	doc, err := svc.repo.CreateDocument(ctx, Document{
		Title:       nd.Title,
		Category:    nd.Category,
		Year:        nd.Year,
		Filename:    filename,
		ContentType: upload.ContentType,
		Size:        size,
		StorageKey:  key,
		CreatedAt:   core.Now(),
	})
	if err != nil {
		_ = svc.files.Delete(ctx, key)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return doc, nil
}

func (svc *Service) QueryDocuments(filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryDocuments(context.Background(), filter, ordering)
}

func (svc *Service) GetDocument(id string) (Document, error) {
	return svc.repo.GetDocument(context.Background(), id)
}

// DeleteDocument removes the row, then the file.
func (svc *Service) DeleteDocument(id string) error {
	ctx := context.Background()
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteDocument(ctx, id); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return errors.Wrap(svc.files.Delete(ctx, doc.StorageKey), "deleting document file")
}

// OpenDocument returns the document and its content. Callers must close the reader.
func (svc *Service) OpenDocument(id string) (Document, io.ReadCloser, error) {
	ctx := context.Background()
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := svc.files.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, nil, errors.Wrap(err, "opening document file")
	}
	return doc, rc, nil
}

// Contact forwards a contact form message to the contact inbox. Replies go to the sender.
func (svc *Service) Contact(cm ContactMessage) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: svc.inbox}},
		ReplyTo:      &mail.Address{Name: cm.Name, Address: cm.Email},
		Subject:      "[Contact] " + cm.Subject,
		TemplateName: "contact_message",
		TemplateData: map[string]interface{}{
			"Name":    cm.Name,
			"Email":   cm.Email,
			"Subject": cm.Subject,
			"Message": cm.Message,
		},
	})
}
