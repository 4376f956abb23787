package submissions

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/response"
	"github.com/provider-portal/backend/pkg/storage"
)

const (
	redirectList        = "/submissions"
	msgNotFound         = "Submission not found"
	msgDocumentNotFound = "Document not found"
	msgProviderNotFound = "Provider not found"
	msgDraftDelete      = "Only draft submissions can be deleted"
	msgDraftEdit        = "Only draft submissions can be edited"
	msgDraftDocuments   = "Documents can only be changed while the submission is a draft"
	msgNoDocuments      = "Add at least one document before submitting"
	msgSubmitDraft      = "Drafts are sent with submit, not by changing their status"
	msgUnsupportedFile  = "Unsupported file type. Allowed: PDF, TIFF, JPEG, PNG"
)

// Store is the persistence the submission service needs.
type Store interface {
	List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.SubmissionListItem], error)
	Get(ctx context.Context, id uuid.UUID) (*models.SubmissionListItem, error)
	Provider(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	Create(ctx context.Context, s *models.Submission) error
	Update(ctx context.Context, s *models.Submission) error
	Transition(ctx context.Context, s *models.Submission, from models.SubmissionStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Documents(ctx context.Context, submissionID uuid.UUID) ([]models.Document, error)
	Document(ctx context.Context, submissionID, id uuid.UUID) (*models.Document, error)
	AddDocument(ctx context.Context, d *models.Document) (bool, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) (bool, error)
}

// Storage keeps document bodies.
type Storage interface {
	PutDocument(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DocumentURL(ctx context.Context, key, filename string) (string, error)
	DeleteDocument(ctx context.Context, key string) error
}

// Notifier queues email after a committed write.
type Notifier interface {
	Send(ctx context.Context, msg notifications.Message) notifications.Result
}

// CreateInput is the create intent.
type CreateInput struct {
	Title      string `json:"title" form:"title" binding:"required,max=200"`
	Purpose    string `json:"purpose" form:"purpose" binding:"required"`
	ProviderID string `json:"provider_id" form:"provider_id" binding:"required,uuid"`
}

// UpdateInput is the update intent.
type UpdateInput struct {
	ID      string `json:"id" form:"id" binding:"required,uuid"`
	Title   string `json:"title" form:"title" binding:"required,max=200"`
	Purpose string `json:"purpose" form:"purpose" binding:"required"`
}

// IDInput targets one submission: submit and delete.
type IDInput struct {
	ID string `json:"id" form:"id" binding:"required,uuid"`
}

// StatusInput is the set-status intent.
type StatusInput struct {
	ID     string `json:"id" form:"id" binding:"required,uuid"`
	Status string `json:"status" form:"status" binding:"required"`
}

// Upload is one document file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Service implements submission reads and actions.
type Service struct {
	store    Store
	storage  Storage
	notifier Notifier
	maxBytes int64
	baseURL  string
	logger   *zap.Logger
}

// Options configures a Service.
type Options struct {
	MaxDocumentMB int
	BaseURL       string
}

// NewService creates a submission service.
func NewService(store Store, st Storage, notifier Notifier, opts Options, logger *zap.Logger) *Service {
	mb := opts.MaxDocumentMB
	if mb <= 0 {
		mb = 25
	}
	return &Service{
		store:    store,
		storage:  st,
		notifier: notifier,
		maxBytes: int64(mb) << 20,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   logger,
	}
}

func target(s *models.SubmissionListItem) access.Target {
	return access.Target{ID: s.ID, CustomerID: &s.CustomerID, ProviderGroupID: s.ProviderGroupID, ProviderID: &s.ProviderID}
}

// List returns the caller's visible submissions.
func (s *Service) List(ctx context.Context, p *access.Principal, params access.ListParams) (*models.List[models.SubmissionListItem], error) {
	f, err := access.ScopeFor(p, access.Submissions)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, f, params)
	if err != nil {
		return nil, apperr.Internal("list submissions", err)
	}
	return list, nil
}

// Get returns one visible submission with its documents and download links.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.SubmissionDetail, error) {
	sub, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Documents(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal("list documents", err)
	}
	for i := range docs {
		url, err := s.storage.DocumentURL(ctx, docs[i].S3Key, docs[i].Filename)
		if err != nil {
			s.logger.Warn("presign document failed", zap.String("document_id", docs[i].ID.String()), zap.Error(err))
			continue
		}
		docs[i].DownloadURL = url
	}
	return &models.SubmissionDetail{SubmissionListItem: *sub, Documents: docs}, nil
}

// Create starts a draft submission for a provider the caller can see. Basic users can only
// see their assigned providers.
func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*response.ActionResult, error) {
	purpose := models.Purpose(in.Purpose)
	if !purpose.Valid() {
		return nil, apperr.Field("purpose", "Invalid purpose")
	}
	prov, err := s.store.Provider(ctx, uuid.MustParse(in.ProviderID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Field("provider_id", msgProviderNotFound)
		}
		return nil, apperr.Internal("get provider", err)
	}
	pt := access.Target{ID: prov.ID, CustomerID: &prov.CustomerID, ProviderGroupID: prov.ProviderGroupID}
	if err := access.Check(p, access.Providers, pt, msgProviderNotFound); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Field("provider_id", msgProviderNotFound)
		}
		return nil, err
	}
	if !prov.Active {
		return nil, apperr.Field("provider_id", "Provider is inactive")
	}
	sub := &models.Submission{
		Title:      strings.TrimSpace(in.Title),
		Purpose:    purpose,
		Status:     models.SubmissionDraft,
		CustomerID: prov.CustomerID,
		ProviderID: prov.ID,
		CreatedBy:  p.UserID,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, apperr.Internal("create submission", err)
	}
	s.logger.Info("submission created", zap.String("submission_id", sub.ID.String()), zap.String("npi", prov.NPI))
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + sub.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Submission created successfully"},
		Record:     sub,
	}, nil
}

// Update edits title and purpose of a draft.
func (s *Service) Update(ctx context.Context, p *access.Principal, in UpdateInput) (*response.ActionResult, error) {
	purpose := models.Purpose(in.Purpose)
	if !purpose.Valid() {
		return nil, apperr.Field("purpose", "Invalid purpose")
	}
	item, err := s.load(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	if !item.Status.Editable() {
		return nil, apperr.Invariant(msgDraftEdit)
	}
	sub := &item.Submission
	sub.Title = strings.TrimSpace(in.Title)
	sub.Purpose = purpose
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, apperr.Internal("update submission", err)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + sub.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Submission updated successfully"},
		Record:     sub,
	}, nil
}

// Submit moves a draft with at least one document to SUBMITTED and emails the submitter.
func (s *Service) Submit(ctx context.Context, p *access.Principal, in IDInput) (*response.ActionResult, error) {
	item, err := s.load(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	if item.DocumentCount == 0 {
		return nil, apperr.Invariant(msgNoDocuments)
	}
	if err := s.transition(ctx, item, models.SubmissionSubmitted); err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notifications.Message{
		Type:       models.EmailTypeSubmissionSubmitted,
		To:         p.Email,
		CustomerID: &item.CustomerID,
		UserID:     &p.UserID,
		Data: map[string]string{
			"name":           p.Name,
			"title":          item.Title,
			"npi":            item.NPI,
			"purpose":        string(item.Purpose),
			"documents":      strconv.Itoa(item.DocumentCount),
			"submission_url": s.baseURL + redirectList + "/" + item.ID.String(),
		},
	})
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + item.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Submission submitted successfully"},
		Record:     &item.Submission,
	}, nil
}

// SetStatus moves a submission along the state machine. System admins only.
func (s *Service) SetStatus(ctx context.Context, p *access.Principal, in StatusInput) (*response.ActionResult, error) {
	if err := access.Require(p, models.RoleSystemAdmin); err != nil {
		return nil, err
	}
	next := models.SubmissionStatus(in.Status)
	if !next.Valid() {
		return nil, apperr.Field("status", "Invalid status")
	}
	item, err := s.load(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	if item.Status == models.SubmissionDraft {
		return nil, apperr.Invariant(msgSubmitDraft)
	}
	if err := s.transition(ctx, item, next); err != nil {
		return nil, err
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + item.ID.String(),
		Toast:      response.Toast{Type: "success", Message: fmt.Sprintf("Status changed to %s", next)},
		Record:     &item.Submission,
	}, nil
}

// Delete removes a draft and its documents.
func (s *Service) Delete(ctx context.Context, p *access.Principal, in IDInput) (*response.ActionResult, error) {
	item, err := s.load(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	if !item.Status.Editable() {
		return nil, apperr.Invariant(msgDraftDelete)
	}
	docs, err := s.store.Documents(ctx, item.ID)
	if err != nil {
		return nil, apperr.Internal("list documents", err)
	}
	deleted, err := s.store.Delete(ctx, item.ID)
	if err != nil {
		return nil, apperr.Internal("delete submission", err)
	}
	if !deleted {
		return nil, apperr.Invariant(msgDraftDelete)
	}
	for _, d := range docs {
		s.removeObject(ctx, d)
	}
	s.logger.Info("submission deleted", zap.String("submission_id", item.ID.String()), zap.Int("documents", len(docs)))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Submission deleted successfully"},
	}, nil
}

// AddDocument stores an uploaded file on a draft.
func (s *Service) AddDocument(ctx context.Context, p *access.Principal, submissionID uuid.UUID, up Upload) (*response.ActionResult, error) {
	item, err := s.load(ctx, p, submissionID)
	if err != nil {
		return nil, err
	}
	if !item.Status.Editable() {
		return nil, apperr.Invariant(msgDraftDocuments)
	}
	contentType, ok := storage.DocumentContentType(up.Filename)
	if !ok {
		return nil, apperr.Field("file", msgUnsupportedFile)
	}
	switch {
	case up.Size <= 0:
		return nil, apperr.Field("file", "File is empty")
	case up.Size > s.maxBytes:
		return nil, apperr.Field("file", fmt.Sprintf("File exceeds the %d MB limit", s.maxBytes>>20))
	}

	doc := &models.Document{
		ID:           uuid.New(),
		SubmissionID: item.ID,
		Filename:     up.Filename,
		ContentType:  contentType,
		SizeBytes:    up.Size,
		UploadedBy:   p.UserID,
	}
	doc.S3Key = storage.DocumentKey(item.CustomerID.String(), item.ID.String(), doc.ID.String(), up.Filename)
	if err := s.storage.PutDocument(ctx, doc.S3Key, contentType, up.Body, up.Size); err != nil {
		return nil, apperr.Internal("upload document", err)
	}
	added, err := s.store.AddDocument(ctx, doc)
	if err != nil || !added {
		s.removeObject(ctx, *doc)
	}
	if err != nil {
		return nil, apperr.Internal("save document", err)
	}
	if !added {
		return nil, apperr.Invariant(msgDraftDocuments)
	}
	s.logger.Info("document uploaded",
		zap.String("submission_id", item.ID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size_bytes", doc.SizeBytes),
	)
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + item.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Document uploaded successfully"},
		Record:     doc,
	}, nil
}

// RemoveDocument deletes a document from a draft.
func (s *Service) RemoveDocument(ctx context.Context, p *access.Principal, submissionID, documentID uuid.UUID) (*response.ActionResult, error) {
	item, err := s.load(ctx, p, submissionID)
	if err != nil {
		return nil, err
	}
	if !item.Status.Editable() {
		return nil, apperr.Invariant(msgDraftDocuments)
	}
	doc, err := s.store.Document(ctx, item.ID, documentID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgDocumentNotFound)
		}
		return nil, apperr.Internal("get document", err)
	}
	removed, err := s.store.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return nil, apperr.Internal("delete document", err)
	}
	if !removed {
		return nil, apperr.Invariant(msgDraftDocuments)
	}
	s.removeObject(ctx, *doc)
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + item.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Document removed"},
	}, nil
}

func (s *Service) load(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.SubmissionListItem, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Internal("get submission", err)
	}
	if err := access.Check(p, access.Submissions, target(sub), msgNotFound); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) transition(ctx context.Context, item *models.SubmissionListItem, next models.SubmissionStatus) error {
	from := item.Status
	if !from.CanTransitionTo(next) {
		return apperr.Invariant(fmt.Sprintf("Cannot change status from %s to %s", from, next))
	}
	sub := &item.Submission
	sub.Status = next
	if next == models.SubmissionSubmitted {
		now := time.Now().UTC()
		sub.SubmittedAt = &now
	}
	ok, err := s.store.Transition(ctx, sub, from)
	if err != nil {
		return apperr.Internal("change submission status", err)
	}
	if !ok {
		return apperr.Invariant("Submission status changed in the meantime. Reload and try again.")
	}
	s.logger.Info("submission status changed",
		zap.String("submission_id", sub.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	return nil
}

// removeObject deletes a document body. Failures only leave an orphaned object and are logged.
func (s *Service) removeObject(ctx context.Context, d models.Document) {
	if err := s.storage.DeleteDocument(ctx, d.S3Key); err != nil {
		s.logger.Warn("delete document object failed",
			zap.String("document_id", d.ID.String()),
			zap.String("key", d.S3Key),
			zap.Error(err),
		)
	}
}
