package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/config"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/pdfform"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/storage"
)

// Template IDs resolved against the configured template directory.
const (
	templateResidencyCert    = "residency_certificate"
	templateDividendSchedule = "dividend_schedule"
)

// FormRenderer fills PDF templates and bundles rendered documents.
type FormRenderer interface {
	Fill(templateID string, fields map[string]string, flatten bool) ([]byte, error)
	Bundle(docs []pdfform.NamedDocument) ([]byte, error)
}

// GenerationResult is the outcome of a form generation. On failure Success is
// false and Errors explains why; the partial artifact (if any) has been
// cleaned up.
type GenerationResult struct {
	Success       bool           `json:"success"`
	FormID        string         `json:"formId,omitempty"`
	FileName      string         `json:"fileName,omitempty"`
	FormType      model.FormType `json:"formType"`
	DividendCount int            `json:"dividendCount"`
	DownloadURL   string         `json:"downloadUrl,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// FormService orchestrates tax-form generation: it gathers the profile and
// dividends, runs the reclaim calculation, renders the PDF(s), uploads the
// artifact and persists the form row with its dividend links. Upload and
// persist are not atomic, so a persist failure triggers deletion of the
// uploaded artifact.
type FormService struct {
	formRepo     *repository.FormRepository
	dividendRepo *repository.DividendRepository
	userRepo     *repository.UserRepository
	reclaim      *ReclaimService
	renderer     FormRenderer
	store        storage.ObjectStore

	formsCfg      config.FormsConfig
	presignExpiry time.Duration
	now           func() time.Time
}

// NewFormService creates a new FormService with the provided dependencies.
func NewFormService(
	formRepo *repository.FormRepository,
	dividendRepo *repository.DividendRepository,
	userRepo *repository.UserRepository,
	reclaim *ReclaimService,
	renderer FormRenderer,
	store storage.ObjectStore,
	formsCfg config.FormsConfig,
	presignExpiry time.Duration,
) *FormService {
	return &FormService{
		formRepo:      formRepo,
		dividendRepo:  dividendRepo,
		userRepo:      userRepo,
		reclaim:       reclaim,
		renderer:      renderer,
		store:         store,
		formsCfg:      formsCfg,
		presignExpiry: presignExpiry,
		now:           time.Now,
	}
}

// Generate produces a form of the requested type for the user and returns
// where to download it. Schedule and bundle forms attach the given dividends;
// a dividend already attached to another form fails the whole generation.
func (s *FormService) Generate(ctx context.Context, userID string, formType model.FormType, taxYear int, dividendIDs []string) (GenerationResult, error) {
	result := GenerationResult{FormType: formType}

	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return s.fail(result, err)
	}
	// A residency certificate (alone or inside a bundle) attests identity
	// and address; a schedule only needs the residence country and renders
	// missing optionals as blanks.
	if formType != model.FormTypeDividendSchedule && !profile.Complete() {
		return s.fail(result, apperrors.ErrIncompleteProfile)
	}

	var dividends []model.Dividend
	if formType != model.FormTypeResidencyCert {
		if len(dividendIDs) == 0 {
			return s.fail(result, apperrors.ErrEmptyDividendList)
		}
		dividends, err = s.dividendRepo.ListByIDs(ctx, dividendIDs)
		if err != nil {
			return s.fail(result, err)
		}
		for _, d := range dividends {
			if d.OwnerUserID != userID {
				return s.fail(result, apperrors.ErrDividendNotFound)
			}
			if d.Submitted() {
				return s.fail(result, fmt.Errorf("%w: dividend %s is already attached to form %s", apperrors.ErrDividendSubmitted, d.ID, d.FormID))
			}
		}
	}
	result.DividendCount = len(dividends)

	document, warnings, err := s.render(ctx, profile, formType, taxYear, dividends)
	if err != nil {
		return s.fail(result, err)
	}
	result.Warnings = warnings

	now := s.now().UTC()
	formID := uuid.New().String()
	fileName := fmt.Sprintf("%s_%s_%d%s", formType, userID, taxYear, fileExtension(formType))
	storageKey := fmt.Sprintf("forms/%s/%s/%s", userID, formID, fileName)

	if err := s.store.Upload(ctx, storageKey, document, contentType(formType)); err != nil {
		return s.fail(result, err)
	}

	expiresAt := now.AddDate(0, 0, s.formsCfg.RetentionDays)
	form := &model.GeneratedForm{
		ID:          formID,
		OwnerUserID: userID,
		StorageKey:  storageKey,
		FileName:    fileName,
		TaxYear:     taxYear,
		FormType:    formType,
		Status:      model.FormStatusGenerated,
		ExpiresAt:   &expiresAt,
		CreatedAt:   now,
	}
	if err := s.formRepo.CreateAndLink(ctx, form, dividendIDs, s.dividendRepo); err != nil {
		// The artifact is already in object storage; remove it so a failed
		// generation leaves nothing behind.
		if delErr := s.store.Delete(ctx, storageKey); delErr != nil {
			log.Printf("failed to clean up artifact %s after persist failure: %v", storageKey, delErr)
		}
		return s.fail(result, err)
	}

	result.Success = true
	result.FormID = formID
	result.FileName = fileName

	url, err := s.store.PresignedURL(ctx, storageKey, s.presignExpiry)
	if err != nil {
		// The form exists and can be fetched later; report the presign
		// problem without failing the generation.
		result.Warnings = append(result.Warnings, fmt.Sprintf("download link unavailable: %v", err))
		return result, nil
	}
	result.DownloadURL = url

	return result, nil
}

// Regenerate re-renders an existing form over the same dividend set with
// current profile data. The old artifact is deleted, a fresh document takes
// its place, and the row is restamped with a new generation time and
// retention window.
func (s *FormService) Regenerate(ctx context.Context, userID, formID string) (GenerationResult, error) {
	result := GenerationResult{}

	form, err := s.getOwnedForm(ctx, userID, formID)
	if err != nil {
		return s.fail(result, err)
	}
	result.FormType = form.FormType

	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return s.fail(result, err)
	}
	if form.FormType != model.FormTypeDividendSchedule && !profile.Complete() {
		return s.fail(result, apperrors.ErrIncompleteProfile)
	}

	var dividends []model.Dividend
	if form.FormType != model.FormTypeResidencyCert {
		dividends, err = s.dividendRepo.ListByForm(ctx, formID)
		if err != nil {
			return s.fail(result, err)
		}
	}
	result.DividendCount = len(dividends)

	document, warnings, err := s.render(ctx, profile, form.FormType, form.TaxYear, dividends)
	if err != nil {
		return s.fail(result, err)
	}
	result.Warnings = warnings

	// The fresh document is rendered before the old artifact goes away, so a
	// render failure leaves the previous version downloadable.
	if err := s.store.Delete(ctx, form.StorageKey); err != nil {
		log.Printf("failed to delete old artifact %s for form %s: %v", form.StorageKey, form.ID, err)
	}
	if err := s.store.Upload(ctx, form.StorageKey, document, contentType(form.FormType)); err != nil {
		return s.fail(result, err)
	}

	now := s.now().UTC()
	expiresAt := now.AddDate(0, 0, s.formsCfg.RetentionDays)
	if err := s.formRepo.RefreshGenerated(ctx, form.ID, now, expiresAt); err != nil {
		return s.fail(result, err)
	}

	result.Success = true
	result.FormID = form.ID
	result.FileName = form.FileName

	url, err := s.store.PresignedURL(ctx, form.StorageKey, s.presignExpiry)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("download link unavailable: %v", err))
		return result, nil
	}
	result.DownloadURL = url

	return result, nil
}

// GetForm retrieves a form owned by the user.
func (s *FormService) GetForm(ctx context.Context, userID, formID string) (*model.GeneratedForm, error) {
	return s.getOwnedForm(ctx, userID, formID)
}

// ListForms retrieves all forms owned by the user, newest first.
func (s *FormService) ListForms(ctx context.Context, userID string) ([]model.GeneratedForm, error) {
	return s.formRepo.ListByUser(ctx, userID)
}

// DownloadURL returns a fresh presigned URL for an existing form.
func (s *FormService) DownloadURL(ctx context.Context, userID, formID string) (string, error) {
	form, err := s.getOwnedForm(ctx, userID, formID)
	if err != nil {
		return "", err
	}
	return s.store.PresignedURL(ctx, form.StorageKey, s.presignExpiry)
}

// DeleteForm removes a form row, releases its dividends for inclusion in a
// new form, and deletes the stored artifact.
func (s *FormService) DeleteForm(ctx context.Context, userID, formID string) error {
	form, err := s.getOwnedForm(ctx, userID, formID)
	if err != nil {
		return err
	}

	if err := s.formRepo.DeleteAndUnlink(ctx, formID, s.dividendRepo); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, form.StorageKey); err != nil {
		// The row is gone and the dividends are released; an orphaned
		// artifact is harmless and worth only a log line.
		log.Printf("failed to delete artifact %s for form %s: %v", form.StorageKey, formID, err)
	}
	return nil
}

// CleanupExpired removes forms past their retention window together with
// their artifacts, releasing the linked dividends. Individual failures are
// logged and skipped so one bad row cannot stall the job. Returns the number
// of forms removed.
func (s *FormService) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := s.formRepo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, form := range expired {
		if err := s.formRepo.DeleteAndUnlink(ctx, form.ID, s.dividendRepo); err != nil {
			log.Printf("failed to remove expired form %s: %v", form.ID, err)
			continue
		}
		if err := s.store.Delete(ctx, form.StorageKey); err != nil {
			log.Printf("failed to delete artifact %s for expired form %s: %v", form.StorageKey, form.ID, err)
		}
		removed++
	}
	return removed, nil
}

// render produces the document bytes for a form type, running the reclaim
// calculation for schedule lines. Calculation notes surface as warnings.
func (s *FormService) render(ctx context.Context, profile *model.UserProfile, formType model.FormType, taxYear int, dividends []model.Dividend) ([]byte, []string, error) {
	switch formType {
	case model.FormTypeResidencyCert:
		doc, err := s.renderer.Fill(templateResidencyCert, MapResidencyCertificate(*profile, taxYear, s.now()), true)
		return doc, nil, err

	case model.FormTypeDividendSchedule:
		calculated, warnings, err := s.calculateLines(ctx, profile, dividends)
		if err != nil {
			return nil, nil, err
		}
		doc, err := s.renderer.Fill(templateDividendSchedule, MapDividendSchedule(*profile, calculated, taxYear), true)
		return doc, warnings, err

	case model.FormTypeBundle:
		cert, err := s.renderer.Fill(templateResidencyCert, MapResidencyCertificate(*profile, taxYear, s.now()), true)
		if err != nil {
			return nil, nil, err
		}
		calculated, warnings, err := s.calculateLines(ctx, profile, dividends)
		if err != nil {
			return nil, nil, err
		}
		schedule, err := s.renderer.Fill(templateDividendSchedule, MapDividendSchedule(*profile, calculated, taxYear), true)
		if err != nil {
			return nil, nil, err
		}
		doc, err := s.renderer.Bundle([]pdfform.NamedDocument{
			{Name: fmt.Sprintf("%s_%d.pdf", model.FormTypeResidencyCert, taxYear), Bytes: cert},
			{Name: fmt.Sprintf("%s_%d.pdf", model.FormTypeDividendSchedule, taxYear), Bytes: schedule},
		})
		return doc, warnings, err

	default:
		return nil, nil, fmt.Errorf("unknown form type %q", formType)
	}
}

// calculateLines runs the reclaim calculation over the form's dividends and
// folds the computed rates back into the line data. A per-item calculation
// failure fails the form: a schedule with an unpriced line is not filable.
func (s *FormService) calculateLines(ctx context.Context, profile *model.UserProfile, dividends []model.Dividend) ([]model.Dividend, []string, error) {
	batch, err := s.reclaim.CalculateBatch(ctx, dividends, profile.CountryOfResidence)
	if err != nil {
		return nil, nil, err
	}
	if batch.FailureCount > 0 {
		return nil, nil, fmt.Errorf("%d dividend(s) failed calculation: %v", batch.FailureCount, batch.Errors)
	}

	calculated := make([]model.Dividend, len(dividends))
	for i, d := range dividends {
		r := batch.Results[i]
		d.TreatyRate = r.TreatyRate
		reclaimable := r.ReclaimableAmount
		d.ReclaimableAmount = &reclaimable
		calculated[i] = d
	}
	return calculated, batch.Warnings, nil
}

func (s *FormService) getOwnedForm(ctx context.Context, userID, formID string) (*model.GeneratedForm, error) {
	form, err := s.formRepo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.OwnerUserID != userID {
		// Hide other users' forms rather than reveal their existence.
		return nil, apperrors.ErrFormNotFound
	}
	return form, nil
}

func (s *FormService) fail(result GenerationResult, err error) (GenerationResult, error) {
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	return result, err
}

func fileExtension(formType model.FormType) string {
	if formType == model.FormTypeBundle {
		return ".zip"
	}
	return ".pdf"
}

func contentType(formType model.FormType) string {
	if formType == model.FormTypeBundle {
		return "application/zip"
	}
	return "application/pdf"
}
