package service

import (
	"context"
	"fmt"
	"time"

	"waste-report-service/config"
	"waste-report-service/internal/model"
	"waste-report-service/internal/repository"

	"github.com/google/uuid"
)

// EventPublisher receives an event after each persisted mutation.
type EventPublisher interface {
	Publish(event model.ReportEvent)
}

type ReportService struct {
	store          repository.ReportStore
	publisher      EventPublisher
	reportsConfig  config.ReportsConfig
	customStatuses map[model.ReportStatus]bool

	now   func() time.Time
	newID func() (string, error)
}

func NewReportService(store repository.ReportStore, publisher EventPublisher, reportsConfig config.ReportsConfig) *ReportService {
	custom := make(map[model.ReportStatus]bool, len(reportsConfig.CustomStatuses))
	for _, s := range reportsConfig.CustomStatuses {
		if s != "" {
			custom[model.ReportStatus(s)] = true
		}
	}
	if reportsConfig.FallbackImageURL == "" {
		reportsConfig.FallbackImageURL = repository.FallbackImageURL
	}

	return &ReportService{
		store:          store,
		publisher:      publisher,
		reportsConfig:  reportsConfig,
		customStatuses: custom,
		now:            time.Now,
		newID:          newReportID,
	}
}

// newReportID returns a UUIDv7: unique under concurrent creation and
// sortable by creation time.
func newReportID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Returns the full collection, newest first.
func (s *ReportService) ListReports(ctx context.Context) ([]model.Report, error) {
	reports, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return reports, nil
}

// Counts reports per status. Statuses outside the built-in three land in Other.
func (s *ReportService) ComputeStats(ctx context.Context) (*model.Stats, error) {
	reports, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	stats := &model.Stats{Total: len(reports)}
	for _, r := range reports {
		switch r.Status {
		case model.StatusPending:
			stats.Pending++
		case model.StatusVerified:
			stats.Verified++
		case model.StatusRejected:
			stats.Rejected++
		default:
			stats.Other++
		}
	}
	return stats, nil
}

// Persists a new Pending report at the head of the collection. RepeatCount is
// the number of reports already filed from the same phone number.
func (s *ReportService) SubmitReport(ctx context.Context, in model.SubmitReportInput) (*model.Report, error) {
	lat, latOK := model.ParseCoordinate(in.Lat)
	lng, lngOK := model.ParseCoordinate(in.Lng)
	if s.reportsConfig.StrictCoordinates && !(latOK && lngOK && lat.Valid() && lng.Valid()) {
		return nil, fmt.Errorf("%w: lat and lng must be numbers", model.ErrValidation)
	}

	imageURL := in.ImageRef
	if imageURL == "" {
		imageURL = s.reportsConfig.FallbackImageURL
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate report id: %w", err)
	}

	var created model.Report
	err = s.store.Update(ctx, func(reports []model.Report) ([]model.Report, error) {
		repeatCount := 0
		for _, r := range reports {
			if r.ReporterPhone == in.ReporterPhone {
				repeatCount++
			}
		}

		created = model.Report{
			ID:            id,
			ImageURL:      imageURL,
			Location:      in.Location,
			Lat:           lat,
			Lng:           lng,
			Description:   in.Description,
			ReporterName:  in.ReporterName,
			ReporterPhone: in.ReporterPhone,
			Status:        model.StatusPending,
			Timestamp:     s.now().UnixMilli(),
			RepeatCount:   repeatCount,
		}

		return append([]model.Report{created}, reports...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit report: %w", err)
	}

	s.publish(model.EventReportCreated, created)
	return &created, nil
}

// Overwrites status, problemType and forwardTo with the non-empty values in
// upd. The collection is saved even when nothing changed.
func (s *ReportService) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.Report, error) {
	var updated model.Report
	err := s.store.Update(ctx, func(reports []model.Report) ([]model.Report, error) {
		idx := -1
		for i := range reports {
			if reports[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("report %s: %w", id, model.ErrNotFound)
		}

		if upd.Status != "" {
			if !s.IsKnownStatus(upd.Status) {
				return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, upd.Status)
			}
			reports[idx].Status = upd.Status
		}
		if upd.ProblemType != "" {
			reports[idx].ProblemType = upd.ProblemType
		}
		if upd.ForwardTo != "" {
			reports[idx].ForwardTo = upd.ForwardTo
		}

		updated = reports[idx]
		return reports, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.publish(model.EventReportStatusUpdated, updated)
	return &updated, nil
}

func (s *ReportService) IsKnownStatus(status model.ReportStatus) bool {
	return status.IsBuiltin() || s.customStatuses[status]
}

func (s *ReportService) publish(eventType model.EventType, report model.Report) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.ReportEvent{
		Type:      eventType,
		Report:    report,
		Timestamp: s.now().UnixMilli(),
	})
}
