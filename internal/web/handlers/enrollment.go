package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/capture"
	"github.com/kozaktomas/facevote/internal/config"
	"github.com/kozaktomas/facevote/internal/constants"
	"github.com/kozaktomas/facevote/internal/protocol"
)

// EnrollmentHandler runs registration captures on the server camera and
// streams their progress over SSE.
type EnrollmentHandler struct {
	config     *config.Config
	source     protocol.LiveSource
	controller *capture.Controller
	jobManager *JobManager
	logger     *zap.Logger
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(cfg *config.Config, source protocol.LiveSource, controller *capture.Controller, jm *JobManager, logger *zap.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		config:     cfg,
		source:     source,
		controller: controller,
		jobManager: jm,
		logger:     logger,
	}
}

type captureProgress struct {
	Count    int `json:"count"`
	Target   int `json:"target"`
	TimeLeft int `json:"time_left"`
}

// Start begins a capture job
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	store := getStore(w, r)
	if store == nil {
		return
	}

	registrar := protocol.NewRegistrar(store, h.config.Biometric.AllowEmptyEnrollment, h.logger)
	enroller := protocol.NewEnroller(registrar, h.source, h.controller)

	job := h.jobManager.CreateJob(uuid.NewString(), h.controller.Options().TargetCount, enroller)
	if job == nil {
		respondKindError(w, h.logger, biometric.NewError(biometric.KindSessionBusy,
			"another face capture is in progress", nil))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.mu.Lock()
	job.cancel = cancel
	job.mu.Unlock()

	go h.runCapture(ctx, cancel, job)

	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

func (h *EnrollmentHandler) runCapture(ctx context.Context, cancel context.CancelFunc, job *CaptureJob) {
	defer close(job.finished)
	defer cancel()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()

	log := h.logger.With(zap.String("job_id", job.ID))
	log.Info("enrollment capture started")

	set, err := job.enroller.Capture(ctx, func(count, timeLeft int) {
		job.mu.Lock()
		job.Count = count
		job.TimeLeft = timeLeft
		target := job.Target
		job.mu.Unlock()
		job.SendEvent(JobEvent{Type: "progress", Data: captureProgress{Count: count, Target: target, TimeLeft: timeLeft}})
	})

	now := time.Now()
	job.mu.Lock()
	job.CompletedAt = &now
	switch {
	case job.Status == JobStatusCancelled:
	case err == nil:
		job.Status = JobStatusCompleted
		job.Count = len(set)
	case biometric.KindOf(err) == biometric.KindCancelled:
		job.Status = JobStatusCancelled
	default:
		job.Status = JobStatusFailed
		job.Error = biometric.MessageOf(err)
		job.ErrorKind = string(biometric.KindOf(err))
	}
	status := job.Status
	job.mu.Unlock()

	switch status {
	case JobStatusCompleted:
		log.Info("enrollment capture completed", zap.Int("descriptors", len(set)))
		job.SendEvent(JobEvent{
			Type:    string(JobStatusCompleted),
			Message: fmt.Sprintf("captured %d face samples", len(set)),
			Data:    job.Snapshot(),
		})
	case JobStatusFailed:
		log.Warn("enrollment capture failed", zap.Error(err))
		job.SendEvent(JobEvent{Type: string(JobStatusFailed), Message: biometric.MessageOf(err), Data: job.Snapshot()})
	default:
		log.Info("enrollment capture cancelled")
	}
}

func (h *EnrollmentHandler) lookupJob(id string) SSEJob {
	job := h.jobManager.GetJob(id)
	if job == nil {
		return nil
	}
	return job
}

// jobFromURL resolves the job in the URL or writes a 404.
func (h *EnrollmentHandler) jobFromURL(w http.ResponseWriter, r *http.Request) *CaptureJob {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// Status returns the capture job state
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromURL(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams capture progress via SSE
func (h *EnrollmentHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.lookupJob, func(job SSEJob) any {
		return job.(*CaptureJob).Snapshot()
	})
}

// Submit registers the voter with the descriptors of a finished capture
func (h *EnrollmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromURL(w, r)
	if job == nil {
		return
	}

	var req SubmitEnrollmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	switch job.GetStatus() {
	case JobStatusPending, JobStatusRunning:
		respondKindError(w, h.logger, biometric.NewError(biometric.KindSessionBusy, "face capture still in progress", nil))
		return
	case JobStatusCancelled:
		respondKindError(w, h.logger, biometric.NewError(biometric.KindCancelled, "face capture was cancelled", nil))
		return
	}

	voter, err := job.enroller.Submit(r.Context(), req.Name, req.ExternalID)
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	h.jobManager.DeleteJob(job.ID)
	respondJSON(w, http.StatusCreated, newVoterResponse(voter))
}

// Cancel stops a capture and discards its descriptors
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromURL(w, r)
	if job == nil {
		return
	}

	job.Cancel()
	select {
	case <-job.Finished():
	case <-time.After(constants.DetectorFrameTimeoutSeconds * time.Second):
		h.logger.Warn("capture did not stop in time", zap.String("job_id", job.ID))
	}
	job.enroller.Reset()
	h.jobManager.DeleteJob(job.ID)
	w.WriteHeader(http.StatusNoContent)
}
