package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/mlclient"
	"go.uber.org/zap"
)

// Recognizer is the face recognition service as seen by the proxy endpoints.
type Recognizer interface {
	Verify(ctx context.Context, image []byte, threshold float64) (*mlclient.VerifyResult, error)
	Enroll(ctx context.Context, req mlclient.EnrollRequest) (*mlclient.EnrollResult, error)
}

// FaceHandler proxies verify and enroll requests to the recognition service
type FaceHandler struct {
	recognizer Recognizer
	employees  database.EmployeeStore
	threshold  float64
	logger     *zap.Logger
}

// NewFaceHandler creates a new face handler
func NewFaceHandler(recognizer Recognizer, employees database.EmployeeStore, threshold float64, logger *zap.Logger) *FaceHandler {
	if threshold <= 0 {
		threshold = constants.DefaultVerifyThreshold
	}
	return &FaceHandler{recognizer: recognizer, employees: employees, threshold: threshold, logger: logger}
}

type faceVerifyResponse struct {
	*mlclient.VerifyResult
	Name string `json:"name,omitempty"`
}

// Verify matches an uploaded face against enrolled employees
func (h *FaceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	threshold, ok := formThreshold(w, r, h.threshold)
	if !ok {
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	img, err := readImage(files[0], constants.MaxFrameDimension)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.recognizer.Verify(r.Context(), img, threshold)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	resp := faceVerifyResponse{VerifyResult: result}
	if result.Matched {
		if e, err := h.employees.Get(r.Context(), result.EmployeeID); err == nil {
			resp.Name = e.Name
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Enroll registers face photos for an existing employee
func (h *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	employeeID, err := strconv.ParseInt(r.FormValue("emp_id"), 10, 64)
	if err != nil || employeeID <= 0 {
		respondError(w, http.StatusBadRequest, "emp_id is required")
		return
	}
	if _, err := h.employees.Get(r.Context(), employeeID); err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}

	threshold, ok := formThreshold(w, r, constants.DefaultDuplicateThreshold)
	if !ok {
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files[]"]
	}
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh, constants.MaxEnrollDimension)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, img)
	}

	result, err := h.recognizer.Enroll(r.Context(), mlclient.EnrollRequest{
		EmployeeID:           employeeID,
		Images:               images,
		DenyIfExists:         formBool(r, "deny_if_exists", true),
		PreventDuplicateFace: formBool(r, "prevent_duplicate_face", true),
		Threshold:            threshold,
	})
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	h.logger.Info("Enrollment submitted",
		zap.Int64("employee_id", employeeID),
		zap.Int("images", len(images)),
		zap.String("status", result.Status))
	respondJSON(w, http.StatusOK, result)
}

func (h *FaceHandler) respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *mlclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		respondError(w, http.StatusConflict, apiErr.Message)
		return
	}
	h.logger.Warn("Recognition service request failed", zap.Error(err))
	respondError(w, http.StatusBadGateway, "recognition service unavailable")
}

// readImage loads an uploaded image and re-encodes it as a bounded JPEG.
func readImage(fh *multipart.FileHeader, maxSize int) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s", fh.Filename)
	}
	if !imageutil.IsImage(data) {
		return nil, fmt.Errorf("not an image: %s", fh.Filename)
	}
	normalized, err := imageutil.NormalizeJPEG(data, maxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid image: %s", fh.Filename)
	}
	return normalized, nil
}

// formThreshold reads an optional threshold in (0, 1].
func formThreshold(w http.ResponseWriter, r *http.Request, fallback float64) (float64, bool) {
	s := r.FormValue("threshold")
	if s == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > 1 {
		respondError(w, http.StatusBadRequest, "threshold must be in (0, 1]")
		return 0, false
	}
	return v, true
}

func formBool(r *http.Request, name string, fallback bool) bool {
	v, err := strconv.ParseBool(r.FormValue(name))
	if err != nil {
		return fallback
	}
	return v
}
