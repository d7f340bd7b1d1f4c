package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/pilar/internal/decode"
	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/service"
)

func (s *Server) root(c *gin.Context) {
	st := s.svc.Status()
	c.JSON(http.StatusOK, gin.H{
		"message":      "Pilar API is ready!",
		"model_loaded": st.Validated,
		"model_info": gin.H{
			"loaded":    st.Loaded,
			"validated": st.Validated,
			"source":    sourceOrUnknown(st.Loader.Source),
		},
		"endpoints": gin.H{
			"predict":      "/api/predict",
			"health":       "/health",
			"test":         "/api/test",
			"model_status": "/api/model/status",
		},
		"server":  "gin",
		"version": s.version,
	})
}

func (s *Server) health(c *gin.Context) {
	st := s.svc.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"model_loaded":    st.Loaded,
		"model_validated": st.Validated,
	})
}

func (s *Server) test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "API is working!",
		"model_loaded": s.svc.Ready(),
		"timestamp":    "OK",
	})
}

func (s *Server) modelStatus(c *gin.Context) {
	st := s.svc.Status()
	msg := "Model not loaded or validation failed"
	if st.Validated {
		msg = "Model loaded and validated"
	}
	data := gin.H{
		"loaded":    st.Loaded,
		"validated": st.Validated,
		"state":     st.Loader.State,
		"source":    sourceOrUnknown(st.Loader.Source),
		"reloads":   st.Loader.Reloads,
	}
	if st.Loader.LastError != "" {
		data["error"] = st.Loader.LastError
	}
	if m := st.Loader.Manifest; m != nil {
		categories := map[string]bool{}
		for _, class := range m.Classes {
			categories[m.Categories[class]] = true
		}
		cats := make([]string, 0, len(categories))
		for k := range categories {
			cats = append(cats, k)
		}
		data["waste_classes"] = m.Classes
		data["model_details"] = gin.H{
			"n_classes":        len(m.Classes),
			"threshold":        m.Threshold,
			"variant":          m.Variant,
			"feature_length":   m.FeatureLength,
			"version":          m.Version,
			"waste_categories": sortedStrings(cats),
		}
	}
	if comp := st.Loader.Components; comp != nil {
		data["components"] = comp
	}
	if st.Loader.LoadedAt != nil {
		data["loaded_at"] = st.Loader.LoadedAt
	}
	c.JSON(http.StatusOK, gin.H{"success": st.Validated, "message": msg, "data": data})
}

func (s *Server) predict(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout())
	defer cancel()

	if err := s.svc.EnsureReady(ctx); err != nil {
		s.fail(c, err)
		return
	}
	data, ok := s.readUpload(c)
	if !ok {
		return
	}

	res, err := s.svc.Classify(ctx, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("prediction served",
		"request_id", c.GetString("request_id"),
		"class", res.Prediction.WasteClass,
		"category", res.Prediction.Category,
		"confidence", engine.Round2(res.Prediction.Confidence),
		"cached", res.Cached,
		"elapsed", res.Elapsed,
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": lean(res)})
}

func (s *Server) predictDebug(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout())
	defer cancel()

	if err := s.svc.EnsureReady(ctx); err != nil {
		s.fail(c, err)
		return
	}
	data, ok := s.readUpload(c)
	if !ok {
		return
	}

	d, err := s.svc.Diagnose(ctx, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	body := lean(d.Result)
	body["debug"] = gin.H{
		"class":           d.Prediction.WasteClass,
		"class_index":     d.Prediction.ClassIndex,
		"raw_category":    d.Prediction.Category,
		"steps":           d.Diagnosis.Steps,
		"probabilities":   d.Diagnosis.Probabilities,
		"components":      d.Diagnosis.Components,
		"threshold":       d.Diagnosis.Threshold,
		"below_threshold": d.Diagnosis.BelowThreshold,
		"image":           d.Image,
		"load_id":         d.LoadID,
		"elapsed_ms":      d.Elapsed.Milliseconds(),
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": body})
}

func (s *Server) reload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*s.timeout())
	defer cancel()

	if err := s.svc.Reload(ctx); err != nil {
		s.log.Error("admin reload failed", "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"detail":  fmt.Sprintf("reload failed: %v", err),
			"data":    s.svc.Status(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.svc.Status()})
}

// readUpload extracts the image from the "file" field, or "image" for
// older clients, and applies the transport-level checks.
func (s *Server) readUpload(c *gin.Context) ([]byte, bool) {
	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = decode.DefaultLimits.MaxBytes
	}
	// Allow multipart framing on top of the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.badRequest(c, fmt.Sprintf("File terlalu besar (maksimal %dMB)", limit>>20))
			return nil, false
		}
		s.badRequest(c, "File gambar wajib diunggah (field 'file')")
		return nil, false
	}
	fh, err := c.FormFile("file")
	if err != nil {
		fh, err = c.FormFile("image")
	}
	if err != nil {
		s.badRequest(c, "File gambar wajib diunggah (field 'file')")
		return nil, false
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		s.badRequest(c, "File harus berupa gambar")
		return nil, false
	}
	if !decode.AllowedContentType(ct) {
		s.badRequest(c, fmt.Sprintf("Format file tidak didukung: %s", ct))
		return nil, false
	}
	if fh.Size > limit {
		s.badRequest(c, fmt.Sprintf("File terlalu besar (maksimal %dMB)", limit>>20))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "detail": "Error membaca file"})
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "detail": "Error membaca file"})
		return nil, false
	}
	return data, true
}

func (s *Server) badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "detail": detail})
}

// fail maps an error kind to its status code.
func (s *Server) fail(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= 500 {
		s.log.Error("prediction failed", "request_id", c.GetString("request_id"), "kind", errs.KindOf(err), "error", err)
	}
	c.JSON(status, gin.H{"success": false, "detail": detail})
}

func statusFor(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "Request timed out"
	}
	switch errs.KindOf(err) {
	case errs.InvalidInput:
		return http.StatusBadRequest, err.Error()
	case errs.NotReady, errs.ArtifactLoad:
		return http.StatusServiceUnavailable, "Model not ready - please wait for model to load"
	default:
		return http.StatusInternalServerError, "Model error: " + err.Error()
	}
}

func lean(res service.Result) gin.H {
	p := res.Prediction
	return gin.H{
		"wasteType":   p.WasteType,
		"category":    p.Category.Label(),
		"confidence":  engine.Round2(p.Confidence),
		"tips":        res.Tips,
		"description": res.Description,
	}
}
