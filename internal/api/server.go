// Package api exposes weights inspection and verification over HTTP.
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/internal/version"
	"github.com/umbradev/umbra/pkg/darknet"
)

type Server struct {
	modelsDir string
	clock     func() time.Time
}

func NewServer(modelsDir string) *Server {
	return &Server{
		modelsDir: strings.TrimSpace(modelsDir),
		clock:     time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/models", s.handleListModels)
	e.POST("/v1/inspect", s.handleInspect)
	e.POST("/v1/verify", s.handleVerify)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Resolve().Version,
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.modelsDir == "" {
		return writeError(c, http.StatusInternalServerError, "server_error", "models directory not configured")
	}
	paths, err := discoverWeights(s.modelsDir)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	out := ModelList{
		Object: "list",
		Data:   make([]ModelInfo, 0, len(paths)),
	}
	for _, p := range paths {
		info := ModelInfo{
			ID:     modelName(p),
			Object: "model",
			File:   p,
		}
		if st, err := os.Stat(p); err == nil {
			info.SizeBytes = st.Size()
		}
		out.Data = append(out.Data, info)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleInspect(c *echo.Context) error {
	req, err := decodeJSON[InspectRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.File) == "" {
		return writeBadRequest(c, "file is required")
	}
	path, err := s.resolveWeights(req.File)
	if err != nil {
		return writeNotFound(c, err.Error())
	}

	f, err := darknet.Open(path)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	defer f.Close()

	return c.JSON(http.StatusOK, InspectResponse{
		Model:        modelName(path),
		File:         path,
		Version:      f.Header.Version(),
		Major:        f.Header.Major,
		Minor:        f.Header.Minor,
		Revision:     f.Header.Revision,
		Seen:         f.Header.Seen,
		Elements:     f.Elements(),
		PayloadBytes: int64(f.Elements()) * 4,
	})
}

func (s *Server) handleVerify(c *echo.Context) error {
	req, err := decodeJSON[VerifyRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Manifest) == "" {
		return writeBadRequest(c, "manifest is required")
	}
	if strings.TrimSpace(req.Weights) == "" {
		return writeBadRequest(c, "weights is required")
	}
	man, err := manifest.Load(req.Manifest)
	if err != nil {
		return writeBadRequest(c, fmt.Sprintf("manifest: %v", err))
	}
	path, err := s.resolveWeights(req.Weights)
	if err != nil {
		return writeNotFound(c, err.Error())
	}

	net := man.Build()
	report := VerifyResponse{
		ID:               newVerificationID(),
		Object:           "weights.verification",
		Model:            modelName(path),
		File:             path,
		ExpectedElements: net.ExpectedElements(),
		CreatedAt:        s.clock().Unix(),
	}

	f, err := darknet.Open(path)
	if err != nil {
		report.Problem = err.Error()
		return c.JSON(http.StatusOK, report)
	}
	defer f.Close()

	report.Version = f.Header.Version()
	report.PayloadElements = f.Elements()

	complete, err := darknet.Load(net, f)
	switch {
	case err != nil:
		report.Problem = err.Error()
	case !complete:
		report.Problem = "payload not fully consumed"
	default:
		report.OK = true
	}
	return c.JSON(http.StatusOK, report)
}

// resolveWeights turns a request's file field into a checkpoint path.
// Anything that looks like a path is used directly; bare names are
// resolved against the models directory, with or without the .weights
// extension.
func (s *Server) resolveWeights(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", fmt.Errorf("file is required")
	}
	if looksLikePath(file) {
		path := filepath.Clean(file)
		if !fileExists(path) {
			return "", fmt.Errorf("weights file %q not found", file)
		}
		return path, nil
	}
	if s.modelsDir == "" {
		return "", fmt.Errorf("models directory is required to resolve %q", file)
	}
	if resolved := resolveInDir(s.modelsDir, file); resolved != "" {
		return resolved, nil
	}
	return "", fmt.Errorf("model %q not found in %s", file, s.modelsDir)
}
