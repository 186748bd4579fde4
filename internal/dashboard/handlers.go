package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alignstudio/internal/inference"
	"alignstudio/internal/report"
	"alignstudio/internal/telemetry"
	"alignstudio/pkg/types"
)

func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := telemetry.ListRuns(s.logDir)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleEvents(c *gin.Context) {
	runID := c.Param("id")
	reader := telemetry.NewReader(s.logDir, runID)
	if !reader.Exists() {
		s.failMsg(c, http.StatusNotFound, "run "+runID+" not found")
		return
	}

	var events []types.RunEvent
	var err error
	if tail := c.Query("tail"); tail != "" {
		n, convErr := strconv.Atoi(tail)
		if convErr != nil || n < 1 {
			s.failMsg(c, http.StatusBadRequest, "tail must be a positive integer")
			return
		}
		events, err = reader.Tail(n)
	} else {
		events, err = reader.ReadAll()
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		// A run that has not logged yet serves an empty list, not 404.
		events = []types.RunEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "events": events})
}

func (s *Server) handleSummary(c *gin.Context) {
	runID := c.Param("id")
	events, ok := s.readRun(c, runID)
	if !ok {
		return
	}
	summary, err := report.Summarize(runID, events)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// seriesResponse is shaped for direct consumption by chart widgets:
// parallel arrays indexed by step.
type seriesResponse struct {
	RunID        string    `json:"run_id"`
	Steps        []int     `json:"steps"`
	Loss         []float64 `json:"loss"`
	LearningRate []float64 `json:"learning_rate"`
	RewardMargin []float64 `json:"reward_margin,omitempty"`
}

func (s *Server) handleSeries(c *gin.Context) {
	runID := c.Param("id")
	events, ok := s.readRun(c, runID)
	if !ok {
		return
	}

	resp := seriesResponse{RunID: runID}
	margins := make([]float64, 0, len(events))
	haveMargin := false
	for _, e := range events {
		resp.Steps = append(resp.Steps, e.Step)
		resp.Loss = append(resp.Loss, e.Loss)
		resp.LearningRate = append(resp.LearningRate, e.LearningRate)
		if e.RewardMargin != nil {
			margins = append(margins, *e.RewardMargin)
			haveMargin = true
		} else {
			margins = append(margins, 0)
		}
	}
	if haveMargin {
		resp.RewardMargin = margins
	}
	c.JSON(http.StatusOK, resp)
}

type compareRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	AdapterPath string `json:"adapter_path" binding:"required"`
	// MaxNewTokens optionally overrides the default budget.
	MaxNewTokens int `json:"max_new_tokens"`
}

type compareResponse struct {
	Prompt     string `json:"prompt"`
	Base       string `json:"base"`
	Aligned    string `json:"aligned"`
	DurationMS int64  `json:"duration_ms"`
}

// handleCompare generates the base and aligned responses for one
// prompt so the arena can show them side by side.
func (s *Server) handleCompare(c *gin.Context) {
	if s.generator == nil {
		s.failMsg(c, http.StatusServiceUnavailable, "comparison generator not configured")
		return
	}
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failMsg(c, http.StatusBadRequest, "prompt and adapter_path are required")
		return
	}

	params := inference.DefaultGenerationParams()
	if req.MaxNewTokens > 0 {
		params.MaxNewTokens = req.MaxNewTokens
	}

	start := time.Now()
	base, err := s.generator.Generate(c.Request.Context(), inference.Request{
		ModelName: s.modelName,
		Prompt:    req.Prompt,
		Params:    params,
	})
	if err != nil {
		s.fail(c, http.StatusBadGateway, err)
		return
	}
	aligned, err := s.generator.Generate(c.Request.Context(), inference.Request{
		ModelName:   s.modelName,
		AdapterPath: req.AdapterPath,
		Prompt:      req.Prompt,
		Params:      params,
	})
	if err != nil {
		s.fail(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, compareResponse{
		Prompt:     req.Prompt,
		Base:       base.Text,
		Aligned:    aligned.Text,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// readRun loads a run's events for the aggregate endpoints: an unknown
// run is a 404, a run that exists but has not logged yet is 204.
func (s *Server) readRun(c *gin.Context, runID string) ([]types.RunEvent, bool) {
	reader := telemetry.NewReader(s.logDir, runID)
	if !reader.Exists() {
		s.failMsg(c, http.StatusNotFound, "run "+runID+" not found")
		return nil, false
	}
	events, err := reader.ReadAll()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return nil, false
	}
	if len(events) == 0 {
		c.Status(http.StatusNoContent)
		return nil, false
	}
	return events, true
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) failMsg(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}
