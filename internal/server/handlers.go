package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"bookdigest/internal/chat"
	"bookdigest/internal/domain"
	"bookdigest/internal/langdetect"
	"bookdigest/internal/render"
	"bookdigest/internal/summary"

	"github.com/gin-gonic/gin"
)

const (
	formatMarkdown   = "markdown"
	formatPrint      = "print"
	formatSpeech     = "speech"
	formatHighlights = "highlights"
	formatLanguage   = "language"
)

type summaryResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content,omitempty"`
}

func newSummaryResponse(s domain.Summary, withContent bool) summaryResponse {
	resp := summaryResponse{
		ID:        s.ID,
		FileName:  s.FileName,
		Style:     s.Style,
		CreatedAt: s.CreatedAt,
	}
	if withContent {
		resp.Content = s.Content
	}
	return resp
}

// GET /healthz
func (s *Server) health(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.log.ErrorContext(c.Request.Context(), "Health check failed",
			"error", err)
		abortWithError(c, http.StatusServiceUnavailable, "Database is unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/summaries
func (s *Server) listSummaries(c *gin.Context) {
	summaries, err := s.db.ListUserSummaries(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	data := make([]summaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		data = append(data, newSummaryResponse(sum, false))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

type createSummaryRequest struct {
	FileName string `json:"fileName"`
	Style    string `json:"style" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// POST /api/summaries
func (s *Server) createSummary(c *gin.Context) {
	var req createSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	sum, err := s.db.AddSummary(c.Request.Context(), domain.Summary{
		UserID:   currentUser(c),
		FileName: req.FileName,
		Style:    strings.ToLower(strings.TrimSpace(req.Style)),
		Content:  req.Content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSummaryResponse(sum, false))
}

// GET /api/summaries/:id
func (s *Server) getSummary(c *gin.Context) {
	sum, _, err := s.library.Open(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil && !errors.Is(err, summary.ErrMalformedDocument) {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSummaryResponse(sum, true))
}

// DELETE /api/books/:fileName
func (s *Server) deleteBook(c *gin.Context) {
	deleted, err := s.db.DeleteBook(c.Request.Context(), currentUser(c), c.Param("fileName"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GET /api/summaries/:id/:format
func (s *Server) renderSummary(c *gin.Context) {
	sum, doc, err := s.library.Open(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil && !errors.Is(err, summary.ErrMalformedDocument) {
		s.fail(c, err)
		return
	}

	s.respondFormat(c, c.Param("format"), sum, doc)
}

type renderRequest struct {
	Style    string `json:"style"`
	Content  string `json:"content" binding:"required"`
	FileName string `json:"fileName"`
}

// POST /api/render/:format
func (s *Server) renderContent(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	sum := domain.Summary{
		FileName: req.FileName,
		Style:    strings.ToLower(strings.TrimSpace(req.Style)),
		Content:  req.Content,
	}

	doc, err := s.library.Document(c.Request.Context(), sum)
	if err != nil && !errors.Is(err, summary.ErrMalformedDocument) {
		s.fail(c, err)
		return
	}

	s.respondFormat(c, c.Param("format"), sum, doc)
}

// respondFormat writes one projection of a summary. doc is nil when the
// content could not be parsed: Markdown and print then fall back to the raw
// content, the other formats answer 422.
func (s *Server) respondFormat(c *gin.Context, format string, sum domain.Summary, doc *summary.Document) {
	switch format {
	case formatMarkdown:
		name := render.Filename(doc.DisplayTitle(sum.FileName), sum.Style)
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

		if doc == nil {
			c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(sum.Content))
			return
		}

		md, err := s.renderer.Markdown(doc, sum.FileName)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))

	case formatPrint:
		s.respondHTML(c, sum, doc)

	case formatSpeech:
		if doc == nil {
			s.fail(c, summary.ErrMalformedDocument)
			return
		}

		script, err := s.renderer.Speech(doc, sum.FileName)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"script": script})

	case formatHighlights:
		if doc == nil {
			s.fail(c, summary.ErrMalformedDocument)
			return
		}

		highlights, err := s.renderer.Highlights(doc, sum.FileName)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": highlights})

	case formatLanguage:
		var lang langdetect.Language
		if doc != nil {
			lang = langdetect.DetectDocument(doc)
		} else {
			lang = langdetect.DetectText(sum.Content)
		}

		c.JSON(http.StatusOK, gin.H{
			"language":    lang,
			"label":       s.reg.LanguageLabel(string(lang)),
			"suggestions": s.reg.Suggestions(string(lang)),
		})

	default:
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("Unknown format %q", format))
	}
}

func (s *Server) respondHTML(c *gin.Context, sum domain.Summary, doc *summary.Document) {
	if doc == nil {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(sum.Content))
		return
	}

	html, err := s.renderer.HTML(doc, sum.FileName)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

type summaryIDRequest struct {
	SummaryID string `json:"summaryId" binding:"required"`
}

// POST /api/export/readwise
func (s *Server) exportReadwise(c *gin.Context) {
	var req summaryIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	count, err := s.library.ExportReadwise(c.Request.Context(), currentUser(c), req.SummaryID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GET /api/settings/readwise
func (s *Server) readwiseSettings(c *gin.Context) {
	profile, err := s.db.GetProfile(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": profile.HasReadwise(), "autoSync": profile.AutoSync})
}

type readwiseSettingsRequest struct {
	Token    string `json:"token"`
	AutoSync *bool  `json:"autoSync"`
}

// PUT /api/settings/readwise
func (s *Server) saveReadwiseSettings(c *gin.Context) {
	var req readwiseSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	if token := strings.TrimSpace(req.Token); token != "" {
		if err := s.readwise.Validate(ctx, token); err != nil {
			s.fail(c, err)
			return
		}
		if err := s.db.SetReadwiseToken(ctx, userID, token); err != nil {
			s.fail(c, err)
			return
		}
	} else if req.AutoSync == nil {
		abortWithError(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if req.AutoSync != nil {
		if err := s.db.SetAutoSync(ctx, userID, *req.AutoSync); err != nil {
			s.fail(c, err)
			return
		}
	}

	s.readwiseSettings(c)
}

// DELETE /api/settings/readwise
func (s *Server) clearReadwiseSettings(c *gin.Context) {
	if err := s.db.ClearReadwiseToken(c.Request.Context(), currentUser(c)); err != nil {
		s.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// POST /api/share
func (s *Server) share(c *gin.Context) {
	var req summaryIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	sh, err := s.db.CreateShare(c.Request.Context(), currentUser(c), req.SummaryID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": sh.Token, "url": s.baseURL + "/s/" + sh.Token})
}

// GET /s/:token
func (s *Server) sharedSummary(c *gin.Context) {
	sh, err := s.db.GetShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}

	sum := domain.Summary{
		ID:        sh.SummaryID,
		UserID:    sh.UserID,
		FileName:  sh.FileName,
		Style:     sh.Style,
		Content:   sh.Content,
		CreatedAt: sh.CreatedAt,
	}

	doc, err := s.library.Document(c.Request.Context(), sum)
	if err != nil && !errors.Is(err, summary.ErrMalformedDocument) {
		s.fail(c, err)
		return
	}

	s.respondHTML(c, sum, doc)
}

type chatRequest struct {
	SummaryID string         `json:"summaryId" binding:"required"`
	Messages  []chat.Message `json:"messages"`
}

// POST /api/chat/summary
func (s *Server) chat(c *gin.Context) {
	if s.assistant == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()

	sum, doc, err := s.library.Open(ctx, currentUser(c), req.SummaryID)
	if err != nil {
		s.fail(c, err)
		return
	}

	answer, err := s.assistant.Answer(ctx, chat.Conversation{
		Document: doc,
		Title:    sum.FileName,
		Messages: req.Messages,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
