package timeclock

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"TEMPO-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 打刻（本人）
	r.POST("/clock-in", h.ClockIn)
	r.POST("/clock-out", h.ClockOut)
	r.POST("/break-start", h.StartBreak)
	r.POST("/break-end", h.EndBreak)

	// 参照（本人）
	r.GET("/status", h.GetStatus)
	r.GET("/summaries/:date", h.GetDailySummary)
	r.GET("/timesheet", h.GetTimeSheet)
	r.GET("/timesheet/export", h.ExportTimesheet)

	// 手動修正（上長・管理者・代理人）
	r.POST("/entries", h.AddManualEntry)
	r.PATCH("/entries/:event_ulid", h.EditTimeEntry)
	r.DELETE("/entries/:event_ulid", h.DeleteTimeEntry)

	// チーム
	r.GET("/team/status", h.GetTeamStatus)
	r.GET("/team/members/:user_id/entries", h.GetTeamMemberEntries)
}

// ---------- handlers ----------

func (h *Handler) ClockIn(c *gin.Context)    { h.clockAction(c, h.svc.ClockIn) }
func (h *Handler) ClockOut(c *gin.Context)   { h.clockAction(c, h.svc.ClockOut) }
func (h *Handler) StartBreak(c *gin.Context) { h.clockAction(c, h.svc.StartBreak) }
func (h *Handler) EndBreak(c *gin.Context)   { h.clockAction(c, h.svc.EndBreak) }

func (h *Handler) clockAction(c *gin.Context, fn func(ctx context.Context, userID string, req ClockActionRequest) (EventResponse, error)) {
	var req ClockActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := fn(c.Request.Context(), actorID(c), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetStatus(c *gin.Context) {
	res, err := h.svc.GetStatus(c.Request.Context(), actorID(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetDailySummary(c *gin.Context) {
	res, err := h.svc.GetDailySummary(c.Request.Context(), actorID(c), c.Param("date"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetTimeSheet(c *gin.Context) {
	res, err := h.svc.GetTimeSheet(c.Request.Context(), actorID(c), c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportTimesheet(c *gin.Context) {
	user := actorID(c)
	from, to := c.Query("from"), c.Query("to")
	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		data, err := h.svc.ExportTimesheetXLSX(c.Request.Context(), user, from, to)
		if err != nil {
			c.JSON(ToHTTPStatus(err), errorFromErr(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="timesheet_%s_%s.xlsx"`, from, to))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	case "csv":
		data, err := h.svc.ExportTimesheetCSV(c.Request.Context(), user, from, to)
		if err != nil {
			c.JSON(ToHTTPStatus(err), errorFromErr(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="timesheet_%s_%s.csv"`, from, to))
		c.Data(http.StatusOK, "text/csv; charset=Shift_JIS", data)
	default:
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "format must be xlsx or csv"))
	}
}

func (h *Handler) AddManualEntry(c *gin.Context) {
	var req AddManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.AddManualEntry(c.Request.Context(), actorID(c), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/entries/"+res.EventULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) EditTimeEntry(c *gin.Context) {
	var req EditEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.EditTimeEntry(c.Request.Context(), actorID(c), c.Param("event_ulid"), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteTimeEntry(c *gin.Context) {
	var req DeleteEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "reason is required"))
		return
	}
	if err := h.svc.DeleteTimeEntry(c.Request.Context(), actorID(c), c.Param("event_ulid"), req.Reason); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetTeamStatus(c *gin.Context) {
	res, err := h.svc.GetTeamStatus(c.Request.Context(), actorID(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetTeamMemberEntries(c *gin.Context) {
	res, err := h.svc.GetTeamMemberEntries(c.Request.Context(), actorID(c),
		c.Param("user_id"), c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func actorID(c *gin.Context) string {
	return c.GetString(auth.CtxUserIDKey)
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
