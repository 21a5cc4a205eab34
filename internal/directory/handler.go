package directory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"TEMPO-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/users", h.ListUsers)
	r.GET("/users/:user_id", h.GetUser)
	r.GET("/me", h.Me)

	// 代理人登録は admin のみ
	r.POST("/substitutes", auth.RequireRole("admin"), h.RegisterSubstitute)
	r.DELETE("/substitutes", auth.RequireRole("admin"), h.RemoveSubstitute)
}

func (h *Handler) ListUsers(c *gin.Context) {
	res, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetUser(c *gin.Context) {
	res, err := h.svc.FindUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Me(c *gin.Context) {
	res, err := h.svc.FindUser(c.Request.Context(), c.GetString(auth.CtxUserIDKey))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RegisterSubstitute(c *gin.Context) {
	var req RegisterSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if err := h.svc.RegisterSubstitute(c.Request.Context(), req); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveSubstitute(c *gin.Context) {
	managerID := c.Query("manager_id")
	substituteID := c.Query("substitute_id")
	if managerID == "" || substituteID == "" {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "manager_id and substitute_id are required"))
		return
	}
	if err := h.svc.RemoveSubstitute(c.Request.Context(), managerID, substituteID); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- helpers ----------

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
