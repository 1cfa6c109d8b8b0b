package logs

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nsxzhou/dualmind/internal/store/sqlite"
	"github.com/nsxzhou/dualmind/pkg/utils"
)

// Querier 是日志查询端点依赖的存储契约。
type Querier interface {
	QueryRecords(ctx context.Context, q sqlite.RecordQuery) ([]sqlite.RecordWithSession, error)
}

// Handler 提供系统日志查询接口。
type Handler struct {
	store Querier
}

// New 创建日志处理器。
func New(store Querier) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册日志相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs", h.handleQuery)
}

// handleQuery 按可选的时间范围与搜索文本检索审计日志。
// 存储故障以结构化错误载荷返回，而不是传输层失败。
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	query := sqlite.RecordQuery{
		SearchText: r.URL.Query().Get("search_text"),
	}

	startTime, err := parseTimeParam(r.URL.Query().Get("start_time"))
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "error", "message": "invalid start_time: " + err.Error(),
		})
		return
	}
	query.StartTime = startTime

	endTime, err := parseTimeParam(r.URL.Query().Get("end_time"))
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "error", "message": "invalid end_time: " + err.Error(),
		})
		return
	}
	query.EndTime = endTime

	records, err := h.store.QueryRecords(r.Context(), query)
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}

	if records == nil {
		records = []sqlite.RecordWithSession{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   records,
	})
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
