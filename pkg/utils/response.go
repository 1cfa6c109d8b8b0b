package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 以 JSON 编码写出响应体。
// 状态码写出后编码失败无法补救，只能记录日志。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[response] encode failed: %v", err)
	}
}
