package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"myohand/define"
	"myohand/device"
)

// handleGetSystemStatus 获取系统状态
func (s *Server) handleGetSystemStatus(c *gin.Context) {
	components := make(map[string]any, len(s.opts.Components))
	for name, stats := range s.opts.Components {
		components[name] = stats()
	}

	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data: SystemStatusResponse{
			Control:    s.opts.Controller.Status(),
			Components: components,
			BusTypes:   device.GetSupportedBusTypes(),
			Uptime:     time.Since(s.startTime),
		},
	})
}

// handleHealthCheck 健康检查：任一执行器处于故障锁定时返回 503
func (s *Server) handleHealthCheck(c *gin.Context) {
	status := "healthy"
	for _, a := range s.opts.Actuators.Snapshot() {
		if a.Faulted {
			status = "degraded"
			break
		}
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, define.ApiResponse{
		Status: "success",
		Data: HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   s.version,
		},
	})
}

// handleSimulate 切换模拟信号源输出的姿态
func (s *Server) handleSimulate(c *gin.Context) {
	if s.opts.Simulator == nil {
		c.JSON(http.StatusConflict, define.ApiResponse{
			Status: "error",
			Error:  "当前信号源不是模拟信号源",
		})
		return
	}

	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的模拟请求："+err.Error())
		return
	}

	s.opts.Simulator.SetFist(*req.Fist)
	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("模拟信号已切换为 fist=%t", *req.Fist),
	})
}
