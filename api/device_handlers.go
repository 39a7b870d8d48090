package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"myohand/control"
	"myohand/define"
)

// handleGetActuators 获取所有执行器状态
func (s *Server) handleGetActuators(c *gin.Context) {
	actuators := s.opts.Actuators.Snapshot()
	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data: ActuatorListResponse{
			Actuators: actuators,
			Total:     len(actuators),
		},
	})
}

// handleGetPosition 读取执行器当前位置
func (s *Server) handleGetPosition(c *gin.Context) {
	id, ok := actuatorID(c)
	if !ok {
		return
	}

	pos, _, err := s.opts.Actuators.ReadPosition(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), define.ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data:   PositionResponse{ID: id, Position: pos},
	})
}

// handleResetFault 复位执行器故障
func (s *Server) handleResetFault(c *gin.Context) {
	id, ok := actuatorID(c)
	if !ok {
		return
	}

	if _, ok := s.request(c, control.ResetFaultEvent{ActuatorID: id}); !ok {
		return
	}

	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("执行器 %d 故障已复位", id),
	})
}

// handleGetPoses 获取姿态映射表
func (s *Server) handleGetPoses(c *gin.Context) {
	poses := make(map[string][]define.ActuatorTarget)
	for _, p := range define.KnownPoses {
		if targets, ok := s.opts.Poses.Targets(p); ok {
			poses[p.String()] = targets
		}
	}
	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data:   PoseTableResponse{Poses: poses},
	})
}

// handleGetFaultHistory 获取故障历史
func (s *Server) handleGetFaultHistory(c *gin.Context) {
	if s.opts.Faults == nil {
		c.JSON(http.StatusOK, define.ApiResponse{
			Status: "success",
			Data:   FaultHistoryResponse{},
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		badRequest(c, "无效的 limit 参数："+c.Query("limit"))
		return
	}

	faults, err := s.opts.Faults.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, define.ApiResponse{
			Status: "error",
			Error:  "读取故障历史失败：" + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data:   FaultHistoryResponse{Faults: faults, Total: len(faults)},
	})
}

func actuatorID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "无效的执行器 ID："+c.Param("id"))
		return 0, false
	}
	return id, true
}
