package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"myohand/control"
	"myohand/define"
	"myohand/device"
)

// handleGetControl 获取控制状态
func (s *Server) handleGetControl(c *gin.Context) {
	c.JSON(http.StatusOK, define.ApiResponse{
		Status: "success",
		Data:   s.opts.Controller.Status(),
	})
}

// handleSetActive 激活/停用
func (s *Server) handleSetActive(c *gin.Context) {
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的激活请求："+err.Error())
		return
	}

	if _, ok := s.request(c, control.ActivateEvent{Active: *req.Active}); !ok {
		return
	}

	message := "系统已停用"
	if *req.Active {
		message = "系统已激活"
	}
	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: message,
		Data:    s.opts.Controller.Status(),
	})
}

// handleSetMode 切换控制模式
func (s *Server) handleSetMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的模式切换请求："+err.Error())
		return
	}

	mode, ok := define.ControlModeFromString(req.Mode)
	if !ok {
		badRequest(c, fmt.Sprintf("未知的控制模式 %s，可用模式：myo, fsr, manual", req.Mode))
		return
	}

	if _, ok := s.request(c, control.ModeEvent{Mode: mode}); !ok {
		return
	}

	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("控制模式已切换为 %s", mode),
		Data:    s.opts.Controller.Status(),
	})
}

// handleAltSensor 备用传感器读数
func (s *Server) handleAltSensor(c *gin.Context) {
	var req AltSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的传感器请求："+err.Error())
		return
	}

	intent, err := control.ParseAltSensor(req.Value, s.opts.AltSensorThreshold)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, ok := s.request(c, control.IntentEvent{Intent: intent})
	if !ok {
		return
	}
	respondIntent(c, outcome, fmt.Sprintf("传感器指令 %s", intent.Pose))
}

// handleManual 手动控制
func (s *Server) handleManual(c *gin.Context) {
	var cmd control.ManualCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "无效的手动控制请求："+err.Error())
		return
	}

	intent, err := cmd.Intent()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, ok := s.request(c, control.IntentEvent{Intent: intent})
	if !ok {
		return
	}
	respondIntent(c, outcome, fmt.Sprintf("执行器 %d 手动指令 %s", intent.ActuatorID, intent.Action))
}

// request 将事件交给控制循环并等待结果；失败时直接写入响应并返回 false
func (s *Server) request(c *gin.Context, ev control.Event) (control.Outcome, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	outcome, err := s.opts.Controller.Request(ctx, ev)
	if err == nil {
		return outcome, true
	}
	c.JSON(statusFor(err), define.ApiResponse{
		Status: "error",
		Error:  err.Error(),
	})
	return outcome, false
}

// respondIntent 按路由结果回复；未激活或模式不符时意图被丢弃，返回 409
func respondIntent(c *gin.Context, outcome control.Outcome, what string) {
	switch outcome {
	case control.OutcomeInactive, control.OutcomeWrongMode:
		c.JSON(http.StatusConflict, define.ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("%s 被忽略：%s", what, outcome),
			Data:   IntentResponse{Outcome: outcome.String()},
		})
		return
	}

	message := what + " 已执行"
	if outcome == control.OutcomeUnchanged {
		message = what + " 与当前目标相同，无需下发"
	}
	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: message,
		Data:    IntentResponse{Outcome: outcome.String()},
	})
}

// statusFor 将控制错误映射为 HTTP 状态码
func statusFor(err error) int {
	var hw *device.HardwareError
	switch {
	case errors.Is(err, control.ErrQueueFull), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrUnknownActuator):
		return http.StatusNotFound
	case errors.Is(err, device.ErrActuatorFaulted), errors.As(err, &hw):
		return http.StatusConflict
	case errors.Is(err, device.ErrCommunication), errors.Is(err, control.ErrRetriesExhausted):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, define.ApiResponse{
		Status: "error",
		Error:  message,
	})
}
