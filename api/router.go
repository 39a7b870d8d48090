package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"myohand/control"
	"myohand/device"
)

// Controller 控制循环的对外接口，由 control.Loop 实现
type Controller interface {
	Request(ctx context.Context, ev control.Event) (control.Outcome, error)
	Status() control.Status
}

// Actuators 执行器只读查询，由 device.Dispatcher 实现
type Actuators interface {
	Snapshot() []device.ActuatorStatus
	ReadPosition(ctx context.Context, id int) (int32, device.Result, error)
}

// FaultHistory 故障历史查询，由 storage.FaultDB 实现
type FaultHistory interface {
	History(limit int) ([]device.Fault, error)
}

// Simulator 可切换姿态的模拟信号源，由 emg.SimulatedSource 实现
type Simulator interface {
	SetFist(fist bool)
}

// Options 服务器依赖
type Options struct {
	Controller Controller
	Actuators  Actuators
	Poses      *device.PoseTable
	Faults     FaultHistory // 可为 nil
	Simulator  Simulator    // 仅模拟信号源时提供

	// AltSensorThreshold 备用传感器模拟量的握紧阈值
	AltSensorThreshold float64

	// Components 附加在系统状态中的组件统计（分类器、MQTT 等）
	Components map[string]func() any

	// RequestTimeout 等待控制循环处理事件的最长时间
	RequestTimeout time.Duration
}

// Server HTTP 控制接口
type Server struct {
	opts      Options
	startTime time.Time
	version   string
}

// NewServer 创建服务器实例
func NewServer(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	return &Server{
		opts:      opts,
		startTime: time.Now(),
		version:   "1.0.0",
	}
}

// NewEngine 创建 Gin 引擎并按需启用 CORS
func NewEngine(enableCORS bool) *gin.Engine {
	r := gin.Default()
	if enableCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"}, // 允许的域，*表示允许所有
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	return r
}

// SetupRoutes 设置 API 路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		// 控制面路由
		ctl := v1.Group("/control")
		{
			ctl.GET("", s.handleGetControl)            // 获取控制状态
			ctl.POST("/active", s.handleSetActive)     // 激活/停用
			ctl.POST("/mode", s.handleSetMode)         // 切换控制模式
			ctl.POST("/alt-sensor", s.handleAltSensor) // 备用传感器读数
			ctl.POST("/manual", s.handleManual)        // 手动控制
		}

		// 执行器路由
		actuators := v1.Group("/actuators")
		{
			actuators.GET("", s.handleGetActuators)             // 获取所有执行器状态
			actuators.GET("/:id/position", s.handleGetPosition) // 读取当前位置
			actuators.POST("/:id/reset", s.handleResetFault)    // 复位故障
		}

		v1.GET("/poses", s.handleGetPoses)         // 获取姿态映射表
		v1.GET("/faults", s.handleGetFaultHistory) // 获取故障历史

		v1.POST("/signal/simulate", s.handleSimulate) // 切换模拟信号姿态

		// 系统管理路由
		system := v1.Group("/system")
		{
			system.GET("/status", s.handleGetSystemStatus) // 获取系统状态
			system.GET("/health", s.handleHealthCheck)     // 健康检查
		}
	}
}
