package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"myohand/api"
	"myohand/classifier"
	"myohand/cli"
	"myohand/communication"
	"myohand/config"
	"myohand/control"
	"myohand/define"
	"myohand/device"
	"myohand/device/models"
	"myohand/emg"
	"myohand/posestate"
	"myohand/storage"
)

func main() {
	opts, err := cli.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if err := cli.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "加载环境变量失败：%v\n", err)
		os.Exit(1)
	}

	cfg, err := loadOrCreateConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败：%v\n", err)
		os.Exit(1)
	}
	opts.Apply(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效：%v\n", err)
		os.Exit(1)
	}
	cli.SetupLogger(cfg.Log.Level)
	logConfig(cfg)

	if err := run(cfg); err != nil {
		slog.Error("❌ 程序异常退出", "error", err)
		os.Exit(1)
	}
	slog.Info("👋 程序已退出")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 执行器总线
	models.RegisterBusTypes()
	bus, err := device.CreateBus(cfg.Bus)
	if err != nil {
		return err
	}
	if err := bus.Open(); err != nil {
		return fmt.Errorf("打开总线失败：%w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			slog.Warn("⚠️ 关闭总线失败", "error", err)
		}
	}()

	faults, err := storage.OpenFaultDB(cfg.Storage.FaultDir)
	if err != nil {
		return err
	}
	defer faults.Close()

	dispatcher, err := device.NewDispatcher(bus, cfg.Actuators, faults)
	if err != nil {
		return err
	}

	setup := device.SetupOptions{
		OperatingMode:       device.OPERATING_MODE_EXTENDED_POSITION,
		ProfileAcceleration: cfg.Bus.ProfileAcceleration,
		ProfileVelocity:     cfg.Bus.ProfileVelocity,
	}
	if err := dispatcher.Setup(ctx, setup); err != nil {
		return fmt.Errorf("执行器初始化失败：%w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			slog.Warn("⚠️ 关闭执行器扭矩失败", "error", err)
		}
	}()

	poses, err := device.NewPoseTable(cfg.Poses)
	if err != nil {
		return err
	}
	slog.Info("🖐️ 姿态映射已加载", "poses", poses.Poses())

	// 采集与分类
	size, stride, err := emg.WindowParams(cfg.Signal.WindowMs, cfg.Signal.SampleRateHz, cfg.Signal.Overlap)
	if err != nil {
		return err
	}
	channel := posestate.New(define.IdlePose)
	adapter := classifier.NewAdapter(loadPredictor(cfg, size), channel, cfg.Classifier.History)
	buffer, err := emg.NewWindowBuffer(size, stride, func(w emg.Window) {
		adapter.ClassifyWindow(w)
	})
	if err != nil {
		return err
	}
	slog.Info("🪟 滑动窗口", "size", buffer.Size(), "stride", buffer.Stride())

	source, simulator, closeSource, err := openSource(cfg.Signal)
	if err != nil {
		return err
	}
	defer closeSource()

	// 控制面
	var (
		mqttClient *communication.MQTTClient
		sink       control.IntentSink
	)
	if cfg.MQTT.Enabled {
		mqttClient = communication.NewMQTTClient(cfg.MQTT, cfg.Control.AltSensorThreshold)
		sink = mqttClient
	}

	// 重试间隔不短于一个轮询周期
	backoff := max(cfg.Retry.Backoff, cfg.Control.PollInterval)
	router := control.NewRouter(control.NewArbiter(), poses, dispatcher, control.RouterOptions{
		Retry: control.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: backoff},
		Setup: setup,
		Sink:  sink,
	})
	loop := control.NewLoop(channel, router, cfg.Control.PollInterval, cfg.Control.QueueSize)

	if mqttClient != nil {
		mqttClient.Bind(loop)
		// 连接失败时客户端会在后台持续重试
		if err := mqttClient.Connect(ctx); err != nil {
			slog.Warn("⚠️ MQTT 暂不可用，继续以 HTTP 控制运行", "error", err)
		}
		defer mqttClient.Disconnect()
	}

	// HTTP 服务
	components := map[string]func() any{
		"classifier": func() any { return adapter.Stats() },
		"window":     func() any { return buffer.Stats() },
	}
	if mqttClient != nil {
		components["mqtt"] = func() any { return mqttClient.Stats() }
	}
	serverOpts := api.Options{
		Controller:         loop,
		Actuators:          dispatcher,
		Poses:              poses,
		Faults:             faults,
		AltSensorThreshold: cfg.Control.AltSensorThreshold,
		Components:         components,
	}
	if simulator != nil {
		serverOpts.Simulator = simulator
	}

	gin.SetMode(gin.ReleaseMode)
	engine := api.NewEngine(cfg.Server.EnableCORS)
	api.NewServer(serverOpts).SetupRoutes(engine)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runAcquisition(gctx, source, buffer.Add)
	})
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("🚀 HTTP 服务已启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务异常：%w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("🛑 正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runAcquisition 运行信号源。采集失败只记录日志，控制面继续运行，
// 姿态通道保留最后一次发布的值。
func runAcquisition(ctx context.Context, source emg.Source, sink func(emg.Sample)) error {
	err := source.Run(ctx, sink)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		slog.Info("📴 信号采集已停止")
	default:
		slog.Error("❌ 信号采集失败，姿态保持最后一次输出", "error", err)
	}
	return nil
}

// logConfig 打印服务配置
func logConfig(cfg *config.Config) {
	slog.Info("🔧 服务配置",
		"bus", cfg.Bus.Type,
		"device", cfg.Bus.Device,
		"actuators", len(cfg.Actuators),
		"web_port", cfg.Server.Port,
		"mqtt", cfg.MQTT.Enabled,
		"broker", cfg.MQTT.Broker,
		"window_ms", cfg.Signal.WindowMs,
		"overlap", cfg.Signal.Overlap,
	)
}

func loadOrCreateConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 配置文件不存在，创建默认配置
		cfg := config.GetDefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return nil, fmt.Errorf("保存默认配置失败：%w", err)
		}
		slog.Info("📝 创建默认配置文件", "path", configPath)
		return cfg, nil
	}

	return config.LoadConfig(configPath)
}

// loadPredictor 加载分类模型；模型不可用时返回 nil，分类器始终输出空闲姿态
func loadPredictor(cfg *config.Config, windowSize int) classifier.Predictor {
	if cfg.Classifier.ModelPath == "" {
		slog.Warn("⚠️ 未配置分类模型，姿态保持空闲")
		return nil
	}
	model, err := classifier.LoadLinearModel(cfg.Classifier.ModelPath)
	if err != nil {
		slog.Warn("⚠️ 分类模型不可用，姿态保持空闲", "path", cfg.Classifier.ModelPath, "error", err)
		return nil
	}
	if want := windowSize * cfg.Signal.Channels; model.Features() != want {
		slog.Warn("⚠️ 模型特征长度与窗口不一致，分类将失败", "model", model.Features(), "window", want)
	}
	slog.Info("🧠 分类模型已加载", "path", cfg.Classifier.ModelPath, "features", model.Features())
	return model
}

// openSource 按配置选择回放或模拟信号源
func openSource(cfg config.SignalConfig) (emg.Source, *emg.SimulatedSource, func(), error) {
	if cfg.Replay == "" {
		sim := emg.NewSimulatedSource(cfg.Channels, cfg.SampleRateHz)
		return sim, sim, func() {}, nil
	}

	f, err := os.Open(cfg.Replay)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("打开回放文件失败：%w", err)
	}
	slog.Info("📼 使用录制数据回放", "path", cfg.Replay)
	return emg.NewReplaySource(f, cfg.Channels, cfg.SampleRateHz), nil, func() { f.Close() }, nil
}
