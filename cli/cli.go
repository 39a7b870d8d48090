package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"myohand/config"
)

// Options 命令行参数
type Options struct {
	ConfigPath   string
	Port         string
	Broker       string
	SerialDevice string
	BusType      string
	LogLevel     string
}

// ParseFlags 解析命令行参数
func ParseFlags(args []string) (*Options, error) {
	opts := &Options{}
	fsFlags := flag.NewFlagSet("hand_controller", flag.ContinueOnError)
	fsFlags.StringVar(&opts.ConfigPath, "config", "config.yaml", "配置文件路径")
	fsFlags.StringVar(&opts.Port, "port", "", "Web 服务的端口")
	fsFlags.StringVar(&opts.Broker, "broker", "", "MQTT 代理地址")
	fsFlags.StringVar(&opts.SerialDevice, "serial", "", "舵机串口设备，例如 /dev/ttyUSB0")
	fsFlags.StringVar(&opts.BusType, "bus", "", "总线类型（dynamixel 或 sim）")
	fsFlags.StringVar(&opts.LogLevel, "log-level", "", "日志级别（debug, info, warn, error）")
	fsFlags.Usage = func() { printUsage(fsFlags) }
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func printUsage(fsFlags *flag.FlagSet) {
	out := fsFlags.Output()
	fmt.Fprintln(out, "EMG Prosthetic Hand Controller")
	fmt.Fprintln(out, "Usage:")
	fsFlags.PrintDefaults()
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Environment Variables:")
	fmt.Fprintln(out, "  WEB_PORT         Web 服务的端口")
	fmt.Fprintln(out, "  MQTT_BROKER      MQTT 代理地址")
	fmt.Fprintln(out, "  MQTT_PORT        MQTT 代理端口")
	fmt.Fprintln(out, "  SERIAL_DEVICE    舵机串口设备")
	fmt.Fprintln(out, "  BUS_TYPE         总线类型（dynamixel 或 sim）")
	fmt.Fprintln(out, "  LOG_LEVEL        日志级别")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  ./hand_controller -bus dynamixel -serial /dev/ttyUSB0")
	fmt.Fprintln(out, "  MQTT_BROKER=192.168.1.10 ./hand_controller -config hand.yaml")
}

// LoadEnv 加载 .env 文件；文件不存在时忽略
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		slog.Info("📄 已加载环境变量文件", "path", p)
	}
	return nil
}

// Apply 将命令行参数与环境变量覆盖到配置上，环境变量优先
func (o *Options) Apply(cfg *config.Config) {
	override(&cfg.Server.Port, o.Port, "WEB_PORT")
	override(&cfg.MQTT.Broker, o.Broker, "MQTT_BROKER")
	override(&cfg.Bus.Device, o.SerialDevice, "SERIAL_DEVICE")
	override(&cfg.Bus.Type, o.BusType, "BUS_TYPE")
	override(&cfg.Log.Level, o.LogLevel, "LOG_LEVEL")

	if envPort := os.Getenv("MQTT_PORT"); envPort != "" {
		if port, err := strconv.Atoi(envPort); err == nil {
			cfg.MQTT.Port = port
		} else {
			slog.Warn("⚠️ 忽略无效的 MQTT_PORT", "value", envPort)
		}
	}
}

func override(dst *string, flagValue, envKey string) {
	if flagValue != "" {
		*dst = flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}

// SetupLogger 按级别设置默认的结构化日志
func SetupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
