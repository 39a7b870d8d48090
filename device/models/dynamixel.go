package models

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"myohand/config"
	"myohand/device"
)

// serialPort 总线依赖的串口能力，serial.Port 满足该接口
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// DynamixelBus 通过 USB 串口适配器访问 Dynamixel 协议 2.0 舵机
type DynamixelBus struct {
	device   string
	baudRate int
	timeout  time.Duration

	mu   sync.Mutex // 半双工总线，同一时刻只能有一个事务
	port serialPort
	open func(device string, mode *serial.Mode) (serialPort, error)
}

// NewDynamixelBus 创建 Dynamixel 总线
func NewDynamixelBus(cfg config.BusConfig) (device.Bus, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("缺少串口设备配置")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &DynamixelBus{
		device:   cfg.Device,
		baudRate: cfg.BaudRate,
		timeout:  timeout,
		open: func(name string, mode *serial.Mode) (serialPort, error) {
			return serial.Open(name, mode)
		},
	}, nil
}

// Open 打开串口
func (b *DynamixelBus) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port != nil {
		return nil
	}
	port, err := b.open(b.device, &serial.Mode{BaudRate: b.baudRate})
	if err != nil {
		return fmt.Errorf("打开串口 %s 失败：%w", b.device, err)
	}
	if err := port.SetReadTimeout(b.timeout); err != nil {
		port.Close()
		return fmt.Errorf("设置串口读超时失败：%w", err)
	}
	b.port = port
	slog.Info("🔌 串口已打开", "device", b.device, "baud", b.baudRate)
	return nil
}

// Close 关闭串口
func (b *DynamixelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

func (b *DynamixelBus) SetTorque(ctx context.Context, id int, enable bool) error {
	var v byte
	if enable {
		v = 1
	}
	return b.write(ctx, id, ADDR_TORQUE_ENABLE, []byte{v})
}

func (b *DynamixelBus) SetOperatingMode(ctx context.Context, id int, mode byte) error {
	return b.write(ctx, id, ADDR_OPERATING_MODE, []byte{mode})
}

// SetProfile 加速度与速度寄存器相邻，分两次写入
func (b *DynamixelBus) SetProfile(ctx context.Context, id int, acceleration, velocity uint32) error {
	if err := b.write(ctx, id, ADDR_PROFILE_ACCELERATION, binary.LittleEndian.AppendUint32(nil, acceleration)); err != nil {
		return err
	}
	return b.write(ctx, id, ADDR_PROFILE_VELOCITY, binary.LittleEndian.AppendUint32(nil, velocity))
}

func (b *DynamixelBus) SetGoalPosition(ctx context.Context, id int, position int32) error {
	return b.write(ctx, id, ADDR_GOAL_POSITION, binary.LittleEndian.AppendUint32(nil, uint32(position)))
}

func (b *DynamixelBus) ReadPosition(ctx context.Context, id int) (int32, error) {
	status, err := b.transact(ctx, id, INST_READ, readParams(ADDR_PRESENT_POSITION, 4))
	if err != nil {
		return 0, err
	}
	if len(status.Params) != 4 {
		return 0, fmt.Errorf("%w：读取位置返回 %d 字节", device.ErrCommunication, len(status.Params))
	}
	return int32(binary.LittleEndian.Uint32(status.Params)), nil
}

func (b *DynamixelBus) write(ctx context.Context, id int, addr uint16, data []byte) error {
	_, err := b.transact(ctx, id, INST_WRITE, writeParams(addr, data))
	return err
}

// transact 发送一个指令包并等待对应执行器的状态包
func (b *DynamixelBus) transact(ctx context.Context, id int, inst byte, params []byte) (statusPacket, error) {
	if id < 0 || id > 252 {
		return statusPacket{}, fmt.Errorf("%w：%d", device.ErrUnknownActuator, id)
	}
	if err := ctx.Err(); err != nil {
		return statusPacket{}, fmt.Errorf("%w：%w", device.ErrCommunication, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return statusPacket{}, fmt.Errorf("%w：串口未打开", device.ErrCommunication)
	}
	if err := b.port.ResetInputBuffer(); err != nil {
		return statusPacket{}, fmt.Errorf("%w：%w", device.ErrCommunication, err)
	}
	if _, err := b.port.Write(encodeInstruction(byte(id), inst, params)); err != nil {
		return statusPacket{}, fmt.Errorf("%w：写串口失败：%w", device.ErrCommunication, err)
	}

	deadline := time.Now().Add(b.timeout)
	var rx []byte
	for {
		status, err := b.readStatus(ctx, deadline, &rx)
		if err != nil {
			return statusPacket{}, err
		}
		if int(status.ID) != id {
			slog.Debug("🔁 忽略其他执行器的状态包", "expected", id, "got", status.ID)
			continue
		}
		if err := statusError(id, status.Error); err != nil {
			return statusPacket{}, err
		}
		return status, nil
	}
}

// readStatus 从串口读取下一个完整的状态包，rx 保存已读取但尚未解析的字节；调用方需持有 b.mu
func (b *DynamixelBus) readStatus(ctx context.Context, deadline time.Time, rx *[]byte) (statusPacket, error) {
	buf := *rx
	defer func() { *rx = buf }()
	chunk := make([]byte, 64)
	for {
		// 丢弃包头之前的噪声
		if i := bytes.Index(buf, packetHeader); i > 0 {
			buf = buf[i:]
		} else if i < 0 && len(buf) > len(packetHeader) {
			buf = buf[len(buf)-len(packetHeader)+1:]
		}

		if total, ok := frameLength(buf); ok && bytes.HasPrefix(buf, packetHeader) && len(buf) >= total {
			status, err := decodeStatus(buf[:total])
			buf = buf[total:]
			if err != nil {
				return statusPacket{}, fmt.Errorf("%w：%w", device.ErrCommunication, err)
			}
			return status, nil
		}

		if err := ctx.Err(); err != nil {
			return statusPacket{}, fmt.Errorf("%w：%w", device.ErrCommunication, err)
		}
		if time.Now().After(deadline) {
			return statusPacket{}, fmt.Errorf("%w：等待状态包超时", device.ErrCommunication)
		}

		n, err := b.port.Read(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return statusPacket{}, fmt.Errorf("%w：串口已断开", device.ErrCommunication)
			}
			return statusPacket{}, fmt.Errorf("%w：读串口失败：%w", device.ErrCommunication, err)
		}
		if n == 0 {
			return statusPacket{}, fmt.Errorf("%w：等待状态包超时", device.ErrCommunication)
		}
		buf = append(buf, chunk[:n]...)
	}
}
