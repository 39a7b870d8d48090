package models

import (
	"encoding/binary"
	"errors"
	"fmt"

	"myohand/device"
)

// Dynamixel 协议 2.0 指令
const (
	INST_PING   byte = 0x01
	INST_READ   byte = 0x02
	INST_WRITE  byte = 0x03
	INST_STATUS byte = 0x55
)

// X 系列控制表地址
const (
	ADDR_OPERATING_MODE       uint16 = 11
	ADDR_TORQUE_ENABLE        uint16 = 64
	ADDR_PROFILE_ACCELERATION uint16 = 108
	ADDR_PROFILE_VELOCITY     uint16 = 112
	ADDR_GOAL_POSITION        uint16 = 116
	ADDR_PRESENT_POSITION     uint16 = 132
)

// 状态包错误码（低 7 位）
const (
	STATUS_RESULT_FAIL       byte = 0x01
	STATUS_INSTRUCTION_ERROR byte = 0x02
	STATUS_CRC_ERROR         byte = 0x03
	STATUS_DATA_RANGE_ERROR  byte = 0x04
	STATUS_DATA_LENGTH_ERROR byte = 0x05
	STATUS_DATA_LIMIT_ERROR  byte = 0x06
	STATUS_ACCESS_ERROR      byte = 0x07

	STATUS_ALERT byte = 0x80
)

var packetHeader = []byte{0xFF, 0xFF, 0xFD, 0x00}

// headerLen 包头 4 字节 + ID + 长度 2 字节
const headerLen = 7

var errMalformedPacket = errors.New("状态包格式错误")

// crc16 协议 2.0 使用的 CRC-16（多项式 0x8005，初值 0，不反射）
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// stuff 在参数中出现的 FF FF FD 之后插入 FD，避免被误认为包头
func stuff(params []byte) []byte {
	out := make([]byte, 0, len(params)+2)
	for i, b := range params {
		out = append(out, b)
		if b == 0xFD && i >= 2 && params[i-1] == 0xFF && params[i-2] == 0xFF {
			out = append(out, 0xFD)
		}
	}
	return out
}

// unstuff 移除发送端插入的 FD
func unstuff(params []byte) []byte {
	out := make([]byte, 0, len(params))
	for i := 0; i < len(params); i++ {
		b := params[i]
		out = append(out, b)
		if b == 0xFD && i >= 2 && params[i-1] == 0xFF && params[i-2] == 0xFF &&
			i+1 < len(params) && params[i+1] == 0xFD {
			i++
		}
	}
	return out
}

// encodeInstruction 组装指令包
func encodeInstruction(id, inst byte, params []byte) []byte {
	body := stuff(params)
	length := uint16(len(body) + 3) // 指令 + 参数 + CRC

	pkt := make([]byte, 0, headerLen+int(length))
	pkt = append(pkt, packetHeader...)
	pkt = append(pkt, id)
	pkt = binary.LittleEndian.AppendUint16(pkt, length)
	pkt = append(pkt, inst)
	pkt = append(pkt, body...)
	return binary.LittleEndian.AppendUint16(pkt, crc16(pkt))
}

// writeParams 写指令参数：地址 + 数据
func writeParams(addr uint16, data []byte) []byte {
	params := binary.LittleEndian.AppendUint16(nil, addr)
	return append(params, data...)
}

// readParams 读指令参数：地址 + 长度
func readParams(addr, size uint16) []byte {
	params := binary.LittleEndian.AppendUint16(nil, addr)
	return binary.LittleEndian.AppendUint16(params, size)
}

// statusPacket 执行器返回的状态包
type statusPacket struct {
	ID     byte
	Error  byte
	Params []byte
}

// frameLength 若 buf 以包头开始且长度字段已到达，返回完整帧长度
func frameLength(buf []byte) (int, bool) {
	if len(buf) < headerLen {
		return 0, false
	}
	return headerLen + int(binary.LittleEndian.Uint16(buf[5:7])), true
}

// decodeStatus 解析并校验一个完整的状态包
func decodeStatus(frame []byte) (statusPacket, error) {
	if len(frame) < headerLen+4 || string(frame[:4]) != string(packetHeader) {
		return statusPacket{}, errMalformedPacket
	}
	total, _ := frameLength(frame)
	if total != len(frame) {
		return statusPacket{}, fmt.Errorf("%w：长度 %d，实际 %d", errMalformedPacket, total, len(frame))
	}
	want := binary.LittleEndian.Uint16(frame[total-2:])
	if got := crc16(frame[:total-2]); got != want {
		return statusPacket{}, fmt.Errorf("%w：CRC 0x%04X，期望 0x%04X", errMalformedPacket, got, want)
	}
	if frame[7] != INST_STATUS {
		return statusPacket{}, fmt.Errorf("%w：指令 0x%02X 不是状态包", errMalformedPacket, frame[7])
	}
	return statusPacket{
		ID:     frame[4],
		Error:  frame[8],
		Params: unstuff(frame[9 : total-2]),
	}, nil
}

// encodeStatus 组装状态包，供模拟设备和测试使用
func encodeStatus(id, errCode byte, params []byte) []byte {
	body := stuff(params)
	length := uint16(len(body) + 4) // 指令 + 错误码 + 参数 + CRC

	pkt := make([]byte, 0, headerLen+int(length))
	pkt = append(pkt, packetHeader...)
	pkt = append(pkt, id)
	pkt = binary.LittleEndian.AppendUint16(pkt, length)
	pkt = append(pkt, INST_STATUS, errCode)
	pkt = append(pkt, body...)
	return binary.LittleEndian.AppendUint16(pkt, crc16(pkt))
}

// statusError 将状态包错误字节转换为设备错误。
// 执行器收到损坏的指令包时报告 CRC 错误，这属于链路问题而非硬件故障。
func statusError(id int, code byte) error {
	if code == 0 {
		return nil
	}
	num := code &^ STATUS_ALERT
	if num == STATUS_CRC_ERROR && code&STATUS_ALERT == 0 {
		return fmt.Errorf("%w：执行器 %d 收到的指令包校验失败", device.ErrCommunication, id)
	}
	return &device.HardwareError{ID: id, Code: num, Alert: code&STATUS_ALERT != 0}
}
